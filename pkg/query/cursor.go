package query

// Cursor is a bidirectional, position-tracking view over a fixed result
// set. Position -1 means "before the first row", matching the convention
// a First()/Next() loop expects.
type Cursor struct {
	rows []Row
	pos  int
}

func newCursor(rows []Row) *Cursor {
	return &Cursor{rows: rows, pos: -1}
}

// NewCursor wraps an already-computed row set in a Cursor. Exported for
// callers that synthesize rows outside of a class scan, such as the SQL
// surface's SELECT projection and COUNT(*) results.
func NewCursor(rows []Row) *Cursor {
	return newCursor(rows)
}

// Size and Count both report the total number of rows; both names are
// kept since callers reach for either interchangeably.
func (c *Cursor) Size() int  { return len(c.rows) }
func (c *Cursor) Count() int { return len(c.rows) }

// Empty reports whether the cursor has no rows at all.
func (c *Cursor) Empty() bool { return len(c.rows) == 0 }

// HasAt reports whether index i is in range.
func (c *Cursor) HasAt(i int) bool { return i >= 0 && i < len(c.rows) }

// To repositions the cursor at index i and returns its row.
func (c *Cursor) To(i int) (Row, bool) {
	if !c.HasAt(i) {
		return Row{}, false
	}
	c.pos = i
	return c.rows[i], true
}

// First repositions the cursor at row 0.
func (c *Cursor) First() (Row, bool) { return c.To(0) }

// Last repositions the cursor at the final row.
func (c *Cursor) Last() (Row, bool) { return c.To(len(c.rows) - 1) }

// Next advances one row and returns it, or false once past the end.
func (c *Cursor) Next() (Row, bool) { return c.To(c.pos + 1) }

// Previous steps back one row and returns it, or false once before the
// start.
func (c *Cursor) Previous() (Row, bool) { return c.To(c.pos - 1) }

// All materializes every row as a slice, leaving the cursor's position
// untouched.
func (c *Cursor) All() []Row {
	out := make([]Row, len(c.rows))
	copy(out, c.rows)
	return out
}
