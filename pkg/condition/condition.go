// Package condition implements NogDB's predicate algebra: the boolean
// tree of comparisons pkg/query and pkg/sqllang evaluate against a
// record's properties. A condition never errors on a
// malformed comparison — an unknown property, an incomparable pair of
// types, all simply evaluate to false, matching the rest of NogDB's
// "never error on a predicate" design.
package condition

import (
	"strings"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/record"
)

// Op names a single comparison operator.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
	Contain
	BeginWith
	EndWith
	Like
	In
	IsNull
	Between
)

// Synthetic column names resolvable outside a record's own properties.
const (
	ColRecordID  = "@recordId"
	ColClassName = "@className"
	ColVersion   = "@version"
)

// Row is whatever a condition evaluates against: a property bag plus
// the synthetic columns a record carries alongside it.
type Row struct {
	ID         record.ID
	ClassName  string
	Version    uint64
	Properties map[string]codec.Value
}

// Resolve looks up a column by name, honoring the synthetic columns
// before falling back to a regular property.
func (r Row) Resolve(col string) (codec.Value, bool) {
	switch col {
	case ColRecordID:
		return codec.NewText(r.ID.String()), true
	case ColClassName:
		return codec.NewText(r.ClassName), true
	case ColVersion:
		v, _ := codec.NewInt(codec.BigInt, int64(r.Version))
		return v, true
	default:
		v, ok := r.Properties[col]
		return v, ok
	}
}

// Tree is a boolean expression over Row: an Atom comparing one column,
// or a Not/And/Or combinator over sub-trees.
type Tree interface {
	Eval(Row) bool
}

// Atom compares a single column against Args using Operator.
type Atom struct {
	Column     string
	Operator   Op
	Args       []codec.Value
	IgnoreCase bool
}

// And is true when every sub-tree is true.
type And []Tree

// Or is true when any sub-tree is true.
type Or []Tree

// Not negates a sub-tree.
type Not struct{ Tree Tree }

func (a And) Eval(r Row) bool {
	for _, t := range a {
		if !t.Eval(r) {
			return false
		}
	}
	return true
}

func (o Or) Eval(r Row) bool {
	for _, t := range o {
		if t.Eval(r) {
			return true
		}
	}
	return false
}

func (n Not) Eval(r Row) bool { return !n.Tree.Eval(r) }

func (a Atom) Eval(r Row) bool {
	v, ok := r.Resolve(a.Column)
	if a.Operator == IsNull {
		return !ok
	}
	if !ok {
		return false
	}
	if a.IgnoreCase {
		v = foldIfText(v)
	}
	switch a.Operator {
	case Eq:
		return len(a.Args) == 1 && valuesEqual(v, a.Args[0], a.IgnoreCase)
	case Ne:
		return len(a.Args) == 1 && !valuesEqual(v, a.Args[0], a.IgnoreCase)
	case Lt, Le, Gt, Ge:
		if len(a.Args) != 1 {
			return false
		}
		return compareOp(a.Operator, v, argFold(a.Args[0], a.IgnoreCase))
	case Between:
		if len(a.Args) != 2 {
			return false
		}
		lo, hi := argFold(a.Args[0], a.IgnoreCase), argFold(a.Args[1], a.IgnoreCase)
		return compareOp(Ge, v, lo) && compareOp(Le, v, hi)
	case In:
		for _, cand := range a.Args {
			if valuesEqual(v, cand, a.IgnoreCase) {
				return true
			}
		}
		return false
	case Contain, BeginWith, EndWith, Like:
		return stringOp(a.Operator, v, a.Args, a.IgnoreCase)
	default:
		return false
	}
}

func foldIfText(v codec.Value) codec.Value {
	if v.Type() != codec.Text {
		return v
	}
	return codec.FoldASCII(v)
}

func argFold(v codec.Value, ignoreCase bool) codec.Value {
	if !ignoreCase {
		return v
	}
	return foldIfText(v)
}

func valuesEqual(a, b codec.Value, ignoreCase bool) bool {
	if ignoreCase {
		a, b = foldIfText(a), foldIfText(b)
	}
	return codec.Eq(a, b)
}

func compareOp(op Op, a, b codec.Value) bool {
	ord, ok := codec.Compare(a, b)
	if !ok {
		return false
	}
	switch op {
	case Lt:
		return ord == codec.Less
	case Le:
		return ord == codec.Less || ord == codec.Equal
	case Gt:
		return ord == codec.Greater
	case Ge:
		return ord == codec.Greater || ord == codec.Equal
	default:
		return false
	}
}

func stringOp(op Op, v codec.Value, args []codec.Value, ignoreCase bool) bool {
	if v.Type() != codec.Text || len(args) != 1 || args[0].Type() != codec.Text {
		return false
	}
	s, _ := v.Text()
	pat, _ := args[0].Text()
	if ignoreCase {
		s, pat = asciiLower(s), asciiLower(pat)
	}
	switch op {
	case Contain:
		return strings.Contains(s, pat)
	case BeginWith:
		return strings.HasPrefix(s, pat)
	case EndWith:
		return strings.HasSuffix(s, pat)
	case Like:
		return likeMatch(s, pat)
	default:
		return false
	}
}

// asciiLower lower-cases only ASCII letters, matching codec.FoldASCII's
// scope so LIKE/CONTAIN stay consistent with eq/ne's ignoreCase().
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// likeMatch implements SQL LIKE's '%' (any run) and '_' (single char)
// wildcards over ASCII text.
func likeMatch(s, pat string) bool {
	return likeMatchBytes([]byte(s), []byte(pat))
}

func likeMatchBytes(s, pat []byte) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case '%':
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if likeMatchBytes(s[i:], pat[1:]) {
					return true
				}
			}
			return false
		case '_':
			if len(s) == 0 {
				return false
			}
			s, pat = s[1:], pat[1:]
		default:
			if len(s) == 0 || s[0] != pat[0] {
				return false
			}
			s, pat = s[1:], pat[1:]
		}
	}
	return len(s) == 0
}
