// Package schema implements NogDB's schema catalog: persisted classes,
// properties and indexes, with an in-memory read-through snapshot kept
// behind the commit boundary. Catalog rows themselves are small metadata
// records, so — mirroring how Node/Edge rows are serialized elsewhere in
// this codebase — they are JSON-encoded rather than packed with the
// record codec, which is reserved for record data.
package schema

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
)

const (
	tableClasses    = "schema.classes"
	tableProperties = "schema.properties"
	tableIndexes    = "schema.indexes"
	tableMeta       = "schema.meta"
)

// ClassID uniquely and permanently identifies a class; ids are never
// reused within a database's lifetime.
type ClassID int64

// NoClass is the sentinel parent id for a root class.
const NoClass ClassID = -1

// IndexID uniquely identifies an index.
type IndexID int64

// Tag marks a class as holding vertex or edge records.
type Tag uint8

const (
	Vertex Tag = iota
	Edge
)

func (t Tag) String() string {
	if t == Edge {
		return "EDGE"
	}
	return "VERTEX"
}

// Class is a typed category of records, optionally inheriting from one
// parent class of the same Tag.
type Class struct {
	ID       ClassID `json:"id"`
	Name     string  `json:"name"`
	Tag      Tag     `json:"tag"`
	ParentID ClassID `json:"parentId"`
}

// Property belongs to exactly one class and carries a PropertyID unique
// within that class.
type Property struct {
	ID      codec.PropertyID `json:"id"`
	ClassID ClassID          `json:"classId"`
	Name    string           `json:"name"`
	Type    codec.Type       `json:"type"`
}

// Index attaches to one (class, property) pair.
type Index struct {
	ID       IndexID          `json:"id"`
	ClassID  ClassID          `json:"classId"`
	Property codec.PropertyID `json:"property"`
	Unique   bool             `json:"unique"`
}

// Snapshot is an immutable-once-published view of the whole catalog.
// Readers share one Snapshot for the lifetime of their transaction;
// writers mutate a Clone() and the owning Catalog swaps it in atomically
// on commit.
type Snapshot struct {
	classes     map[ClassID]*Class
	classByName map[string]*Class
	// own (non-inherited) properties, keyed by class then name
	propsByName map[ClassID]map[string]*Property
	propsByID   map[ClassID]map[codec.PropertyID]*Property
	indexes     map[IndexID]*Index
	// index visible on a concrete class for a property, including indexes
	// declared on an ancestor class — indexes are partitioned per concrete
	// class.
	indexByClassProp map[ClassID]map[codec.PropertyID]*Index

	nextClassID ClassID
	nextIndexID IndexID
	nextPropID  map[ClassID]codec.PropertyID
}

// NewEmpty returns a brand new Snapshot with no classes, properties or
// indexes — the starting point for a database that has never been
// opened before.
func NewEmpty() *Snapshot { return newSnapshot() }

func newSnapshot() *Snapshot {
	return &Snapshot{
		classes:          make(map[ClassID]*Class),
		classByName:      make(map[string]*Class),
		propsByName:      make(map[ClassID]map[string]*Property),
		propsByID:        make(map[ClassID]map[codec.PropertyID]*Property),
		indexes:          make(map[IndexID]*Index),
		indexByClassProp: make(map[ClassID]map[codec.PropertyID]*Index),
		nextClassID:      0,
		nextIndexID:      0,
		nextPropID:       make(map[ClassID]codec.PropertyID),
	}
}

// Clone returns a deep-enough copy for a write transaction's scratch
// snapshot: top-level maps are copied so DDL ops never mutate a
// concurrently-read Snapshot, but individual Class/Property/Index values
// are copy-on-write at the point they are replaced.
func (s *Snapshot) Clone() *Snapshot {
	c := newSnapshot()
	for k, v := range s.classes {
		c.classes[k] = v
	}
	for k, v := range s.classByName {
		c.classByName[k] = v
	}
	for k, m := range s.propsByName {
		nm := make(map[string]*Property, len(m))
		for n, p := range m {
			nm[n] = p
		}
		c.propsByName[k] = nm
	}
	for k, m := range s.propsByID {
		nm := make(map[codec.PropertyID]*Property, len(m))
		for n, p := range m {
			nm[n] = p
		}
		c.propsByID[k] = nm
	}
	for k, v := range s.indexes {
		c.indexes[k] = v
	}
	for k, m := range s.indexByClassProp {
		nm := make(map[codec.PropertyID]*Index, len(m))
		for n, idx := range m {
			nm[n] = idx
		}
		c.indexByClassProp[k] = nm
	}
	c.nextClassID = s.nextClassID
	c.nextIndexID = s.nextIndexID
	for k, v := range s.nextPropID {
		c.nextPropID[k] = v
	}
	return c
}

// ---- read accessors ----

// ClassByName looks up a class by its exact name.
func (s *Snapshot) ClassByName(name string) (*Class, bool) {
	c, ok := s.classByName[name]
	return c, ok
}

// ClassByID looks up a class by id.
func (s *Snapshot) ClassByID(id ClassID) (*Class, bool) {
	c, ok := s.classes[id]
	return c, ok
}

// Ancestors returns c's ancestor chain, nearest first, not including c.
func (s *Snapshot) Ancestors(c *Class) []*Class {
	var out []*Class
	cur := c
	for cur.ParentID != NoClass {
		parent, ok := s.classes[cur.ParentID]
		if !ok {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	return out
}

// Descendants returns the ids of every class transitively extending
// classID, in depth-first order; this order is pinned so subclass scans
// are deterministic across calls.
func (s *Snapshot) Descendants(classID ClassID) []ClassID {
	children := make(map[ClassID][]ClassID)
	for id, c := range s.classes {
		if c.ParentID != NoClass {
			children[c.ParentID] = append(children[c.ParentID], id)
		}
	}
	for _, ids := range children {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	var out []ClassID
	var dfs func(ClassID)
	dfs = func(id ClassID) {
		for _, child := range children[id] {
			out = append(out, child)
			dfs(child)
		}
	}
	dfs(classID)
	return out
}

// ResolveProperty finds a property by name on class c, walking up the
// ancestor chain if c does not declare it itself.
func (s *Snapshot) ResolveProperty(classID ClassID, name string) (*Property, bool) {
	for id := classID; id != NoClass; {
		if p, ok := s.propsByName[id][name]; ok {
			return p, true
		}
		c, ok := s.classes[id]
		if !ok {
			break
		}
		id = c.ParentID
	}
	return nil, false
}

// PropertyLookup returns a codec.PropertyTypeLookup for a given class: it
// resolves a PropertyID to its Type by id, walking ancestors.
func (s *Snapshot) PropertyLookup(classID ClassID) codec.PropertyTypeLookup {
	return classLookup{snap: s, classID: classID}
}

type classLookup struct {
	snap    *Snapshot
	classID ClassID
}

func (l classLookup) PropertyType(id codec.PropertyID) (codec.Type, bool) {
	for cid := l.classID; cid != NoClass; {
		if p, ok := l.snap.propsByID[cid][id]; ok {
			return p.Type, true
		}
		c, ok := l.snap.classes[cid]
		if !ok {
			break
		}
		cid = c.ParentID
	}
	return 0, false
}

// OwnProperties returns the properties declared directly on classID
// (not inherited).
func (s *Snapshot) OwnProperties(classID ClassID) []*Property {
	m := s.propsByID[classID]
	out := make([]*Property, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllProperties returns classID's own properties plus every inherited
// one, own properties shadowing ancestor properties of the same name.
func (s *Snapshot) AllProperties(classID ClassID) []*Property {
	seen := make(map[string]bool)
	var out []*Property
	for cid := classID; cid != NoClass; {
		for _, p := range s.OwnProperties(cid) {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			out = append(out, p)
		}
		c, ok := s.classes[cid]
		if !ok {
			break
		}
		cid = c.ParentID
	}
	return out
}

// Classes returns every class in the catalog, ordered by id.
func (s *Snapshot) Classes() []*Class {
	out := make([]*Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IndexFor returns the index visible to classID for a property (including
// one declared on an ancestor class), if any.
func (s *Snapshot) IndexFor(classID ClassID, prop codec.PropertyID) (*Index, bool) {
	idx, ok := s.indexByClassProp[classID][prop]
	return idx, ok
}

// IndexByID looks up an index by id.
func (s *Snapshot) IndexByID(id IndexID) (*Index, bool) {
	idx, ok := s.indexes[id]
	return idx, ok
}

// ---- mutation (DDL), always called on a write transaction's scratch
// snapshot, and always mirrored into the backing kv tables so memory and
// disk agree after commit ----

func validateName(name string) error {
	if name == "" {
		return nogdberr.New(nogdberr.InvalidClassName, "name must not be empty")
	}
	return nil
}

// AddClass registers a new class, persisting it into ktxn.
func (s *Snapshot) AddClass(ktxn *kv.Txn, name string, tag Tag, parentID ClassID) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, exists := s.classByName[name]; exists {
		return nil, nogdberr.New(nogdberr.DuplicateClass, "class %q already exists", name)
	}
	if parentID != NoClass {
		parent, ok := s.classes[parentID]
		if !ok {
			return nil, nogdberr.New(nogdberr.NoExistClass, "parent class %d not found", parentID)
		}
		if parent.Tag != tag {
			return nil, nogdberr.New(nogdberr.MismatchClassType, "parent class %q has a different tag", parent.Name)
		}
	}

	id := s.nextClassID
	s.nextClassID++
	c := &Class{ID: id, Name: name, Tag: tag, ParentID: parentID}
	s.classes[id] = c
	s.classByName[name] = c
	s.propsByName[id] = make(map[string]*Property)
	s.propsByID[id] = make(map[codec.PropertyID]*Property)
	// A subclass sees every index visible on its parent.
	if parentID != NoClass {
		inherited := make(map[codec.PropertyID]*Index, len(s.indexByClassProp[parentID]))
		for pid, idx := range s.indexByClassProp[parentID] {
			inherited[pid] = idx
		}
		s.indexByClassProp[id] = inherited
	}

	if err := s.persistClass(ktxn, c); err != nil {
		return nil, err
	}
	if err := s.persistCounter(ktxn, "nextClassID", int64(s.nextClassID)); err != nil {
		return nil, err
	}
	return c, nil
}

// DropClass removes a class definition. Dropping the records themselves
// is the caller's (pkg/record's) responsibility before calling this.
func (s *Snapshot) DropClass(ktxn *kv.Txn, name string) error {
	c, ok := s.classByName[name]
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", name)
	}
	for _, idx := range s.indexByClassProp[c.ID] {
		if idx.ClassID == c.ID {
			if err := s.dropIndexByID(ktxn, idx.ID); err != nil {
				return err
			}
		}
	}
	for pid := range s.propsByID[c.ID] {
		if err := ktxn.Delete(tableProperties, propKey(c.ID, pid)); err != nil {
			return err
		}
	}
	delete(s.classes, c.ID)
	delete(s.classByName, c.Name)
	delete(s.propsByName, c.ID)
	delete(s.propsByID, c.ID)
	delete(s.indexByClassProp, c.ID)
	return ktxn.Delete(tableClasses, classKey(c.ID))
}

// RenameClass renames an existing class.
func (s *Snapshot) RenameClass(ktxn *kv.Txn, oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	c, ok := s.classByName[oldName]
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", oldName)
	}
	if _, exists := s.classByName[newName]; exists {
		return nogdberr.New(nogdberr.DuplicateClass, "class %q already exists", newName)
	}
	updated := *c
	updated.Name = newName
	s.classes[c.ID] = &updated
	delete(s.classByName, oldName)
	s.classByName[newName] = &updated
	return s.persistClass(ktxn, &updated)
}

// AddProperty declares a new property on className.
func (s *Snapshot) AddProperty(ktxn *kv.Txn, className, propName string, typ codec.Type) (*Property, error) {
	if err := validateName(propName); err != nil {
		return nil, err
	}
	c, ok := s.classByName[className]
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	if _, exists := s.ResolveProperty(c.ID, propName); exists {
		return nil, nogdberr.New(nogdberr.DuplicateProperty, "property %q already exists on %q (directly or inherited)", propName, className)
	}

	// Property ids come from one catalog-wide sequence, so a subclass's own
	// property never shares an id with one it inherits.
	var id codec.PropertyID
	for _, next := range s.nextPropID {
		if next > id {
			id = next
		}
	}
	s.nextPropID[c.ID] = id + 1
	p := &Property{ID: id, ClassID: c.ID, Name: propName, Type: typ}
	s.propsByName[c.ID][propName] = p
	s.propsByID[c.ID][id] = p

	if err := s.persistProperty(ktxn, p); err != nil {
		return nil, err
	}
	if err := s.persistCounter(ktxn, "nextPropID."+strconv.FormatInt(int64(c.ID), 10), int64(s.nextPropID[c.ID])); err != nil {
		return nil, err
	}
	return p, nil
}

// DropProperty removes a property. Forbidden while any index references
// it.
func (s *Snapshot) DropProperty(ktxn *kv.Txn, className, propName string) error {
	c, ok := s.classByName[className]
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	p, ok := s.propsByName[c.ID][propName]
	if !ok {
		return nogdberr.New(nogdberr.NoExistProperty, "property %q not found on %q", propName, className)
	}
	if _, indexed := s.indexByClassProp[c.ID][p.ID]; indexed {
		return nogdberr.New(nogdberr.InUsedProperty, "property %q is indexed; drop the index first", propName)
	}
	delete(s.propsByName[c.ID], propName)
	delete(s.propsByID[c.ID], p.ID)
	return ktxn.Delete(tableProperties, propKey(c.ID, p.ID))
}

// RenameProperty renames a property declared directly on className.
func (s *Snapshot) RenameProperty(ktxn *kv.Txn, className, oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	c, ok := s.classByName[className]
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	p, ok := s.propsByName[c.ID][oldName]
	if !ok {
		return nogdberr.New(nogdberr.NoExistProperty, "property %q not found on %q", oldName, className)
	}
	if _, exists := s.ResolveProperty(c.ID, newName); exists {
		return nogdberr.New(nogdberr.DuplicateProperty, "property %q already exists on %q", newName, className)
	}
	updated := *p
	updated.Name = newName
	delete(s.propsByName[c.ID], oldName)
	s.propsByName[c.ID][newName] = &updated
	s.propsByID[c.ID][p.ID] = &updated
	return s.persistProperty(ktxn, &updated)
}

// AddIndex registers a new index. The caller (pkg/txn) is responsible for
// scanning the class's existing records for uniqueness violations
// *before* calling this, since that requires the record store; this
// method only manages catalog bookkeeping.
func (s *Snapshot) AddIndex(ktxn *kv.Txn, className, propName string, unique bool) (*Index, error) {
	c, ok := s.classByName[className]
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	p, ok := s.ResolveProperty(c.ID, propName)
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistProperty, "property %q not found on %q", propName, className)
	}
	if p.Type == codec.Blob {
		return nil, nogdberr.New(nogdberr.InvalidPropTypeIndex, "BLOB properties cannot be indexed")
	}
	if _, exists := s.indexByClassProp[c.ID][p.ID]; exists {
		return nil, nogdberr.New(nogdberr.DuplicateIndex, "an index on %q.%q already exists", className, propName)
	}

	id := s.nextIndexID
	s.nextIndexID++
	idx := &Index{ID: id, ClassID: c.ID, Property: p.ID, Unique: unique}
	s.indexes[id] = idx
	if s.indexByClassProp[c.ID] == nil {
		s.indexByClassProp[c.ID] = make(map[codec.PropertyID]*Index)
	}
	s.indexByClassProp[c.ID][p.ID] = idx
	// Visible to subclasses too, each maintaining its own partition.
	for _, descID := range s.Descendants(c.ID) {
		if s.indexByClassProp[descID] == nil {
			s.indexByClassProp[descID] = make(map[codec.PropertyID]*Index)
		}
		s.indexByClassProp[descID][p.ID] = idx
	}

	if err := s.persistIndex(ktxn, idx); err != nil {
		return nil, err
	}
	if err := s.persistCounter(ktxn, "nextIndexID", int64(s.nextIndexID)); err != nil {
		return nil, err
	}
	return idx, nil
}

// DropIndex removes an index by (class, property) name pair.
func (s *Snapshot) DropIndex(ktxn *kv.Txn, className, propName string) error {
	c, ok := s.classByName[className]
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	p, ok := s.ResolveProperty(c.ID, propName)
	if !ok {
		return nogdberr.New(nogdberr.NoExistProperty, "property %q not found on %q", propName, className)
	}
	idx, ok := s.indexByClassProp[c.ID][p.ID]
	if !ok {
		return nogdberr.New(nogdberr.NoExistIndex, "no index on %q.%q", className, propName)
	}
	return s.dropIndexByID(ktxn, idx.ID)
}

func (s *Snapshot) dropIndexByID(ktxn *kv.Txn, id IndexID) error {
	idx, ok := s.indexes[id]
	if !ok {
		return nogdberr.New(nogdberr.NoExistIndex, "index %d not found", id)
	}
	delete(s.indexes, id)
	delete(s.indexByClassProp[idx.ClassID], idx.Property)
	for _, descID := range s.Descendants(idx.ClassID) {
		if m, ok := s.indexByClassProp[descID]; ok {
			if cur, ok := m[idx.Property]; ok && cur.ID == idx.ID {
				delete(m, idx.Property)
			}
		}
	}
	return ktxn.Delete(tableIndexes, indexKey(idx.ID))
}

// ---- persistence ----

func classKey(id ClassID) []byte { return []byte(strconv.FormatInt(int64(id), 10)) }
func propKey(classID ClassID, id codec.PropertyID) []byte {
	return []byte(strconv.FormatInt(int64(classID), 10) + "." + strconv.FormatInt(int64(id), 10))
}
func indexKey(id IndexID) []byte { return []byte(strconv.FormatInt(int64(id), 10)) }

func (s *Snapshot) persistClass(ktxn *kv.Txn, c *Class) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return ktxn.Set(tableClasses, classKey(c.ID), b)
}

func (s *Snapshot) persistProperty(ktxn *kv.Txn, p *Property) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return ktxn.Set(tableProperties, propKey(p.ClassID, p.ID), b)
}

func (s *Snapshot) persistIndex(ktxn *kv.Txn, idx *Index) error {
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return ktxn.Set(tableIndexes, indexKey(idx.ID), b)
}

func (s *Snapshot) persistCounter(ktxn *kv.Txn, name string, value int64) error {
	return ktxn.Set(tableMeta, []byte(name), []byte(strconv.FormatInt(value, 10)))
}

// Load hydrates a fresh Snapshot from the backing store, used once when a
// Catalog is opened.
func Load(ktxn *kv.Txn) (*Snapshot, error) {
	s := newSnapshot()

	if err := ktxn.Iterate(tableClasses, nil, func(_, v []byte) (bool, error) {
		var c Class
		if err := json.Unmarshal(v, &c); err != nil {
			return false, err
		}
		cc := c
		s.classes[cc.ID] = &cc
		s.classByName[cc.Name] = &cc
		if s.propsByName[cc.ID] == nil {
			s.propsByName[cc.ID] = make(map[string]*Property)
			s.propsByID[cc.ID] = make(map[codec.PropertyID]*Property)
		}
		return true, nil
	}); err != nil {
		return nil, err
	}

	if err := ktxn.Iterate(tableProperties, nil, func(_, v []byte) (bool, error) {
		var p Property
		if err := json.Unmarshal(v, &p); err != nil {
			return false, err
		}
		pp := p
		if s.propsByName[pp.ClassID] == nil {
			s.propsByName[pp.ClassID] = make(map[string]*Property)
			s.propsByID[pp.ClassID] = make(map[codec.PropertyID]*Property)
		}
		s.propsByName[pp.ClassID][pp.Name] = &pp
		s.propsByID[pp.ClassID][pp.ID] = &pp
		return true, nil
	}); err != nil {
		return nil, err
	}

	if err := ktxn.Iterate(tableIndexes, nil, func(_, v []byte) (bool, error) {
		var idx Index
		if err := json.Unmarshal(v, &idx); err != nil {
			return false, err
		}
		ii := idx
		s.indexes[ii.ID] = &ii
		if s.indexByClassProp[ii.ClassID] == nil {
			s.indexByClassProp[ii.ClassID] = make(map[codec.PropertyID]*Index)
		}
		s.indexByClassProp[ii.ClassID][ii.Property] = &ii
		return true, nil
	}); err != nil {
		return nil, err
	}

	// Re-derive subclass index visibility and id counters.
	for _, c := range s.classes {
		if int64(c.ID) >= int64(s.nextClassID) {
			s.nextClassID = c.ID + 1
		}
	}
	for classID, props := range s.propsByID {
		var max codec.PropertyID
		any := false
		for id := range props {
			if !any || id >= max {
				max, any = id, true
			}
		}
		if any {
			s.nextPropID[classID] = max + 1
		}
	}
	for _, idx := range s.indexes {
		if int64(idx.ID) >= int64(s.nextIndexID) {
			s.nextIndexID = idx.ID + 1
		}
		for _, descID := range s.Descendants(idx.ClassID) {
			if s.indexByClassProp[descID] == nil {
				s.indexByClassProp[descID] = make(map[codec.PropertyID]*Index)
			}
			s.indexByClassProp[descID][idx.Property] = idx
		}
	}
	// The counters AddClass and AddIndex persist outrank the re-derived
	// ones, so an id freed by a drop is not handed out again after reopening.
	if raw, ok, err := ktxn.Get(tableMeta, []byte("nextClassID")); err != nil {
		return nil, err
	} else if n, perr := strconv.ParseInt(string(raw), 10, 64); ok && perr == nil && ClassID(n) > s.nextClassID {
		s.nextClassID = ClassID(n)
	}
	if raw, ok, err := ktxn.Get(tableMeta, []byte("nextIndexID")); err != nil {
		return nil, err
	} else if n, perr := strconv.ParseInt(string(raw), 10, 64); ok && perr == nil && IndexID(n) > s.nextIndexID {
		s.nextIndexID = IndexID(n)
	}

	return s, nil
}

// Catalog owns the single, swap-on-commit Snapshot shared by every
// transaction.
type Catalog struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewCatalog wraps an already-loaded Snapshot.
func NewCatalog(initial *Snapshot) *Catalog {
	return &Catalog{current: initial}
}

// Current returns the last-committed Snapshot. Safe to call from any
// goroutine; the returned pointer is never mutated in place.
func (c *Catalog) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Swap installs next as the current Snapshot. Only the single writer may
// call this, at commit time.
func (c *Catalog) Swap(next *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = next
}
