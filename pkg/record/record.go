// Package record implements the read-only record database façade the
// elaborator consumes: named, typed records that reference each other by
// name, queried by derived class or by name. The database itself is not
// part of the elaboration engine -- it is treated as an immutable store,
// the way CodeGenSchedule.cpp treats llvm::RecordKeeper.
package record

import "fmt"

// Loc is the source location of a record, used to anchor diagnostics.
type Loc struct {
	File string
	Line int
}

func (l Loc) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// DagArg is one argument of a Dag expression: either a record reference or
// a string literal (instregex patterns are strings, instrs arguments are
// record references).
type DagArg struct {
	Rec   *Record
	Str   string
	IsStr bool
}

// Dag models a set-expression like `(instrs A, B)` or `(instregex "P.*")`.
type Dag struct {
	Operator string
	Args     []DagArg
}

// Record is a named, typed bag of fields tagged with the classes it derives
// from. Fields may be absent entirely (IsValueUnset reports true) rather
// than holding a zero value -- this distinguishes "SchedModel left
// unspecified" (generic) from "SchedModel explicitly set to NoSchedModel".
type Record struct {
	Name    string
	Classes []string
	Fields  map[string]any
	Loc     Loc
}

// New creates a Record with no fields set.
func New(name string, loc Loc, classes ...string) *Record {
	return &Record{
		Name:    name,
		Classes: append([]string(nil), classes...),
		Fields:  make(map[string]any),
		Loc:     loc,
	}
}

// Set assigns a field value. Accepted value types: int, bool, string,
// *Record, []*Record, *Dag.
func (r *Record) Set(field string, value any) *Record {
	r.Fields[field] = value
	return r
}

// IsSubClassOf reports whether this record derives from the named class.
func (r *Record) IsSubClassOf(class string) bool {
	for _, c := range r.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// IsValueUnset reports whether the named field was never assigned.
func (r *Record) IsValueUnset(field string) bool {
	_, ok := r.Fields[field]
	return !ok
}

// Int returns an integer field, or 0 if unset.
func (r *Record) Int(field string) int {
	v, _ := r.Fields[field].(int)
	return v
}

// IntOr returns an integer field, or the given default if unset.
func (r *Record) IntOr(field string, def int) int {
	if r.IsValueUnset(field) {
		return def
	}
	return r.Int(field)
}

// Bit returns a boolean (TableGen "bit") field, or false if unset.
func (r *Record) Bit(field string) bool {
	v, _ := r.Fields[field].(bool)
	return v
}

// Str returns a string field, or "" if unset.
func (r *Record) Str(field string) string {
	v, _ := r.Fields[field].(string)
	return v
}

// Def returns a record-ref field, or nil if unset.
func (r *Record) Def(field string) *Record {
	v, _ := r.Fields[field].(*Record)
	return v
}

// DefList returns a list-of-record-ref field, or nil if unset.
func (r *Record) DefList(field string) []*Record {
	v, _ := r.Fields[field].([]*Record)
	return v
}

// DagField returns a DAG-init field, or nil if unset.
func (r *Record) DagField(field string) *Dag {
	v, _ := r.Fields[field].(*Dag)
	return v
}

func (r *Record) String() string {
	return r.Name
}

// DB is the narrow read-only lookup surface the elaborator requires: find
// all records deriving from a class, and look a record up by name.
type DB interface {
	AllDerivedDefinitions(class string) []*Record
	GetDef(name string) *Record
}

// MapDB is an in-memory DB implementation, the one provided here so the
// elaborator can run and be tested without a real declarative-record
// frontend (spec.md scopes the record store itself out of the engine).
type MapDB struct {
	byName map[string]*Record
	order  []*Record
}

// NewMapDB creates an empty database.
func NewMapDB() *MapDB {
	return &MapDB{byName: make(map[string]*Record)}
}

// Add inserts a record, overwriting any existing record of the same name.
func (db *MapDB) Add(r *Record) {
	if old, exists := db.byName[r.Name]; exists {
		for i, o := range db.order {
			if o == old {
				db.order[i] = r
				break
			}
		}
	} else {
		db.order = append(db.order, r)
	}
	db.byName[r.Name] = r
}

// GetDef looks up a record by exact name.
func (db *MapDB) GetDef(name string) *Record {
	return db.byName[name]
}

// AllDerivedDefinitions returns every record whose Classes list contains
// the given class, in insertion order. Callers that need a stable,
// reproducible order sort by name explicitly (spec.md §5's determinism
// requirement places that responsibility on the elaborator, not the
// store, mirroring getAllDerivedDefinitions + a separate std::sort in the
// original).
func (db *MapDB) AllDerivedDefinitions(class string) []*Record {
	var out []*Record
	for _, r := range db.order {
		if r.IsSubClassOf(class) {
			out = append(out, r)
		}
	}
	return out
}
