package strata

import (
	"bytes"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/syssam/strata/internal/batch"
)

// Record is a single entity: its current attributes, the snapshot last read
// from or written to the database, and the cache of loaded relations.
// Records are created through a ModelClient and are not safe for concurrent
// use.
type Record struct {
	model      *Model
	conn       *conn
	attributes map[string]any
	original   map[string]any
	relations  map[string]any
	pivot      map[string]any
	exists     bool
}

func newRecord(m *Model, c *conn) *Record {
	return &Record{
		model:      m,
		conn:       c,
		attributes: make(map[string]any),
		original:   make(map[string]any),
		relations:  make(map[string]any),
	}
}

// materialize builds a persisted record from a scanned row.
func materialize(m *Model, c *conn, row map[string]any) (*Record, error) {
	r := newRecord(m, c)
	for name, v := range row {
		d, ok := m.fields[name]
		if !ok {
			return nil, &UnknownAttributeError{Model: m.name, Field: name}
		}
		cv, err := d.Type.Coerce(v)
		if err != nil {
			return nil, &SchemaError{Model: m.name, Err: err}
		}
		r.attributes[name] = cv
	}
	r.exists = true
	r.SyncOriginal()
	return r, nil
}

func (r *Record) clone() *Record {
	c := &Record{
		model:      r.model,
		conn:       r.conn,
		attributes: maps.Clone(r.attributes),
		original:   maps.Clone(r.original),
		relations:  maps.Clone(r.relations),
		pivot:      maps.Clone(r.pivot),
		exists:     r.exists,
	}
	return c
}

// Model returns the model of the record.
func (r *Record) Model() *Model { return r.model }

// Exists reports whether the record corresponds to a persisted row.
func (r *Record) Exists() bool { return r.exists }

// Key returns the primary key value.
func (r *Record) Key() any { return r.attributes[r.model.key] }

// Get returns the value of a field, through its getter if one is declared.
func (r *Record) Get(name string) (any, error) {
	d, ok := r.model.fields[name]
	if !ok {
		return nil, &UnknownAttributeError{Model: r.model.name, Field: name}
	}
	if d.Getter != nil {
		return d.Getter(r), nil
	}
	return r.attributes[name], nil
}

// Set assigns a field. A field with a setter delegates the assignment to it.
func (r *Record) Set(name string, v any) error {
	d, ok := r.model.fields[name]
	if !ok {
		return &UnknownAttributeError{Model: r.model.name, Field: name}
	}
	if d.Setter != nil {
		return d.Setter(r, v)
	}
	r.attributes[name] = v
	return nil
}

// Fill assigns several fields through Set. No field is assigned if any name
// is undeclared.
func (r *Record) Fill(attrs map[string]any) error {
	names := slices.Sorted(maps.Keys(attrs))
	for _, name := range names {
		if err := r.model.checkField(name); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := r.Set(name, attrs[name]); err != nil {
			return err
		}
	}
	return nil
}

// Raw returns the stored value of a field, bypassing getters. Undeclared
// fields return nil.
func (r *Record) Raw(name string) any { return r.attributes[name] }

// SetRaw writes the stored value of a field, bypassing setters.
func (r *Record) SetRaw(name string, v any) error {
	if err := r.model.checkField(name); err != nil {
		return err
	}
	r.attributes[name] = v
	return nil
}

// Original returns the last persisted value of a field.
func (r *Record) Original(name string) any { return r.original[name] }

// IsDirty reports whether any of the given fields, or any field at all if
// none is given, differs from its persisted value.
func (r *Record) IsDirty(fields ...string) bool {
	if len(fields) == 0 {
		return len(r.Dirty()) > 0
	}
	for _, f := range fields {
		v, ok := r.attributes[f]
		o, had := r.original[f]
		if ok && (!had || !sameValue(v, o)) {
			return true
		}
	}
	return false
}

// Dirty returns the fields whose values differ from the persisted snapshot.
// This is exactly the payload of the next update.
func (r *Record) Dirty() map[string]any {
	dirty := make(map[string]any)
	for name, v := range r.attributes {
		if o, ok := r.original[name]; !ok || !sameValue(v, o) {
			dirty[name] = v
		}
	}
	return dirty
}

// SyncOriginal marks the current attributes as persisted.
func (r *Record) SyncOriginal() {
	r.original = maps.Clone(r.attributes)
}

// Attributes returns a copy of the raw attributes.
func (r *Record) Attributes() map[string]any { return maps.Clone(r.attributes) }

// Trashed reports whether the record carries a soft-delete tombstone.
func (r *Record) Trashed() bool {
	return r.model.softDeletes && r.attributes[r.model.deletedAt] != nil
}

// PivotData returns the pivot columns of a record loaded through a
// many-to-many relation, or nil.
func (r *Record) PivotData() map[string]any { return maps.Clone(r.pivot) }

// Loaded reports whether the relation is cached on the record.
func (r *Record) Loaded(name string) bool {
	_, ok := r.relations[name]
	return ok
}

// Relation returns the cached value of a relation: a *Record (possibly nil)
// for unique relations and a []*Record otherwise.
func (r *Record) Relation(name string) (any, bool) {
	v, ok := r.relations[name]
	return v, ok
}

// setRelation caches a loaded relation.
func (r *Record) setRelation(name string, v any) {
	r.relations[name] = v
}

// sameValue compares two attribute values by value. Integers of any width
// are equal when numerically equal, times are compared with Equal and byte
// slices match strings of the same content.
func sameValue(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case *time.Time:
		y, ok := b.(*time.Time)
		return ok && x.Equal(*y)
	case []byte:
		switch y := b.(type) {
		case []byte:
			return bytes.Equal(x, y)
		case string:
			return string(x) == y
		}
		return false
	case string:
		if y, ok := b.([]byte); ok {
			return x == string(y)
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			na, nb := batch.Normalize(a), batch.Normalize(b)
			if ia, ok := na.(int64); ok {
				if ib, ok := nb.(int64); ok {
					return ia == ib
				}
			}
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
