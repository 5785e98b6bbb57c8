package edge

import (
	"fmt"
	"reflect"
	"strings"
)

// Rel is a relation type of an edge.
type Rel uint8

// Relation types.
const (
	Unk Rel = iota // Unknown.
	O2O            // One to one / has one.
	O2M            // One to many / has many.
	M2O            // Many to one / belongs to.
	M2M            // Many to many / belongs to many.
)

// String returns the relation name.
func (r Rel) String() string {
	switch r {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	default:
		return "Unknown"
	}
}

// Unique reports if the relation resolves to at most one record.
func (r Rel) Unique() bool { return r == O2O || r == M2O }

// Order is an explicit ordering term of a relation.
type Order struct {
	Column string
	Desc   bool
}

// A Descriptor for edge configuration.
type Descriptor struct {
	Name       string   // edge name.
	Type       string   // related model name.
	Rel        Rel      // relation type.
	ForeignKey string   // FK column; on the related table for O2O/O2M, on the owner for M2O.
	LocalKey   string   // owner column matched by the FK of O2O/O2M.
	OwnerKey   string   // related column matched by the FK of M2O.
	Through    string   // pivot table of M2M.
	PivotKeys  []string // pivot columns referencing the owner and the related model.
	PivotCols  []string // extra pivot columns loaded with M2M records.
	Order      []Order  // explicit ordering.
	Comment    string
	Err        error
}

// Builder for edges.
type Builder struct {
	desc *Descriptor
}

// HasOne declares a one-to-one relation whose foreign key lives on the
// related table.
func HasOne(name string, t any) *Builder { return newBuilder(name, t, O2O) }

// HasMany declares a one-to-many relation whose foreign key lives on the
// related table.
func HasMany(name string, t any) *Builder { return newBuilder(name, t, O2M) }

// BelongsTo declares the inverse of HasOne/HasMany: the foreign key lives on
// the declaring table.
func BelongsTo(name string, t any) *Builder { return newBuilder(name, t, M2O) }

// BelongsToMany declares a many-to-many relation through a pivot table.
func BelongsToMany(name string, t any) *Builder { return newBuilder(name, t, M2M) }

func newBuilder(name string, t any, rel Rel) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Rel: rel}}
	b.desc.Type, b.desc.Err = typeName(t)
	if b.desc.Err == nil && strings.TrimSpace(name) == "" {
		b.desc.Err = fmt.Errorf("edge: empty name for %s edge to %q", rel, b.desc.Type)
	}
	return b
}

// typeName extracts the related model name. t is either the model name or the
// Type method expression of a schema, e.g. User.Type.
func typeName(t any) (string, error) {
	if s, ok := t.(string); ok {
		if s == "" {
			return "", fmt.Errorf("edge: empty related type")
		}
		return s, nil
	}
	rt := reflect.TypeOf(t)
	if rt == nil || rt.Kind() != reflect.Func || rt.NumIn() == 0 {
		return "", fmt.Errorf("edge: invalid related type %T", t)
	}
	in := rt.In(0)
	if in.Kind() == reflect.Pointer {
		in = in.Elem()
	}
	return in.Name(), nil
}

// ForeignKey overrides the foreign key column.
func (b *Builder) ForeignKey(column string) *Builder {
	b.desc.ForeignKey = column
	return b
}

// LocalKey overrides the owner column matched by the foreign key of a
// has-one/has-many relation.
func (b *Builder) LocalKey(column string) *Builder {
	b.desc.LocalKey = column
	return b
}

// OwnerKey overrides the related column matched by the foreign key of a
// belongs-to relation.
func (b *Builder) OwnerKey(column string) *Builder {
	b.desc.OwnerKey = column
	return b
}

// Through sets the pivot table of a many-to-many relation.
func (b *Builder) Through(table string) *Builder {
	b.desc.Through = table
	return b
}

// PivotKeys sets the pivot columns referencing the owner and the related model.
func (b *Builder) PivotKeys(owner, related string) *Builder {
	b.desc.PivotKeys = []string{owner, related}
	return b
}

// PivotColumns sets extra pivot columns loaded alongside related records.
func (b *Builder) PivotColumns(columns ...string) *Builder {
	b.desc.PivotCols = append(b.desc.PivotCols, columns...)
	return b
}

// OrderBy appends an ascending ordering term.
func (b *Builder) OrderBy(column string) *Builder {
	b.desc.Order = append(b.desc.Order, Order{Column: column})
	return b
}

// OrderByDesc appends a descending ordering term.
func (b *Builder) OrderByDesc(column string) *Builder {
	b.desc.Order = append(b.desc.Order, Order{Column: column, Desc: true})
	return b
}

// Comment used to put annotations on the schema.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the strata.Edge interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	if b.desc.Err == nil && b.desc.Rel != M2M && (b.desc.Through != "" || len(b.desc.PivotKeys) > 0) {
		b.desc.Err = fmt.Errorf("edge %q: pivot options are only valid for many-to-many relations", b.desc.Name)
	}
	return b.desc
}
