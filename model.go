package strata

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/syssam/strata/keygen"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Model is the type descriptor of a registered schema: its table, key
// policy, declared fields, relations and visibility rules. Models are
// immutable once their registry is resolved and safe for concurrent use.
type Model struct {
	name        string
	table       string
	key         string
	keyPolicy   keygen.Policy
	timestamps  bool
	createdAt   string
	updatedAt   string
	softDeletes bool
	deletedAt   string
	versioned   bool
	version     string

	fields    map[string]*field.Descriptor
	columns   []string
	edges     []*edge.Descriptor
	relations map[string]*Relation
	relNames  []string
	hidden    map[string]struct{}
	visible   map[string]struct{}
	policies  []Policy
}

// policyProvider is implemented by mixins carrying their own policy.
type policyProvider interface {
	Policy() Policy
}

// schemaName returns the Go type name of a schema.
func schemaName(s Interface) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func newModel(s Interface) (*Model, error) {
	name := schemaName(s)
	if name == "" {
		return nil, &SchemaError{Model: fmt.Sprintf("%T", s), Err: fmt.Errorf("schema must be a named type")}
	}
	cfg := s.Config()
	mixins := s.Mixin()
	for _, m := range mixins {
		if c, ok := m.(Configurer); ok {
			c.Configure(&cfg)
		}
	}
	cfg = cfg.withDefaults()
	m := &Model{
		name:        name,
		table:       cfg.Table,
		key:         cfg.Key,
		keyPolicy:   cfg.KeyPolicy,
		timestamps:  cfg.Timestamps,
		createdAt:   cfg.CreatedAt,
		updatedAt:   cfg.UpdatedAt,
		softDeletes: cfg.SoftDeletes,
		deletedAt:   cfg.DeletedAt,
		versioned:   cfg.Versioned,
		version:     cfg.VersionColumn,
		fields:      make(map[string]*field.Descriptor),
		relations:   make(map[string]*Relation),
		hidden:      make(map[string]struct{}),
	}
	if m.table == "" {
		m.table = TableName(name)
	}
	var (
		fields []Field
		edges  []Edge
	)
	for _, mx := range mixins {
		fields = append(fields, mx.Fields()...)
		edges = append(edges, mx.Edges()...)
		if p, ok := mx.(policyProvider); ok && p.Policy() != nil {
			m.policies = append(m.policies, p.Policy())
		}
	}
	fields = append(fields, s.Fields()...)
	edges = append(edges, s.Edges()...)
	if p := s.Policy(); p != nil {
		m.policies = append(m.policies, p)
	}
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, &SchemaError{Model: name, Err: d.Err}
		}
		if _, ok := m.fields[d.Name]; ok {
			return nil, &SchemaError{Model: name, Err: fmt.Errorf("duplicate field %q", d.Name)}
		}
		m.addField(d)
	}
	keyType := field.TypeInt
	if !m.keyPolicy.Increment() {
		keyType = field.TypeString
	}
	m.declare(m.key, keyType)
	if m.timestamps {
		m.declare(m.createdAt, field.TypeTime)
		m.declare(m.updatedAt, field.TypeTime)
	}
	if m.softDeletes {
		m.declare(m.deletedAt, field.TypeTime)
	}
	if m.versioned {
		m.declare(m.version, field.TypeInt)
	}
	for _, e := range edges {
		d := e.Descriptor()
		if d.Err != nil {
			return nil, &SchemaError{Model: name, Err: d.Err}
		}
		if slices.ContainsFunc(m.edges, func(o *edge.Descriptor) bool { return o.Name == d.Name }) {
			return nil, &SchemaError{Model: name, Err: fmt.Errorf("duplicate relation %q", d.Name)}
		}
		m.edges = append(m.edges, d)
	}
	for _, h := range cfg.Hidden {
		m.hidden[h] = struct{}{}
	}
	for _, d := range m.fields {
		if d.Hidden {
			m.hidden[d.Name] = struct{}{}
		}
	}
	if len(cfg.Visible) > 0 {
		m.visible = make(map[string]struct{}, len(cfg.Visible))
		for _, v := range cfg.Visible {
			m.visible[v] = struct{}{}
		}
	}
	return m, nil
}

func (m *Model) addField(d *field.Descriptor) {
	m.fields[d.Name] = d
	m.columns = append(m.columns, d.Name)
}

// declare adds an implicit field unless it is already declared.
func (m *Model) declare(name string, t field.Type) {
	if _, ok := m.fields[name]; !ok {
		m.addField(&field.Descriptor{Name: name, Type: t})
	}
}

// Name returns the model name, the Go type name of its schema.
func (m *Model) Name() string { return m.name }

// Table returns the table name.
func (m *Model) Table() string { return m.table }

// Key returns the primary key column.
func (m *Model) Key() string { return m.key }

// KeyPolicy returns the key generation policy.
func (m *Model) KeyPolicy() keygen.Policy { return m.keyPolicy }

// GenerateKey returns a fresh key for a new record, or nil when the database
// assigns keys.
func (m *Model) GenerateKey() (any, error) { return m.keyPolicy.Generate() }

// Timestamps reports whether created and updated timestamps are maintained.
func (m *Model) Timestamps() bool { return m.timestamps }

// CreatedAtColumn returns the creation timestamp column.
func (m *Model) CreatedAtColumn() string { return m.createdAt }

// UpdatedAtColumn returns the update timestamp column.
func (m *Model) UpdatedAtColumn() string { return m.updatedAt }

// SoftDeletes reports whether deletes set a tombstone instead of removing rows.
func (m *Model) SoftDeletes() bool { return m.softDeletes }

// DeletedAtColumn returns the tombstone column.
func (m *Model) DeletedAtColumn() string { return m.deletedAt }

// Versioned reports whether updates are guarded by optimistic locking.
func (m *Model) Versioned() bool { return m.versioned }

// VersionColumn returns the optimistic locking column.
func (m *Model) VersionColumn() string { return m.version }

// Fields returns the declared field names in declaration order.
func (m *Model) Fields() []string { return slices.Clone(m.columns) }

// Field returns the descriptor of a declared field.
func (m *Model) Field(name string) (*field.Descriptor, bool) {
	d, ok := m.fields[name]
	return d, ok
}

// HasField reports whether the field is declared.
func (m *Model) HasField(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// Relations returns the relation names in declaration order.
func (m *Model) Relations() []string { return slices.Clone(m.relNames) }

// Relation returns the resolved relation with the given name.
func (m *Model) Relation(name string) (*Relation, error) {
	r, ok := m.relations[name]
	if !ok {
		return nil, &UnknownRelationError{Model: m.name, Relation: name}
	}
	return r, nil
}

// Visible reports whether the field or relation is included in serialization.
func (m *Model) Visible(name string) bool {
	if m.visible != nil {
		if _, ok := m.visible[name]; !ok {
			return false
		}
	}
	_, hidden := m.hidden[name]
	return !hidden
}

// column qualifies a column with the model table.
func (m *Model) column(name string) string { return m.table + "." + name }

func (m *Model) checkField(name string) error {
	if !m.HasField(name) {
		return &UnknownAttributeError{Model: m.name, Field: name}
	}
	return nil
}

// Relation is a resolved relationship between two models.
type Relation struct {
	Name    string
	Rel     edge.Rel
	Model   *Model // declaring model
	Related *Model
	// ForeignKey is the column on Related for O2O/O2M and on Model for M2O.
	ForeignKey string
	// LocalKey is the column of Model matched by the FK (O2O, O2M) or by
	// the pivot (M2M).
	LocalKey string
	// OwnerKey is the column of Related matched by the FK (M2O) or by the
	// pivot (M2M).
	OwnerKey string
	// Pivot is the join table of M2M relations and its two key columns.
	Pivot           string
	PivotParentKey  string
	PivotRelatedKey string
	PivotColumns    []string
	Order           []edge.Order
}

// Unique reports if the relation resolves to at most one record.
func (r *Relation) Unique() bool { return r.Rel.Unique() }
