package strata

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Registry maps model names to their descriptors. It is populated in two
// phases: Register builds a Model per schema, Resolve binds relations to the
// models they reference. Splitting the phases lets schemas reference each
// other regardless of registration order.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]*Model
	order    []*Model
	resolved bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds the schemas to the registry.
func (r *Registry) Register(schemas ...Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return errors.New("strata: registry is already resolved")
	}
	for _, s := range schemas {
		m, err := newModel(s)
		if err != nil {
			return err
		}
		if _, ok := r.models[m.name]; ok {
			return &SchemaError{Model: m.name, Err: errors.New("registered twice")}
		}
		r.models[m.name] = m
		r.order = append(r.order, m)
	}
	return nil
}

// Resolve binds every declared relation to its related model and applies the
// key conventions. Resolving a resolved registry is a no-op. A failed
// Resolve leaves the models as registered, so missing schemas can be added
// and Resolve retried.
func (r *Registry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return nil
	}
	saved := make([]modelState, len(r.order))
	for i, m := range r.order {
		saved[i] = m.state()
	}
	if err := r.resolve(); err != nil {
		for i, m := range r.order {
			m.restore(saved[i])
		}
		return err
	}
	r.resolved = true
	return nil
}

func (r *Registry) resolve() error {
	// Relations may declare implicit FK fields on either side, so all of
	// them are built before any column reference is checked.
	for _, m := range r.order {
		for _, d := range m.edges {
			rel, err := r.relation(m, d)
			if err != nil {
				return err
			}
			m.relations[rel.Name] = rel
			m.relNames = append(m.relNames, rel.Name)
		}
	}
	for _, m := range r.order {
		if err := m.validate(); err != nil {
			return err
		}
	}
	return nil
}

// modelState is the part of a Model that Resolve mutates.
type modelState struct {
	fields  map[string]*field.Descriptor
	columns []string
}

func (m *Model) state() modelState {
	return modelState{fields: maps.Clone(m.fields), columns: slices.Clone(m.columns)}
}

func (m *Model) restore(s modelState) {
	m.fields, m.columns = s.fields, s.columns
	m.relations = make(map[string]*Relation)
	m.relNames = nil
}

func (r *Registry) relation(m *Model, d *edge.Descriptor) (*Relation, error) {
	related, ok := r.models[d.Type]
	if !ok {
		return nil, &SchemaError{Model: m.name, Err: fmt.Errorf("relation %q: %w %q", d.Name, ErrUnknownModel, d.Type)}
	}
	rel := &Relation{
		Name:         d.Name,
		Rel:          d.Rel,
		Model:        m,
		Related:      related,
		ForeignKey:   d.ForeignKey,
		LocalKey:     d.LocalKey,
		OwnerKey:     d.OwnerKey,
		PivotColumns: d.PivotCols,
		Order:        d.Order,
	}
	switch d.Rel {
	case edge.O2O, edge.O2M:
		if rel.ForeignKey == "" {
			rel.ForeignKey = ForeignKey(m.table)
		}
		if rel.LocalKey == "" {
			rel.LocalKey = m.key
		}
		related.declare(rel.ForeignKey, field.TypeOther)
	case edge.M2O:
		if rel.ForeignKey == "" {
			rel.ForeignKey = ForeignKey(related.table)
		}
		if rel.OwnerKey == "" {
			rel.OwnerKey = related.key
		}
		m.declare(rel.ForeignKey, field.TypeOther)
	case edge.M2M:
		rel.Pivot = d.Through
		if rel.Pivot == "" {
			rel.Pivot = PivotTable(m.table, related.table)
		}
		if len(d.PivotKeys) == 2 {
			rel.PivotParentKey, rel.PivotRelatedKey = d.PivotKeys[0], d.PivotKeys[1]
		} else {
			rel.PivotParentKey, rel.PivotRelatedKey = ForeignKey(m.table), ForeignKey(related.table)
		}
		if rel.PivotParentKey == rel.PivotRelatedKey {
			return nil, &SchemaError{Model: m.name, Err: fmt.Errorf("relation %q: pivot keys must differ, declare them with PivotKeys", d.Name)}
		}
		if rel.LocalKey == "" {
			rel.LocalKey = m.key
		}
		if rel.OwnerKey == "" {
			rel.OwnerKey = related.key
		}
	default:
		return nil, &SchemaError{Model: m.name, Err: fmt.Errorf("relation %q: unknown relation type %s", d.Name, d.Rel)}
	}
	return rel, nil
}

// validate checks that every column referenced by the model is declared.
func (m *Model) validate() error {
	check := func(owner *Model, column, what string) error {
		if !owner.HasField(column) {
			return &SchemaError{Model: m.name, Err: fmt.Errorf("%s: %w", what, &UnknownAttributeError{Model: owner.name, Field: column})}
		}
		return nil
	}
	for _, name := range m.relNames {
		rel := m.relations[name]
		var err error
		switch rel.Rel {
		case edge.O2O, edge.O2M:
			err = check(m, rel.LocalKey, "relation "+name)
		case edge.M2O:
			err = check(rel.Related, rel.OwnerKey, "relation "+name)
		case edge.M2M:
			if err = check(m, rel.LocalKey, "relation "+name); err == nil {
				err = check(rel.Related, rel.OwnerKey, "relation "+name)
			}
		}
		if err != nil {
			return err
		}
		for _, o := range rel.Order {
			if err := check(rel.Related, o.Column, "relation "+name+" order"); err != nil {
				return err
			}
		}
	}
	// Visibility rules may name fields or relations.
	for h := range m.hidden {
		if _, ok := m.relations[h]; ok {
			continue
		}
		if err := check(m, h, "hidden"); err != nil {
			return err
		}
	}
	for v := range m.visible {
		if _, ok := m.relations[v]; ok {
			continue
		}
		if err := check(m, v, "visible"); err != nil {
			return err
		}
	}
	return nil
}

// Resolved reports whether Resolve completed.
func (r *Registry) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// Model returns the registered model with the given name.
func (r *Registry) Model(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Model(nil), r.order...)
}
