package strata

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/strata/dialect/sql"
)

// Policy decides whether queries and mutations of a model are allowed. A nil
// error allows the operation. Policies may narrow the operation by adding
// predicates through WhereP. The privacy package provides rule based
// implementations.
type Policy interface {
	EvalQuery(context.Context, *Query) error
	EvalMutation(context.Context, *Mutation) error
}

// An Op represents a mutation operation.
type Op uint

// Mutation operations.
const (
	OpCreate    Op = 1 << iota // node creation.
	OpUpdate                   // update nodes by predicate (if any).
	OpUpdateOne                // update one node.
	OpDelete                   // delete nodes by predicate (if any).
	OpDeleteOne                // delete one node.
)

// Is reports whether o is match the given operation.
func (i Op) Is(o Op) bool { return i&o != 0 }

// String returns the name of the operation.
func (i Op) String() string {
	switch i {
	case OpCreate:
		return "OpCreate"
	case OpUpdate:
		return "OpUpdate"
	case OpUpdateOne:
		return "OpUpdateOne"
	case OpDelete:
		return "OpDelete"
	case OpDeleteOne:
		return "OpDeleteOne"
	}
	return fmt.Sprintf("Op(%d)", uint(i))
}

// Mutation describes a write about to be issued, as seen by policies.
type Mutation struct {
	op     Op
	model  *Model
	record *Record
	fields map[string]any
	preds  []sql.Predicate
}

// NewMutation returns a mutation of the model carrying the given field
// values. The persistence engine builds mutations itself; NewMutation
// serves evaluating policies outside a write.
func NewMutation(m *Model, op Op, fields map[string]any) *Mutation {
	return &Mutation{op: op, model: m, fields: maps.Clone(fields)}
}

// Predicates returns the predicates appended through WhereP.
func (m *Mutation) Predicates() []sql.Predicate { return slices.Clone(m.preds) }

// Op returns the operation.
func (m *Mutation) Op() Op { return m.op }

// Type returns the model name.
func (m *Mutation) Type() string { return m.model.name }

// Model returns the mutated model.
func (m *Mutation) Model() *Model { return m.model }

// Record returns the mutated record, or nil for bulk operations.
func (m *Mutation) Record() *Record { return m.record }

// Fields returns the names of the fields being written.
func (m *Mutation) Fields() []string {
	return slices.Sorted(maps.Keys(m.fields))
}

// Field returns the value being written to the field or, for single-record
// mutations, the current value of the record.
func (m *Mutation) Field(name string) (any, bool) {
	if v, ok := m.fields[name]; ok {
		return v, true
	}
	if m.record != nil {
		v, ok := m.record.attributes[name]
		return v, ok
	}
	return nil, false
}

// OldField returns the last persisted value of the field of a single-record
// mutation.
func (m *Mutation) OldField(name string) (any, bool) {
	if m.record == nil {
		return nil, false
	}
	v, ok := m.record.original[name]
	return v, ok
}

// WhereP appends storage-level predicates to the update or delete statement.
// They are ignored on creation.
func (m *Mutation) WhereP(ps ...sql.Predicate) {
	m.preds = append(m.preds, ps...)
}

func (m *Model) evalMutation(ctx context.Context, mu *Mutation) error {
	for _, p := range m.policies {
		if err := p.EvalMutation(ctx, mu); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) evalQuery(ctx context.Context, q *Query) error {
	for _, p := range m.policies {
		if err := p.EvalQuery(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
