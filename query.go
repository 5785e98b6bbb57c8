package strata

import (
	"context"
	"maps"
	"slices"

	"github.com/syssam/strata/dialect/sql"
)

type trashedMode uint8

const (
	withoutTrashed trashedMode = iota
	withTrashed
	onlyTrashed
)

// Query is a query over one model. Filter and modifier methods return the
// query for chaining; the first invalid field name is reported by the
// method that executes the query.
//
//	users, err := client.MustModel("User").Query().
//	    WhereEq("status", "active").
//	    OrderByDesc("created_at").
//	    Limit(10).
//	    With("posts.comments").
//	    All(ctx)
type Query struct {
	model *Model
	conn  *conn
	// scope holds the relation constraints of relation queries. They are
	// kept apart from preds so ClearWhere does not widen a relation.
	scope []sql.Predicate
	joins []joinSpec
	// pivot maps the aliases of selected pivot columns to their names in
	// pivotTable.
	pivot      map[string]string
	pivotTable string
	preds      []sql.Predicate
	order      []orderSpec
	limit      *int
	offset     *int
	trashed    trashedMode
	with       []string
	err        error
}

type joinSpec struct {
	table, left, right string
}

type orderSpec struct {
	column string
	desc   bool
}

const pivotPrefix = "pivot_"

func newQuery(m *Model, c *conn) *Query {
	return &Query{model: m, conn: c}
}

// Model returns the queried model.
func (q *Query) Model() *Model { return q.model }

// Type returns the name of the queried model.
func (q *Query) Type() string { return q.model.name }

// Err returns the first error recorded while building the query.
func (q *Query) Err() error { return q.err }

// Where adds raw predicates. Column names should be qualified with the
// table when the query may join another table.
func (q *Query) Where(ps ...sql.Predicate) *Query {
	q.preds = append(q.preds, ps...)
	return q
}

// WhereP appends storage-level predicates to the query. It is used by
// policies to narrow what a query may return.
func (q *Query) WhereP(ps ...sql.Predicate) {
	q.preds = append(q.preds, ps...)
}

// WhereEq adds an equality predicate on a field.
func (q *Query) WhereEq(name string, v any) *Query {
	if col, ok := q.col(name); ok {
		q.preds = append(q.preds, sql.EQ(col, v))
	}
	return q
}

// WhereIn adds an IN predicate on a field. An empty list matches nothing.
func (q *Query) WhereIn(name string, vs ...any) *Query {
	if col, ok := q.col(name); ok {
		q.preds = append(q.preds, sql.In(col, vs...))
	}
	return q
}

// WhereNull adds an IS NULL predicate on a field.
func (q *Query) WhereNull(name string) *Query {
	if col, ok := q.col(name); ok {
		q.preds = append(q.preds, sql.IsNull(col))
	}
	return q
}

// WhereNotNull adds an IS NOT NULL predicate on a field.
func (q *Query) WhereNotNull(name string) *Query {
	if col, ok := q.col(name); ok {
		q.preds = append(q.preds, sql.NotNull(col))
	}
	return q
}

// OrderBy orders the results by the given fields, ascending.
func (q *Query) OrderBy(names ...string) *Query {
	for _, name := range names {
		if col, ok := q.col(name); ok {
			q.order = append(q.order, orderSpec{column: col})
		}
	}
	return q
}

// OrderByDesc orders the results by the given fields, descending.
func (q *Query) OrderByDesc(names ...string) *Query {
	for _, name := range names {
		if col, ok := q.col(name); ok {
			q.order = append(q.order, orderSpec{column: col, desc: true})
		}
	}
	return q
}

// Limit limits the number of records returned.
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset skips the first n records.
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// ClearWhere removes the predicates added by the caller. Relation
// constraints and the soft-delete scope are kept.
func (q *Query) ClearWhere() *Query {
	q.preds = nil
	return q
}

// WithTrashed includes soft-deleted records.
func (q *Query) WithTrashed() *Query {
	q.trashed = withTrashed
	return q
}

// OnlyTrashed returns only soft-deleted records.
func (q *Query) OnlyTrashed() *Query {
	q.trashed = onlyTrashed
	return q
}

// WithoutTrashed excludes soft-deleted records. This is the default.
func (q *Query) WithoutTrashed() *Query {
	q.trashed = withoutTrashed
	return q
}

// With eager loads the given relation paths on the returned records. Nested
// relations are separated by dots, e.g. "posts.comments.author".
func (q *Query) With(paths ...string) *Query {
	q.with = append(q.with, paths...)
	return q
}

// Clone returns a duplicate of the query.
func (q *Query) Clone() *Query {
	c := *q
	c.scope = slices.Clone(q.scope)
	c.joins = slices.Clone(q.joins)
	c.pivot = maps.Clone(q.pivot)
	c.preds = slices.Clone(q.preds)
	c.order = slices.Clone(q.order)
	c.with = slices.Clone(q.with)
	if q.limit != nil {
		n := *q.limit
		c.limit = &n
	}
	if q.offset != nil {
		n := *q.offset
		c.offset = &n
	}
	return &c
}

// All executes the query and returns the matching records.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	c := q.Clone()
	if err := q.model.evalQuery(ctx, c); err != nil {
		return nil, err
	}
	s := c.selector().Select(q.model.table + ".*")
	for _, alias := range slices.Sorted(maps.Keys(c.pivot)) {
		s.AppendSelectAs(c.pivotTable+"."+c.pivot[alias], alias)
	}
	c.ordered(s)
	rows, err := q.conn.query(ctx, s)
	if err != nil {
		return nil, NewQueryError(q.model.name, "select", err)
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		var pivot map[string]any
		for alias, col := range c.pivot {
			if pivot == nil {
				pivot = make(map[string]any, len(c.pivot))
			}
			pivot[col] = row[alias]
			delete(row, alias)
		}
		r, err := materialize(q.model, q.conn, row)
		if err != nil {
			return nil, err
		}
		r.pivot = pivot
		records = append(records, r)
	}
	if len(c.with) > 0 {
		if err := eagerLoad(ctx, q.conn, q.model, records, c.with); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// First returns the first matching record, or nil if there is none.
func (q *Query) First(ctx context.Context) (*Record, error) {
	records, err := q.Clone().Limit(1).All(ctx)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// FirstOrFail is like First but returns a NotFoundError if there is no
// matching record.
func (q *Query) FirstOrFail(ctx context.Context) (*Record, error) {
	r, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, NewNotFoundError(q.model.name)
	}
	return r, nil
}

// Find returns the matching record with the given key, or nil.
func (q *Query) Find(ctx context.Context, key any) (*Record, error) {
	return q.Clone().WhereEq(q.model.key, key).First(ctx)
}

// FindOrFail is like Find but returns a NotFoundError if there is no
// matching record.
func (q *Query) FindOrFail(ctx context.Context, key any) (*Record, error) {
	r, err := q.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, NewNotFoundErrorWithID(q.model.name, key)
	}
	return r, nil
}

// Count returns the number of matching records. Limit and offset are
// ignored.
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	c := q.Clone()
	if err := q.model.evalQuery(ctx, c); err != nil {
		return 0, err
	}
	var n int
	if err := q.conn.value(ctx, c.selector().SelectExpr("COUNT(*)"), &n); err != nil {
		return 0, NewQueryError(q.model.name, "count", err)
	}
	return n, nil
}

// Exists reports whether any record matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	c := q.Clone()
	if err := q.model.evalQuery(ctx, c); err != nil {
		return false, err
	}
	rows, err := q.conn.query(ctx, c.selector().SelectExpr("1").Limit(1))
	if err != nil {
		return false, NewQueryError(q.model.name, "exists", err)
	}
	return len(rows) > 0, nil
}

// Pluck returns the values of one field of the matching records.
func (q *Query) Pluck(ctx context.Context, name string) ([]any, error) {
	col, ok := q.col(name)
	if !ok || q.err != nil {
		return nil, q.err
	}
	c := q.Clone()
	if err := q.model.evalQuery(ctx, c); err != nil {
		return nil, err
	}
	s := c.selector().Select(col)
	c.ordered(s)
	rows, err := q.conn.query(ctx, s)
	if err != nil {
		return nil, NewQueryError(q.model.name, "pluck", err)
	}
	d := q.model.fields[name]
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := d.Type.Coerce(row[name])
		if err != nil {
			return nil, NewQueryError(q.model.name, "pluck", err)
		}
		values = append(values, v)
	}
	return values, nil
}

// Sum returns the sum of a numeric field over the matching records.
func (q *Query) Sum(ctx context.Context, name string) (float64, error) {
	return q.aggregate(ctx, "SUM", name)
}

// Avg returns the average of a numeric field over the matching records.
func (q *Query) Avg(ctx context.Context, name string) (float64, error) {
	return q.aggregate(ctx, "AVG", name)
}

// Min returns the minimum of a numeric field over the matching records.
func (q *Query) Min(ctx context.Context, name string) (float64, error) {
	return q.aggregate(ctx, "MIN", name)
}

// Max returns the maximum of a numeric field over the matching records.
func (q *Query) Max(ctx context.Context, name string) (float64, error) {
	return q.aggregate(ctx, "MAX", name)
}

// aggregate runs an aggregate function. An empty set yields zero.
func (q *Query) aggregate(ctx context.Context, fn, name string) (float64, error) {
	col, ok := q.col(name)
	if !ok || q.err != nil {
		return 0, q.err
	}
	c := q.Clone()
	if err := q.model.evalQuery(ctx, c); err != nil {
		return 0, err
	}
	b := &sql.Builder{}
	b.SetDialect(q.conn.dialect())
	b.WriteString(fn).WriteByte('(').Ident(col).WriteByte(')')
	expr, _ := b.Query()
	var v sql.NullFloat64
	if err := q.conn.value(ctx, c.selector().SelectExpr(expr), &v); err != nil {
		return 0, NewQueryError(q.model.name, fn, err)
	}
	return v.Float64, nil
}

// Update sets the given fields on every matching record and returns the
// number of affected rows. Versioned models have their version incremented
// and timestamped models their update time stamped.
func (q *Query) Update(ctx context.Context, attrs map[string]any) (int64, error) {
	if err := q.checkBulk("update"); err != nil {
		return 0, err
	}
	fields := make(map[string]any, len(attrs))
	for name, v := range attrs {
		if err := q.model.checkField(name); err != nil {
			return 0, err
		}
		fields[name] = v
	}
	return q.bulkUpdate(ctx, OpUpdate, fields)
}

// Delete deletes the matching records and returns the number of affected
// rows. Models with soft deletes have their tombstone set instead.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if err := q.checkBulk("delete"); err != nil {
		return 0, err
	}
	if q.model.softDeletes {
		return q.bulkUpdate(ctx, OpDelete, map[string]any{q.model.deletedAt: q.conn.clock()})
	}
	return q.bulkDelete(ctx)
}

// ForceDelete removes the matching rows regardless of soft deletes.
func (q *Query) ForceDelete(ctx context.Context) (int64, error) {
	if err := q.checkBulk("force delete"); err != nil {
		return 0, err
	}
	return q.bulkDelete(ctx)
}

// Restore clears the tombstone of the matching soft-deleted records.
func (q *Query) Restore(ctx context.Context) (int64, error) {
	if err := q.checkBulk("restore"); err != nil {
		return 0, err
	}
	if !q.model.softDeletes {
		return 0, &UnsupportedOperationError{Model: q.model.name, Op: "restore", Reason: "model does not use soft deletes"}
	}
	return q.Clone().OnlyTrashed().bulkUpdate(ctx, OpUpdate, map[string]any{q.model.deletedAt: nil})
}

func (q *Query) checkBulk(op string) error {
	if q.err != nil {
		return q.err
	}
	if len(q.joins) > 0 {
		return &UnsupportedOperationError{Model: q.model.name, Op: op, Reason: "query joins a pivot table"}
	}
	return nil
}

func (q *Query) bulkUpdate(ctx context.Context, op Op, fields map[string]any) (int64, error) {
	m := q.model
	if m.timestamps {
		if _, ok := fields[m.updatedAt]; !ok {
			fields[m.updatedAt] = q.conn.clock()
		}
	}
	if m.versioned {
		delete(fields, m.version)
	}
	mu := &Mutation{op: op, model: m, fields: fields}
	if err := m.evalMutation(ctx, mu); err != nil {
		return 0, err
	}
	upd := sql.Update(m.table).Dialect(q.conn.dialect())
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		v, err := m.fields[name].Type.Value(fields[name])
		if err != nil {
			return 0, NewMutationError(m.name, "update", err)
		}
		upd.Set(name, v)
	}
	if m.versioned {
		upd.Add(m.version, 1)
	}
	upd.Where(append(q.predicates(), mu.preds...)...)
	n, err := q.conn.execute(ctx, upd)
	if err != nil {
		return 0, NewMutationError(m.name, "update", err)
	}
	return n, nil
}

func (q *Query) bulkDelete(ctx context.Context) (int64, error) {
	m := q.model
	mu := &Mutation{op: OpDelete, model: m}
	if err := m.evalMutation(ctx, mu); err != nil {
		return 0, err
	}
	del := sql.Delete(m.table).Dialect(q.conn.dialect()).Where(append(q.predicates(), mu.preds...)...)
	n, err := q.conn.execute(ctx, del)
	if err != nil {
		return 0, NewMutationError(m.name, "delete", err)
	}
	return n, nil
}

// predicates returns the relation scope, the caller predicates and the
// soft-delete scope. It is the only place the soft-delete scope is applied.
func (q *Query) predicates() []sql.Predicate {
	ps := make([]sql.Predicate, 0, len(q.scope)+len(q.preds)+1)
	ps = append(ps, q.scope...)
	ps = append(ps, q.preds...)
	if q.model.softDeletes {
		col := q.model.column(q.model.deletedAt)
		switch q.trashed {
		case withoutTrashed:
			ps = append(ps, sql.IsNull(col))
		case onlyTrashed:
			ps = append(ps, sql.NotNull(col))
		}
	}
	return ps
}

// selector returns a selector over the model table with joins and
// predicates applied.
func (q *Query) selector() *sql.Selector {
	s := sql.Select().Dialect(q.conn.dialect()).From(q.model.table)
	for _, j := range q.joins {
		s.Join(j.table, j.left, j.right)
	}
	return s.Where(q.predicates()...)
}

// ordered applies ordering and pagination.
func (q *Query) ordered(s *sql.Selector) {
	for _, o := range q.order {
		if o.desc {
			s.OrderByDesc(o.column)
		} else {
			s.OrderBy(o.column)
		}
	}
	if q.limit != nil {
		s.Limit(*q.limit)
	}
	if q.offset != nil {
		s.Offset(*q.offset)
	}
}

// col validates a field name and returns the qualified column.
func (q *Query) col(name string) (string, bool) {
	if err := q.model.checkField(name); err != nil {
		if q.err == nil {
			q.err = err
		}
		return "", false
	}
	return q.model.column(name), true
}
