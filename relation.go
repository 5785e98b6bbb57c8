package strata

import (
	"context"
	"fmt"

	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema/edge"
)

// RelationQuery returns a query over the records related to r through the
// named relation. The query is re-evaluated on every execution and can be
// narrowed like any other query.
//
//	posts, err := user.RelationQuery("posts")
//	if err != nil {
//	    return err
//	}
//	published, err := posts.WhereNotNull("published_at").All(ctx)
func (r *Record) RelationQuery(name string) (*Query, error) {
	rel, err := r.model.Relation(name)
	if err != nil {
		return nil, err
	}
	q := newQuery(rel.Related, r.conn)
	switch rel.Rel {
	case edge.O2O, edge.O2M:
		q.scope = append(q.scope, keyIn(rel.Related.column(rel.ForeignKey), r.attributes[rel.LocalKey]))
	case edge.M2O:
		q.scope = append(q.scope, keyIn(rel.Related.column(rel.OwnerKey), r.attributes[rel.ForeignKey]))
	case edge.M2M:
		q.joinPivot(rel)
		q.scope = append(q.scope, keyIn(rel.Pivot+"."+rel.PivotParentKey, r.attributes[rel.LocalKey]))
	}
	q.orderRelation(rel)
	return q, nil
}

// One returns the record of a unique relation, loading it if it is not
// cached. A missing related record is returned as nil.
func (r *Record) One(ctx context.Context, name string) (*Record, error) {
	rel, err := r.model.Relation(name)
	if err != nil {
		return nil, err
	}
	if !rel.Unique() {
		return nil, &UnsupportedOperationError{Model: r.model.name, Op: "one", Reason: fmt.Sprintf("relation %q is %s", name, rel.Rel)}
	}
	if v, ok := r.relations[name]; ok {
		related, _ := v.(*Record)
		return related, nil
	}
	q, err := r.RelationQuery(name)
	if err != nil {
		return nil, err
	}
	related, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	r.setRelation(name, related)
	return related, nil
}

// Many returns the records of a non-unique relation, loading them if they
// are not cached.
func (r *Record) Many(ctx context.Context, name string) ([]*Record, error) {
	rel, err := r.model.Relation(name)
	if err != nil {
		return nil, err
	}
	if rel.Unique() {
		return nil, &UnsupportedOperationError{Model: r.model.name, Op: "many", Reason: fmt.Sprintf("relation %q is %s", name, rel.Rel)}
	}
	if v, ok := r.relations[name]; ok {
		related, _ := v.([]*Record)
		return related, nil
	}
	q, err := r.RelationQuery(name)
	if err != nil {
		return nil, err
	}
	related, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	r.setRelation(name, related)
	return related, nil
}

// Load eager loads the given relation paths on the record.
func (r *Record) Load(ctx context.Context, paths ...string) error {
	return eagerLoad(ctx, r.conn, r.model, []*Record{r}, paths)
}

// Pivot manages the rows of the join table of a many-to-many relation.
type Pivot struct {
	record *Record
	rel    *Relation
}

// Pivot returns the pivot of the named many-to-many relation.
func (r *Record) Pivot(name string) (*Pivot, error) {
	rel, err := r.model.Relation(name)
	if err != nil {
		return nil, err
	}
	if rel.Rel != edge.M2M {
		return nil, &UnsupportedOperationError{Model: r.model.name, Op: "pivot", Reason: fmt.Sprintf("relation %q is %s", name, rel.Rel)}
	}
	return &Pivot{record: r, rel: rel}, nil
}

// Attach inserts one pivot row per related key. Keys may be given as key
// values or as related records.
func (p *Pivot) Attach(ctx context.Context, keys ...any) error {
	for _, k := range keys {
		if err := p.AttachWith(ctx, k, nil); err != nil {
			return err
		}
	}
	return nil
}

// AttachWith inserts a pivot row carrying additional pivot columns.
func (p *Pivot) AttachWith(ctx context.Context, key any, cols map[string]any) error {
	parent, err := p.parentKey("attach")
	if err != nil {
		return err
	}
	for c := range cols {
		if !p.hasColumn(c) {
			return &UnknownAttributeError{Model: p.rel.Pivot, Field: c}
		}
	}
	key = p.relatedKey(key)
	if key == nil {
		return &UnsupportedOperationError{Model: p.rel.Related.name, Op: "attach", Reason: "related record has no key"}
	}
	ins := sql.Insert(p.rel.Pivot).Dialect(p.record.conn.dialect()).
		Set(p.rel.PivotParentKey, parent).
		Set(p.rel.PivotRelatedKey, key)
	for _, c := range p.rel.PivotColumns {
		if v, ok := cols[c]; ok {
			ins.Set(c, v)
		}
	}
	if _, err := p.record.conn.result(ctx, ins); err != nil {
		return NewMutationError(p.rel.Pivot, "attach", err)
	}
	p.invalidate()
	return nil
}

// Detach deletes the pivot rows of the given related keys, or all pivot rows
// of the record if no key is given. It returns the number of deleted rows.
func (p *Pivot) Detach(ctx context.Context, keys ...any) (int64, error) {
	parent, err := p.parentKey("detach")
	if err != nil {
		return 0, err
	}
	del := sql.Delete(p.rel.Pivot).Dialect(p.record.conn.dialect()).Where(sql.EQ(p.rel.PivotParentKey, parent))
	if len(keys) > 0 {
		related := make([]any, len(keys))
		for i, k := range keys {
			related[i] = p.relatedKey(k)
		}
		del.Where(sql.In(p.rel.PivotRelatedKey, related...))
	}
	n, err := p.record.conn.execute(ctx, del)
	if err != nil {
		return 0, NewMutationError(p.rel.Pivot, "detach", err)
	}
	p.invalidate()
	return n, nil
}

// Sync replaces the pivot rows of the record with the given keys. It is
// atomic only when the record is bound to a transaction.
func (p *Pivot) Sync(ctx context.Context, keys ...any) error {
	if _, err := p.Detach(ctx); err != nil {
		return err
	}
	return p.Attach(ctx, keys...)
}

func (p *Pivot) parentKey(op string) (any, error) {
	k := p.record.attributes[p.rel.LocalKey]
	if k == nil || !p.record.exists {
		return nil, &UnsupportedOperationError{Model: p.record.model.name, Op: op, Reason: "record is not persisted"}
	}
	return k, nil
}

func (p *Pivot) relatedKey(k any) any {
	if r, ok := k.(*Record); ok {
		return r.attributes[p.rel.OwnerKey]
	}
	return k
}

func (p *Pivot) hasColumn(c string) bool {
	for _, pc := range p.rel.PivotColumns {
		if pc == c {
			return true
		}
	}
	return false
}

func (p *Pivot) invalidate() {
	delete(p.record.relations, p.rel.Name)
}

// joinPivot joins the pivot table of a many-to-many relation and selects its
// key and extra columns.
func (q *Query) joinPivot(rel *Relation) {
	q.joins = append(q.joins, joinSpec{
		table: rel.Pivot,
		left:  rel.Pivot + "." + rel.PivotRelatedKey,
		right: rel.Related.column(rel.OwnerKey),
	})
	q.pivotTable = rel.Pivot
	q.pivot = make(map[string]string, 2+len(rel.PivotColumns))
	for _, c := range append([]string{rel.PivotParentKey, rel.PivotRelatedKey}, rel.PivotColumns...) {
		q.pivot[pivotPrefix+c] = c
	}
}

func (q *Query) orderRelation(rel *Relation) {
	for _, o := range rel.Order {
		q.order = append(q.order, orderSpec{column: rel.Related.column(o.Column), desc: o.Desc})
	}
}

// keyIn matches the given key values. Nil keys match nothing.
func keyIn(col string, keys ...any) sql.Predicate {
	vs := make([]any, 0, len(keys))
	for _, k := range keys {
		if k != nil {
			vs = append(vs, k)
		}
	}
	if len(vs) == 1 {
		return sql.EQ(col, vs[0])
	}
	return sql.In(col, vs...)
}
