package strata

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/internal/batch"
	"github.com/syssam/strata/schema/edge"
)

// loadNode is a relation in a tree of eager load paths.
type loadNode struct {
	name     string
	children []*loadNode
}

func (n *loadNode) child(name string) *loadNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &loadNode{name: name}
	n.children = append(n.children, c)
	return c
}

// parsePaths merges dotted relation paths into a tree. Shared prefixes are
// loaded once.
func parsePaths(paths []string) *loadNode {
	root := &loadNode{}
	for _, p := range paths {
		n := root
		for _, name := range strings.Split(p, ".") {
			if name = strings.TrimSpace(name); name != "" {
				n = n.child(name)
			}
		}
	}
	return root
}

// check reports the first relation of the tree unknown to its model.
func (n *loadNode) check(m *Model) error {
	for _, c := range n.children {
		rel, err := m.Relation(c.name)
		if err != nil {
			return err
		}
		if err := c.check(rel.Related); err != nil {
			return err
		}
	}
	return nil
}

// eagerLoad loads the relation paths of a batch of records with one query
// per relation and level. The relation caches of the records are only
// written once every query succeeded.
func eagerLoad(ctx context.Context, c *conn, m *Model, records []*Record, paths []string) error {
	root := parsePaths(paths)
	if err := root.check(m); err != nil {
		return err
	}
	var pending []func()
	if err := loadChildren(ctx, c, m, records, root, &pending); err != nil {
		return err
	}
	for _, assign := range pending {
		assign()
	}
	return nil
}

func loadChildren(ctx context.Context, c *conn, m *Model, parents []*Record, n *loadNode, pending *[]func()) error {
	for _, child := range n.children {
		rel, err := m.Relation(child.name)
		if err != nil {
			return err
		}
		related, err := loadRelation(ctx, c, rel, parents, pending)
		if err != nil {
			return NewQueryError(m.name, "eager load "+rel.Name, err)
		}
		if len(child.children) == 0 {
			continue
		}
		if err := loadChildren(ctx, c, rel.Related, related, child, pending); err != nil {
			return err
		}
	}
	return nil
}

// loadRelation resolves one relation for the whole batch of parents and
// queues the assignment of the results. It returns the related records for
// the next level.
func loadRelation(ctx context.Context, c *conn, rel *Relation, parents []*Record, pending *[]func()) ([]*Record, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	var (
		parentKey  string
		relatedKey func(*Record) any
		col        string
	)
	q := newQuery(rel.Related, c)
	switch rel.Rel {
	case edge.O2O, edge.O2M:
		parentKey, col = rel.LocalKey, rel.Related.column(rel.ForeignKey)
		relatedKey = func(r *Record) any { return r.attributes[rel.ForeignKey] }
	case edge.M2O:
		parentKey, col = rel.ForeignKey, rel.Related.column(rel.OwnerKey)
		relatedKey = func(r *Record) any { return r.attributes[rel.OwnerKey] }
	case edge.M2M:
		q.joinPivot(rel)
		parentKey, col = rel.LocalKey, rel.Pivot+"."+rel.PivotParentKey
		relatedKey = func(r *Record) any { return r.pivot[rel.PivotParentKey] }
	}
	keys := batch.Keys(parents, func(p *Record) any { return p.attributes[parentKey] })
	var related []*Record
	if len(keys) > 0 {
		q.scope = append(q.scope, sql.In(col, keys...))
		q.orderRelation(rel)
		var err error
		if related, err = q.All(ctx); err != nil {
			return nil, err
		}
	}
	c.logger.Debug("strata: eager load",
		zap.String("model", rel.Model.name), zap.String("relation", rel.Name),
		zap.Int("parents", len(parents)), zap.Int("keys", len(keys)), zap.Int("related", len(related)))
	groups := batch.GroupByKey(related, relatedKey)
	for _, p := range parents {
		group := groups[batch.Normalize(p.attributes[parentKey])]
		var v any
		if rel.Unique() {
			var one *Record
			if len(group) > 0 {
				one = group[0]
			}
			v = one
		} else {
			if group == nil {
				group = []*Record{}
			}
			v = group
		}
		*pending = append(*pending, func() { p.setRelation(rel.Name, v) })
	}
	return related, nil
}
