package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/internal/batch"
)

// Viewer is the principal on whose behalf records are read and written.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID returns "" outside multi-tenant deployments.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a copy of ctx carrying the viewer.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a static Viewer.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string { return v.UserID }
func (v *SimpleViewer) GetRoles() []string { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies anonymous requests and skips otherwise.
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows viewers holding any of the roles and skips otherwise.
//
//	privacy.MutationPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin", "moderator"),
//	    privacy.AlwaysDenyRule(),
//	}
func HasRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(viewer.GetRoles(), r) }) {
			return Allow
		}
		return Skip
	})
}

// IsOwner allows writes to records whose field holds the viewer ID. Updates
// and deletes of a loaded record check the persisted owner, so a record
// cannot be claimed by writing the viewer ID into it. Creations and bulk
// mutations check the written value.
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *strata.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		var (
			owner any
			ok    bool
		)
		if m.Record() != nil && !m.Op().Is(strata.OpCreate) {
			owner, ok = m.OldField(field)
		} else {
			owner, ok = m.Field(field)
		}
		if ok && owner != nil && keyString(owner) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// AllowMutationOperationRule allows the given operations and skips the rest.
func AllowMutationOperationRule(op strata.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, *strata.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// OwnerFilter restricts queries, updates and deletes to the rows whose field
// holds the viewer ID, and creations to records carrying it. Anonymous
// requests are denied.
func OwnerFilter(field string) QueryMutationRule {
	return scopeFilter{field: field, scope: "owner", value: Viewer.GetID}
}

// TenantFilter returns a rule restricting queries, updates and deletes to
// the rows of the viewer's tenant, and creations to records carrying it.
// Requests without a viewer tenant are denied.
//
//	privacy.Policy{
//	    Query:    privacy.QueryPolicy{privacy.TenantFilter("tenant_id")},
//	    Mutation: privacy.MutationPolicy{privacy.TenantFilter("tenant_id")},
//	}
func TenantFilter(field string) QueryMutationRule {
	return scopeFilter{field: field, scope: "tenant", value: Viewer.GetTenantID}
}

// scopeFilter pins a column to a value derived from the viewer.
type scopeFilter struct {
	field string
	scope string
	value func(Viewer) string
}

func (f scopeFilter) EvalQuery(ctx context.Context, q *strata.Query) error {
	v, err := f.viewerValue(ctx)
	if err != nil {
		return err
	}
	q.WhereP(sql.EQ(q.Model().Table()+"."+f.field, v))
	return Skip
}

func (f scopeFilter) EvalMutation(ctx context.Context, m *strata.Mutation) error {
	v, err := f.viewerValue(ctx)
	if err != nil {
		return err
	}
	if m.Op().Is(strata.OpCreate) {
		if got, ok := m.Field(f.field); !ok || got == nil || keyString(got) != v {
			return Denyf("privacy: %s mismatch", f.scope)
		}
		return Skip
	}
	m.WhereP(sql.EQ(m.Model().Table()+"."+f.field, v))
	return Skip
}

func (f scopeFilter) viewerValue(ctx context.Context) (string, error) {
	var v string
	if viewer := ViewerFromContext(ctx); viewer != nil {
		v = f.value(viewer)
	}
	if v == "" {
		return "", Denyf("privacy: %s required", f.scope)
	}
	return v, nil
}

// keyString formats a stored key for comparison with viewer identifiers.
func keyString(v any) string {
	return fmt.Sprint(batch.Normalize(v))
}
