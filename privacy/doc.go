// Package privacy provides rule based implementations of strata.Policy.
//
// Rules return one of three decisions: Allow ends the evaluation and
// permits the operation, Deny ends it and rejects the operation, and Skip
// defers to the next rule. A policy whose rules all skip permits the
// operation.
//
//	func (Post) Policy() strata.Policy {
//	    return privacy.Policy{
//	        Query: privacy.QueryPolicy{
//	            privacy.TenantFilter("tenant_id"),
//	        },
//	        Mutation: privacy.MutationPolicy{
//	            privacy.DenyIfNoViewer(),
//	            privacy.HasRole("admin"),
//	            privacy.IsOwner("author_id"),
//	            privacy.AlwaysDenyRule(),
//	        },
//	    }
//	}
//
// Policies are evaluated before every query is executed and before every
// insert, update and delete. Filter rules narrow queries and update or
// delete statements with additional predicates:
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    f.WhereP(sql.EQ("posts.published", true))
//	    return privacy.Skip
//	})
//
// Trusted code paths can bypass the rules by attaching a decision to the
// context:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
//
// The viewer of a request is attached with WithViewer and read by the
// built-in rules through ViewerFromContext.
package privacy
