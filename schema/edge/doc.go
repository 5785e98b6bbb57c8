// Package edge provides fluent builders for declaring the relationships of a
// strata model.
//
// Related models are referenced by name, either as a string or through the
// Type method expression of their schema, and are resolved once every schema
// is registered. This allows mutually referencing models:
//
//	func (User) Edges() []strata.Edge {
//	    return []strata.Edge{
//	        edge.HasMany("posts", Post.Type),     // posts.user_id = users.id
//	        edge.HasOne("profile", Profile.Type), // profiles.user_id = users.id
//	    }
//	}
//
//	func (Post) Edges() []strata.Edge {
//	    return []strata.Edge{
//	        edge.BelongsTo("author", User.Type).ForeignKey("user_id"),
//	        edge.BelongsToMany("tags", Tag.Type), // through post_tag
//	    }
//	}
//
// # Keys
//
// Unless overridden, the foreign key is the singular table name of the owning
// model followed by "_id", the local and owner keys are the model keys, and
// the pivot table of a many-to-many relation is made of the two singular
// table names in alphabetical order joined by "_":
//
//	edge.BelongsToMany("roles", Role.Type).
//	    Through("role_user").
//	    PivotKeys("user_id", "role_id").
//	    PivotColumns("granted_at")
//
// # Ordering
//
// A has-one relation takes the first matching row. The order is undefined
// unless declared:
//
//	edge.HasOne("latest_post", Post.Type).OrderByDesc("created_at")
package edge
