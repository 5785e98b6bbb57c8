// Package schema groups the building blocks for declaring strata models.
//
//   - [field]: attribute declarations, defaults, accessors and mutators
//   - [edge]: relation declarations (HasOne, HasMany, BelongsTo, BelongsToMany)
//   - [mixin]: reusable timestamps, soft delete, versioning and key policies
//
// A model embeds strata.Schema and overrides the methods it needs:
//
//	type Post struct{ strata.Schema }
//
//	func (Post) Mixin() []strata.Mixin {
//	    return []strata.Mixin{mixin.Time{}}
//	}
//
//	func (Post) Fields() []strata.Field {
//	    return []strata.Field{
//	        field.String("title"),
//	        field.Int("views").Default(int64(0)),
//	    }
//	}
//
//	func (Post) Edges() []strata.Edge {
//	    return []strata.Edge{
//	        edge.BelongsTo("author", User.Type).ForeignKey("user_id"),
//	        edge.HasMany("comments", Comment.Type),
//	        edge.BelongsToMany("tags", Tag.Type).PivotColumns("note"),
//	    }
//	}
//
// Schemas are registered with strata.WithSchemas and resolved once when
// the client is created.
package schema
