// Package mixin provides reusable schema parts.
//
// A mixin contributes fields, edges and a policy to the schemas embedding
// it. Mixins implementing strata.Configurer also switch model behaviour
// on, such as timestamps, soft deletes and optimistic locking:
//
//	func (Post) Mixin() []strata.Mixin {
//	    return []strata.Mixin{
//	        mixin.TimeSoftDelete{},
//	        mixin.Version{},
//	        mixin.ID{Policy: keygen.ULID},
//	    }
//	}
//
// Custom mixins embed Schema and override the methods they need.
package mixin
