package mixin

import (
	"github.com/syssam/strata"
	"github.com/syssam/strata/keygen"
	"github.com/syssam/strata/schema/field"
)

// Schema is the default implementation for the strata.Mixin interface.
// It should be embedded in all custom mixin definitions.
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []strata.Field {
//	    return []strata.Field{
//	        field.String("created_by"),
//	        field.String("updated_by"),
//	    }
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []strata.Field { return nil }

// Edges returns the edges of the mixin.
func (Schema) Edges() []strata.Edge { return nil }

// Policy returns the privacy policy of the mixin.
func (Schema) Policy() strata.Policy { return nil }

// schema mixin must implement `Mixin` interface.
var _ strata.Mixin = (*Schema)(nil)

// Time maintains created and updated timestamps. The columns default to
// created_at and updated_at.
//
//	func (User) Mixin() []strata.Mixin {
//	    return []strata.Mixin{
//	        mixin.Time{},
//	    }
//	}
type Time struct {
	Schema
	CreatedAt string
	UpdatedAt string
}

// Configure enables timestamps.
func (m Time) Configure(c *strata.Config) {
	c.Timestamps = true
	if m.CreatedAt != "" {
		c.CreatedAt = m.CreatedAt
	}
	if m.UpdatedAt != "" {
		c.UpdatedAt = m.UpdatedAt
	}
}

// SoftDelete makes deletes set a tombstone instead of removing the row.
// Tombstoned records are hidden from queries unless WithTrashed or
// OnlyTrashed is used. The column defaults to deleted_at.
type SoftDelete struct {
	Schema
	Column string
}

// Configure enables soft deletes.
func (m SoftDelete) Configure(c *strata.Config) {
	c.SoftDeletes = true
	if m.Column != "" {
		c.DeletedAt = m.Column
	}
}

// Version guards updates and deletes with optimistic locking. The column
// defaults to version.
type Version struct {
	Schema
	Column string
}

// Configure enables optimistic locking.
func (m Version) Configure(c *strata.Config) {
	c.Versioned = true
	if m.Column != "" {
		c.VersionColumn = m.Column
	}
}

// TimeSoftDelete composes Time and SoftDelete.
type TimeSoftDelete struct{ Schema }

// Configure enables timestamps and soft deletes.
func (TimeSoftDelete) Configure(c *strata.Config) {
	Time{}.Configure(c)
	SoftDelete{}.Configure(c)
}

// ID switches the key policy of a schema to client generated string keys.
//
//	mixin.ID{Policy: keygen.ULID}
type ID struct {
	Schema
	Policy keygen.Policy
}

// Configure sets the key policy. The zero value selects UUIDs.
func (m ID) Configure(c *strata.Config) {
	c.KeyPolicy = m.Policy
	if m.Policy.Increment() {
		c.KeyPolicy = keygen.UUID
	}
}

// TenantID adds a tenant_id field. Combine it with privacy.TenantFilter
// for row level tenant isolation.
type TenantID struct{ Schema }

// Fields of the TenantID mixin.
func (TenantID) Fields() []strata.Field {
	return []strata.Field{
		field.String("tenant_id").Comment("Tenant owning the record"),
	}
}

var (
	_ strata.Configurer = Time{}
	_ strata.Configurer = SoftDelete{}
	_ strata.Configurer = Version{}
	_ strata.Configurer = TimeSoftDelete{}
	_ strata.Configurer = ID{}
)
