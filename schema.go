// Package strata is an active-record style mapping layer over relational
// tables: records track their dirty attributes, generate their keys, resolve
// and eager load their relations, and persist themselves with timestamps,
// soft deletes and optimistic locking applied consistently to single-record
// and bulk operations.
package strata

import (
	"github.com/syssam/strata/keygen"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

type (
	// Interface for all strata schemas.
	Interface interface {
		// Type is a dummy method, that is used in edge declaration.
		//
		// The Type method should be used as follows:
		//
		//	type S struct { strata.Schema }
		//
		//	type T struct { strata.Schema }
		//
		//	func (T) Edges() []strata.Edge {
		//	    return []strata.Edge{
		//	        edge.HasMany("S", S.Type),
		//	    }
		//	}
		//
		Type()
		// Config returns the table level configuration of the model.
		Config() Config
		// Mixin returns an optional list of Mixin to extend
		// the schema.
		Mixin() []Mixin
		// Fields returns the fields of the schema.
		Fields() []Field
		// Edges returns the relations of the schema.
		Edges() []Edge
		// Policy returns the privacy policy of the schema.
		Policy() Policy
	}

	// A Field interface returns a field descriptor for model fields.
	// Implemented by the builders of the field package.
	Field interface {
		Descriptor() *field.Descriptor
	}

	// An Edge interface returns an edge descriptor for model relations.
	// Implemented by the builders of the edge package.
	Edge interface {
		Descriptor() *edge.Descriptor
	}

	// The Mixin type describes a set of methods that can extend
	// other methods in the schema without calling them directly.
	Mixin interface {
		Fields() []Field
		Edges() []Edge
	}

	// Configurer is implemented by mixins that switch model policies on, e.g.
	// a soft delete mixin enables Config.SoftDeletes.
	Configurer interface {
		Configure(*Config)
	}

	// Config is the table level configuration of a model. Column names left
	// empty fall back to their conventional defaults.
	Config struct {
		// Table overrides the table name derived from the schema type name.
		Table string
		// Key is the primary key column. Defaults to "id".
		Key string
		// KeyPolicy decides how keys are generated. The zero value is
		// keygen.Increment.
		KeyPolicy keygen.Policy
		// Timestamps enables the created and updated timestamp columns.
		Timestamps bool
		CreatedAt  string
		UpdatedAt  string
		// SoftDeletes turns deletes into updates of a tombstone column.
		SoftDeletes bool
		DeletedAt   string
		// Versioned enables optimistic locking on a version column.
		Versioned     bool
		VersionColumn string
		// Hidden lists fields and relations excluded from serialization.
		Hidden []string
		// Visible, when set, is the only fields and relations included in
		// serialization.
		Visible []string
	}
)

// Default column names.
const (
	DefaultKey           = "id"
	DefaultCreatedAt     = "created_at"
	DefaultUpdatedAt     = "updated_at"
	DefaultDeletedAt     = "deleted_at"
	DefaultVersionColumn = "version"
)

// Schema is the default implementation for the schema Interface.
// It can be embedded in end-user schemas as follows:
//
//	type T struct {
//	    strata.Schema
//	}
type Schema struct {
	Interface
}

// Config of the schema.
func (Schema) Config() Config { return Config{} }

// Mixin of the schema.
func (Schema) Mixin() []Mixin { return nil }

// Fields of the schema.
func (Schema) Fields() []Field { return nil }

// Edges of the schema.
func (Schema) Edges() []Edge { return nil }

// Policy of the schema.
func (Schema) Policy() Policy { return nil }

// withDefaults fills the empty column names of the config.
func (c Config) withDefaults() Config {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.CreatedAt == "" {
		c.CreatedAt = DefaultCreatedAt
	}
	if c.UpdatedAt == "" {
		c.UpdatedAt = DefaultUpdatedAt
	}
	if c.DeletedAt == "" {
		c.DeletedAt = DefaultDeletedAt
	}
	if c.VersionColumn == "" {
		c.VersionColumn = DefaultVersionColumn
	}
	return c
}

var _ Interface = (*Schema)(nil)
