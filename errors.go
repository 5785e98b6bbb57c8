package strata

import (
	"errors"
	"fmt"

	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/keygen"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("strata: record not found")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("strata: cannot start a transaction within a transaction")

	// ErrUnknownModel is returned when a model name is not registered.
	ErrUnknownModel = errors.New("strata: unknown model")

	// ErrUnknownAttribute is matched by every UnknownAttributeError.
	ErrUnknownAttribute = errors.New("strata: unknown attribute")

	// ErrUnknownRelation is matched by every UnknownRelationError.
	ErrUnknownRelation = errors.New("strata: unknown relation")

	// ErrOptimisticLock is matched by every OptimisticLockError.
	ErrOptimisticLock = errors.New("strata: optimistic lock conflict")

	// ErrUnsupported is matched by every UnsupportedOperationError.
	ErrUnsupported = errors.New("strata: unsupported operation")

	// ErrInvalidKeyType is matched by every InvalidKeyTypeError.
	ErrInvalidKeyType = keygen.ErrInvalidKeyType
)

// InvalidKeyTypeError is returned when a client-side key generator produces
// a value that is not a non-empty string.
type InvalidKeyTypeError = keygen.InvalidKeyTypeError

// IsInvalidKeyType returns true if the error is an InvalidKeyTypeError.
func IsInvalidKeyType(err error) bool {
	return errors.Is(err, ErrInvalidKeyType)
}

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("strata: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("strata: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the model name.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the key that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given model.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// UnknownAttributeError is returned when a field that the model does not
// declare is read, assigned or materialized.
type UnknownAttributeError struct {
	Model string
	Field string
}

// Error returns the error string.
func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("strata: unknown attribute %q on %s", e.Field, e.Model)
}

// Is reports whether the target error matches UnknownAttributeError.
func (e *UnknownAttributeError) Is(err error) bool {
	return err == ErrUnknownAttribute
}

// IsUnknownAttribute returns true if the error is an UnknownAttributeError.
func IsUnknownAttribute(err error) bool {
	return errors.Is(err, ErrUnknownAttribute)
}

// UnknownRelationError is returned when a relation that the model does not
// declare is accessed or eager loaded.
type UnknownRelationError struct {
	Model    string
	Relation string
}

// Error returns the error string.
func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("strata: unknown relation %q on %s", e.Relation, e.Model)
}

// Is reports whether the target error matches UnknownRelationError.
func (e *UnknownRelationError) Is(err error) bool {
	return err == ErrUnknownRelation
}

// IsUnknownRelation returns true if the error is an UnknownRelationError.
func IsUnknownRelation(err error) bool {
	return errors.Is(err, ErrUnknownRelation)
}

// OptimisticLockError is returned when a versioned write matched no row:
// the row was changed or removed since the record was loaded. The record is
// left as it was before the write; reload it and retry.
type OptimisticLockError struct {
	Model   string
	Key     any
	Version any // last known version of the record
}

// Error returns the error string.
func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("strata: optimistic lock conflict on %s (id=%v, version=%v)", e.Model, e.Key, e.Version)
}

// Is reports whether the target error matches OptimisticLockError.
func (e *OptimisticLockError) Is(err error) bool {
	return err == ErrOptimisticLock
}

// IsOptimisticLock returns true if the error is an OptimisticLockError.
func IsOptimisticLock(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// UnsupportedOperationError is returned when an operation does not apply to a
// model, e.g. restoring a record of a model without soft deletes.
type UnsupportedOperationError struct {
	Model  string
	Op     string
	Reason string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("strata: %s is not supported on %s: %s", e.Op, e.Model, e.Reason)
}

// Is reports whether the target error matches UnsupportedOperationError.
func (e *UnsupportedOperationError) Is(err error) bool {
	return err == ErrUnsupported
}

// IsUnsupported returns true if the error is an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	Kind sqlgraph.Kind
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: %s constraint failed: %s", e.Kind, e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// constraintError wraps driver constraint violations into ConstraintError and
// returns other errors unchanged.
func constraintError(err error) error {
	if kind := sqlgraph.Classify(err); kind != sqlgraph.KindNone {
		return ConstraintError{Kind: kind, msg: err.Error(), wrap: err}
	}
	return err
}

// SchemaError is returned by the registry for invalid schema declarations.
type SchemaError struct {
	Model string
	Err   error
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("strata: schema %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("strata: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Model string // Model being queried
	Op    string // Operation (e.g., "select", "count", "eager load")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("strata: querying %s (%s): %v", e.Model, e.Op, e.Err)
	}
	return fmt.Sprintf("strata: querying %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(model, op string, err error) *QueryError {
	return &QueryError{Model: model, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Model string // Model being mutated
	Op    string // Operation (e.g., "insert", "update", "delete")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("strata: %s %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(model, op string, err error) *MutationError {
	return &MutationError{Model: model, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
