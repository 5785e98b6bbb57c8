// Package keygen provides the primary key policies of strata models.
//
// The zero Policy is Increment: the database assigns the key and the
// persistence engine reads it back after insert. Every other policy generates
// a string key on the client before the insert is issued.
//
//	func (User) Config() strata.Config {
//	    return strata.Config{KeyPolicy: keygen.ULID}
//	}
package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
)

// Policy names.
const (
	NameIncrement = "increment"
	NameUUID      = "uuid"
	NameULID      = "ulid"
	NameNanoID    = "nanoid"
	NameFunc      = "func"
	NameConst     = "const"
)

// DefaultNanoIDSize is the length of keys generated by NanoID.
const DefaultNanoIDSize = 21

// ErrInvalidKeyType is matched by every InvalidKeyTypeError.
var ErrInvalidKeyType = errors.New("strata: invalid key type")

// InvalidKeyTypeError is returned when a client-side generator produces a
// value that is not a non-empty string.
type InvalidKeyTypeError struct {
	Policy string
	Value  any
}

// Error returns the error string.
func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("strata: key policy %q generated %T(%v), expect non-empty string", e.Policy, e.Value, e.Value)
}

// Is reports whether the target error matches InvalidKeyTypeError.
func (e *InvalidKeyTypeError) Is(err error) bool {
	return err == ErrInvalidKeyType
}

// Policy is a primary key generation policy.
type Policy struct {
	name string
	gen  func() (any, error)
}

var (
	// Increment leaves key assignment to the database.
	Increment = Policy{}
	// UUID generates random (version 4) UUIDs in their canonical string form.
	UUID = Policy{name: NameUUID, gen: func() (any, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	}}
	// ULID generates lexicographically sortable, time ordered identifiers.
	// Keys generated within the same millisecond are monotonically increasing.
	ULID = Policy{name: NameULID, gen: newULID}
	// NanoID generates short random identifiers of DefaultNanoIDSize characters.
	NanoID = NanoIDSize(DefaultNanoIDSize)
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

func newULID() (any, error) {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulidEntropy)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

// NanoIDSize returns a NanoID policy generating keys of the given length.
func NanoIDSize(size int) Policy {
	return Policy{name: NameNanoID, gen: func() (any, error) {
		return gonanoid.New(size)
	}}
}

// Func returns a policy calling fn for every new key.
func Func(fn func() any) Policy {
	return Policy{name: NameFunc, gen: func() (any, error) {
		return fn(), nil
	}}
}

// Const returns a policy that always produces v. Mostly useful in tests.
func Const(v any) Policy {
	return Policy{name: NameConst, gen: func() (any, error) {
		return v, nil
	}}
}

// ByName returns the builtin policy registered under name.
func ByName(name string) (Policy, error) {
	switch name {
	case "", NameIncrement:
		return Increment, nil
	case NameUUID:
		return UUID, nil
	case NameULID:
		return ULID, nil
	case NameNanoID:
		return NanoID, nil
	}
	return Policy{}, fmt.Errorf("keygen: unknown policy %q", name)
}

// Name returns the policy name.
func (p Policy) Name() string {
	if p.gen == nil {
		return NameIncrement
	}
	return p.name
}

// Increment reports if the database assigns the key.
func (p Policy) Increment() bool { return p.gen == nil }

// Generate returns a fresh key, or nil for the Increment policy.
func (p Policy) Generate() (any, error) {
	if p.gen == nil {
		return nil, nil
	}
	v, err := p.gen()
	if err != nil {
		return nil, fmt.Errorf("keygen: %s: %w", p.name, err)
	}
	if s, ok := v.(string); !ok || s == "" {
		return nil, &InvalidKeyTypeError{Policy: p.name, Value: v}
	}
	return v, nil
}
