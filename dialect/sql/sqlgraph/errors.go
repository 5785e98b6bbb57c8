// Package sqlgraph classifies driver errors raised by constraint violations
// so that callers can react to them without depending on a specific driver.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind is the kind of a constraint violation.
type Kind int

// Constraint kinds.
const (
	KindNone Kind = iota
	KindUnique
	KindForeignKey
	KindCheck
	KindNotNull
)

func (k Kind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindForeignKey:
		return "foreign key"
	case KindCheck:
		return "check"
	case KindNotNull:
		return "not null"
	default:
		return "none"
	}
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlNotNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes, e.g. pgx.
type sqlStateError interface {
	SQLState() string
}

// Classify returns the constraint kind of err, or KindNone if err is not a
// constraint violation.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgKind(string(pqErr.Code))
	}
	if e, ok := asError[sqlStateError](err); ok {
		if k := pgKind(e.SQLState()); k != KindNone {
			return k
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlKind(myErr.Number)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if k := sqliteKind(liteErr.Code()); k != KindNone {
			return k
		}
	}
	// Fallback to string matching for drivers without typed errors.
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return KindUnique
	case containsAny(msg, "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return KindForeignKey
	case containsAny(msg, "Error 3819", "violates check constraint", "CHECK constraint failed"):
		return KindCheck
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return KindNotNull
	}
	return KindNone
}

func pgKind(code string) Kind {
	switch code {
	case pgUniqueViolation:
		return KindUnique
	case pgForeignKeyViolation:
		return KindForeignKey
	case pgCheckViolation:
		return KindCheck
	case pgNotNullViolation:
		return KindNotNull
	}
	return KindNone
}

func mysqlKind(n uint16) Kind {
	switch n {
	case mysqlDuplicateEntry:
		return KindUnique
	case mysqlForeignKeyParent, mysqlForeignKeyChild:
		return KindForeignKey
	case mysqlCheckConstraintViolate:
		return KindCheck
	case mysqlNotNull:
		return KindNotNull
	}
	return KindNone
}

func sqliteKind(code int) Kind {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return KindUnique
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return KindForeignKey
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return KindCheck
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return KindNotNull
	}
	return KindNone
}

// IsConstraintError reports if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool { return Classify(err) != KindNone }

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool { return Classify(err) == KindUnique }

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool { return Classify(err) == KindForeignKey }

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool { return Classify(err) == KindCheck }

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
