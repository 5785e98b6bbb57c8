// Package sql provides parameterized SQL statement builders and the
// database/sql backed implementation of dialect.Driver.
//
// # Builder Types
//
//   - Builder: low-level statement writer with identifier quoting and placeholders
//   - Selector: SELECT builder with joins, predicates, ordering and pagination
//   - InsertBuilder: INSERT builder with RETURNING support
//   - UpdateBuilder: UPDATE builder with SET, in-place increments and WHERE
//   - DeleteBuilder: DELETE builder with WHERE predicates
//
// Values are always bound as arguments. Placeholders follow the dialect:
//
//	sql.Select("id", "name").From("users").Dialect(dialect.Postgres).
//	    Where(sql.EQ("status", "active")).Query()
//	// SELECT "id", "name" FROM "users" WHERE "status" = $1
//
//	sql.Update("posts").Dialect(dialect.MySQL).
//	    Set("title", "hello").Add("version", 1).
//	    Where(sql.EQ("id", 7), sql.EQ("version", 3)).Query()
//	// UPDATE `posts` SET `title` = ?, `version` = `version` + ? WHERE `id` = ? AND `version` = ?
//
// # Predicates
//
//	sql.EQ("name", "john")           // name = ?
//	sql.NEQ("status", "deleted")     // status <> ?
//	sql.GT("age", 18)                // age > ?
//	sql.In("status", "a", "b")       // status IN (?, ?)
//	sql.IsNull("deleted_at")         // deleted_at IS NULL
//	sql.Or(sql.EQ("a", 1), sql.EQ("b", 2))
//	sql.Expr("lower(email) = ?", v)  // raw fragment, still parameterized
//
// # Drivers
//
// Driver adapts *database/sql.DB; StatsDriver and DebugDriver wrap a Driver
// to count statements and log them through zap.
package sql
