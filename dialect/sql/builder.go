package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/strata/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this package.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl. It tracks the
// dialect, the statement text and the bound arguments.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

// SetDialect sets the dialect of the builder.
func (b *Builder) SetDialect(name string) { b.dialect = name }

// WriteString writes raw text to the statement.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes a single byte to the statement.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad writes a single space.
func (b *Builder) Pad() *Builder { return b.WriteByte(' ') }

// Ident writes the given identifier quoted for the dialect. Qualified names
// ("posts.user_id") are quoted per part, "*" and expressions are written as-is.
func (b *Builder) Ident(name string) *Builder {
	b.sb.WriteString(b.quote(name))
	return b
}

// IdentComma writes a comma separated list of identifiers.
func (b *Builder) IdentComma(names ...string) *Builder {
	for i, n := range names {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(n)
	}
	return b
}

// Arg appends a bound argument and writes its placeholder.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.postgres() {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args appends a comma separated list of bound arguments.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

func (b *Builder) postgres() bool { return b.dialect == dialect.Postgres }

func (b *Builder) quote(name string) string {
	if name == "*" || strings.ContainsAny(name, "( `\"") {
		return name
	}
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p != "*" {
			parts[i] = q + p + q
		}
	}
	return strings.Join(parts, ".")
}

// Predicate is a condition written into a WHERE clause.
type Predicate func(*Builder)

// EQ returns a "=" predicate.
func EQ(col string, v any) Predicate { return compare(col, "=", v) }

// NEQ returns a "<>" predicate.
func NEQ(col string, v any) Predicate { return compare(col, "<>", v) }

// GT returns a ">" predicate.
func GT(col string, v any) Predicate { return compare(col, ">", v) }

// GTE returns a ">=" predicate.
func GTE(col string, v any) Predicate { return compare(col, ">=", v) }

// LT returns a "<" predicate.
func LT(col string, v any) Predicate { return compare(col, "<", v) }

// LTE returns a "<=" predicate.
func LTE(col string, v any) Predicate { return compare(col, "<=", v) }

// Like returns a "LIKE" predicate.
func Like(col, pattern string) Predicate { return compare(col, "LIKE", pattern) }

func compare(col, op string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(col).Pad().WriteString(op).Pad().Arg(v)
	}
}

// In returns an "IN" predicate. An empty list matches nothing.
func In(col string, vs ...any) Predicate {
	return func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Ident(col).WriteString(" IN (").Args(vs...).WriteByte(')')
	}
}

// NotIn returns a "NOT IN" predicate. An empty list matches everything.
func NotIn(col string, vs ...any) Predicate {
	return func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 1")
			return
		}
		b.Ident(col).WriteString(" NOT IN (").Args(vs...).WriteByte(')')
	}
}

// IsNull returns an "IS NULL" predicate.
func IsNull(col string) Predicate {
	return func(b *Builder) { b.Ident(col).WriteString(" IS NULL") }
}

// NotNull returns an "IS NOT NULL" predicate.
func NotNull(col string) Predicate {
	return func(b *Builder) { b.Ident(col).WriteString(" IS NOT NULL") }
}

// ColumnsEQ returns a predicate comparing two columns.
func ColumnsEQ(left, right string) Predicate {
	return func(b *Builder) { b.Ident(left).WriteString(" = ").Ident(right) }
}

// And groups the predicates with AND.
func And(ps ...Predicate) Predicate { return join("AND", ps) }

// Or groups the predicates with OR.
func Or(ps ...Predicate) Predicate { return join("OR", ps) }

// Not negates the given predicate.
func Not(p Predicate) Predicate {
	return func(b *Builder) {
		b.WriteString("NOT (")
		p(b)
		b.WriteByte(')')
	}
}

func join(op string, ps []Predicate) Predicate {
	return func(b *Builder) {
		b.WriteByte('(')
		for i, p := range ps {
			if i > 0 {
				b.Pad().WriteString(op).Pad()
			}
			p(b)
		}
		b.WriteByte(')')
	}
}

// Expr returns a raw predicate. Each "?" in expr is replaced by the
// placeholder of the next argument, so raw fragments stay parameterized.
func Expr(expr string, args ...any) Predicate {
	return func(b *Builder) {
		i := 0
		for _, r := range expr {
			if r == '?' && i < len(args) {
				b.Arg(args[i])
				i++
				continue
			}
			b.sb.WriteRune(r)
		}
	}
}

func writeWhere(b *Builder, ps []Predicate) {
	if len(ps) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	for i, p := range ps {
		if i > 0 {
			b.WriteString(" AND ")
		}
		p(b)
	}
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	dialect  string
	distinct bool
	columns  []selection
	from     string
	joins    []joinClause
	where    []Predicate
	order    []orderTerm
	limit    *int
	offset   *int
}

type selection struct {
	expr  string
	raw   bool
	alias string
}

type joinClause struct {
	table       string
	left, right string
}

type orderTerm struct {
	column string
	desc   bool
}

// Select returns a new selector for the `SELECT` statement.
//
//	s := sql.Select("id", "name").From("users").Where(sql.EQ("status", "active"))
func Select(columns ...string) *Selector {
	s := &Selector{}
	s.Select(columns...)
	return s
}

// Dialect sets the dialect of the statement.
func (s *Selector) Dialect(name string) *Selector {
	s.dialect = name
	return s
}

// Select replaces the selected columns.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = s.columns[:0]
	return s.AppendSelect(columns...)
}

// AppendSelect appends additional columns to the selection.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	for _, c := range columns {
		s.columns = append(s.columns, selection{expr: c})
	}
	return s
}

// AppendSelectAs appends a column with an alias.
func (s *Selector) AppendSelectAs(column, alias string) *Selector {
	s.columns = append(s.columns, selection{expr: column, alias: alias})
	return s
}

// SelectExpr replaces the selection with a raw expression, e.g. COUNT(*).
func (s *Selector) SelectExpr(expr string) *Selector {
	s.columns = []selection{{expr: expr, raw: true}}
	return s
}

// Distinct adds the DISTINCT keyword.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// From sets the source table.
func (s *Selector) From(table string) *Selector {
	s.from = table
	return s
}

// Table returns the source table.
func (s *Selector) Table() string { return s.from }

// Join appends an inner join on left = right.
func (s *Selector) Join(table, left, right string) *Selector {
	s.joins = append(s.joins, joinClause{table: table, left: left, right: right})
	return s
}

// Where appends predicates combined with AND.
func (s *Selector) Where(ps ...Predicate) *Selector {
	s.where = append(s.where, ps...)
	return s
}

// OrderBy appends an ascending order term.
func (s *Selector) OrderBy(columns ...string) *Selector {
	for _, c := range columns {
		s.order = append(s.order, orderTerm{column: c})
	}
	return s
}

// OrderByDesc appends a descending order term.
func (s *Selector) OrderByDesc(columns ...string) *Selector {
	for _, c := range columns {
		s.order = append(s.order, orderTerm{column: c, desc: true})
	}
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Query implements the Querier interface.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect}
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	}
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if c.raw {
			b.WriteString(c.expr)
		} else {
			b.Ident(c.expr)
		}
		if c.alias != "" {
			b.WriteString(" AS ").Ident(c.alias)
		}
	}
	b.WriteString(" FROM ").Ident(s.from)
	for _, j := range s.joins {
		b.WriteString(" JOIN ").Ident(j.table).WriteString(" ON ").Ident(j.left).WriteString(" = ").Ident(j.right)
	}
	writeWhere(b, s.where)
	for i, o := range s.order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.Ident(o.column)
		if o.desc {
			b.WriteString(" DESC")
		}
	}
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT " + strconv.Itoa(*s.limit))
	case s.offset != nil && s.dialect == dialect.MySQL:
		b.WriteString(" LIMIT 18446744073709551615")
	case s.offset != nil && s.dialect == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*s.offset))
	}
	return b.Query()
}

// InsertBuilder is a builder for the `INSERT INTO` statement.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    []any
	returning []string
}

// Insert creates a builder for the `INSERT INTO` statement.
//
//	sql.Insert("users").
//		Set("name", "a8m").
//		Set("age", 10)
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Dialect sets the dialect of the statement.
func (i *InsertBuilder) Dialect(name string) *InsertBuilder {
	i.dialect = name
	return i
}

// Set appends a column and its value.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// Supported by Postgres and SQLite.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query implements the Querier interface.
func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	b.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) > 0:
		b.WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES (").Args(i.values...).WriteByte(')')
	case i.dialect == dialect.MySQL:
		b.WriteString(" () VALUES ()")
	default:
		b.WriteString(" DEFAULT VALUES")
	}
	if len(i.returning) > 0 {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return b.Query()
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	dialect string
	table   string
	sets    []assignment
	where   []Predicate
}

type assignment struct {
	column string
	value  any
	add    bool
}

// Update creates a builder for the `UPDATE` statement.
//
//	sql.Update("users").Set("name", "foo").Set("age", 10)
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Dialect sets the dialect of the statement.
func (u *UpdateBuilder) Dialect(name string) *UpdateBuilder {
	u.dialect = name
	return u
}

// Set sets a column to a value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, assignment{column: column, value: v})
	return u
}

// Add adds a numeric value to the given column in place.
func (u *UpdateBuilder) Add(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, assignment{column: column, value: v, add: true})
	return u
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool { return len(u.sets) == 0 }

// Where appends predicates combined with AND.
func (u *UpdateBuilder) Where(ps ...Predicate) *UpdateBuilder {
	u.where = append(u.where, ps...)
	return u
}

// Query implements the Querier interface.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, a := range u.sets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(a.column).WriteString(" = ")
		if a.add {
			b.Ident(a.column).WriteString(" + ")
		}
		b.Arg(a.value)
	}
	writeWhere(b, u.where)
	return b.Query()
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	dialect string
	table   string
	where   []Predicate
}

// Delete creates a builder for the `DELETE` statement.
//
//	sql.Delete("users").Where(sql.EQ("id", 1))
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// Dialect sets the dialect of the statement.
func (d *DeleteBuilder) Dialect(name string) *DeleteBuilder {
	d.dialect = name
	return d
}

// Where appends predicates combined with AND.
func (d *DeleteBuilder) Where(ps ...Predicate) *DeleteBuilder {
	d.where = append(d.where, ps...)
	return d
}

// Query implements the Querier interface.
func (d *DeleteBuilder) Query() (string, []any) {
	b := &Builder{dialect: d.dialect}
	b.WriteString("DELETE FROM ").Ident(d.table)
	writeWhere(b, d.where)
	return b.Query()
}
