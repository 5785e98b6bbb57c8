package strata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
)

// Client is the entry point to the registered models. It is safe for
// concurrent use.
type Client struct {
	conn *conn
}

// config is shared by a client and the transactions it starts.
type config struct {
	driver   dialect.Driver
	registry *Registry
	logger   *zap.Logger
	clock    func() time.Time
}

// conn is an execution context: the client configuration and the executor
// statements run on, either the driver or an open transaction.
type conn struct {
	*config
	exec dialect.ExecQuerier
	tx   bool
}

type options struct {
	schemas  []Interface
	registry *Registry
	logger   *zap.Logger
	clock    func() time.Time
}

// Option configures the client.
type Option func(*options)

// WithSchemas registers the given schemas.
func WithSchemas(schemas ...Interface) Option {
	return func(o *options) {
		o.schemas = append(o.schemas, schemas...)
	}
}

// WithRegistry uses a pre-populated registry. Schemas passed with
// WithSchemas are added to it before it is resolved.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the clock used for timestamps. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// NewClient creates a client over the given driver and resolves the
// registered schemas.
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    return err
//	}
//	client, err := strata.NewClient(drv, strata.WithSchemas(User{}, Post{}))
func NewClient(drv dialect.Driver, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if len(o.schemas) > 0 {
		if err := o.registry.Register(o.schemas...); err != nil {
			return nil, err
		}
	}
	if err := o.registry.Resolve(); err != nil {
		return nil, err
	}
	cfg := &config{
		driver:   drv,
		registry: o.registry,
		logger:   o.logger,
		clock:    o.clock,
	}
	return &Client{conn: &conn{config: cfg, exec: drv}}, nil
}

// Registry returns the registry of the client.
func (c *Client) Registry() *Registry { return c.conn.registry }

// Driver returns the underlying driver.
func (c *Client) Driver() dialect.Driver { return c.conn.driver }

// Close closes the database connection and prevents new queries from starting.
func (c *Client) Close() error { return c.conn.driver.Close() }

// Model returns the client of the named model.
func (c *Client) Model(name string) (*ModelClient, error) {
	m, err := c.conn.registry.Model(name)
	if err != nil {
		return nil, err
	}
	return &ModelClient{model: m, conn: c.conn}, nil
}

// MustModel is like Model but panics if the model is not registered.
func (c *Client) MustModel(name string) *ModelClient {
	mc, err := c.Model(name)
	if err != nil {
		panic(err)
	}
	return mc
}

// Tx returns a new transactional client. Model clients obtained from it, and
// the records they produce, run on the transaction.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if c.conn.tx {
		return nil, ErrTxStarted
	}
	tx, err := c.conn.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("strata: starting a transaction: %w", err)
	}
	return &Tx{
		Client: &Client{conn: &conn{config: c.conn.config, exec: tx, tx: true}},
		tx:     tx,
	}, nil
}

// WithTx runs fn in a transaction. The transaction is rolled back if fn
// returns an error or panics, and committed otherwise.
//
//	err := client.WithTx(ctx, func(tx *strata.Tx) error {
//	    users := tx.MustModel("User")
//	    u, err := users.FindOrFail(ctx, id)
//	    if err != nil {
//	        return err
//	    }
//	    return u.Delete(ctx)
//	})
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			if err := tx.Rollback(); err != nil {
				c.conn.logger.Warn("strata: rollback after panic failed", zap.Error(err))
			}
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			c.conn.logger.Warn("strata: rollback failed", zap.Error(rerr))
			err = errors.Join(err, &RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("strata: committing transaction: %w", err)
	}
	return nil
}

// Tx is a transactional client.
type Tx struct {
	*Client
	tx dialect.Tx
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.tx.Commit() }

// Rollback rollbacks the transaction.
func (tx *Tx) Rollback() error { return tx.tx.Rollback() }

// ModelClient is the client of one model bound to an execution context.
type ModelClient struct {
	model *Model
	conn  *conn
}

// Model returns the model descriptor.
func (mc *ModelClient) Model() *Model { return mc.model }

// Make returns a new, unpersisted record. Declared defaults are applied to
// absent fields before attrs are assigned through Set.
func (mc *ModelClient) Make(attrs map[string]any) (*Record, error) {
	r := newRecord(mc.model, mc.conn)
	for _, name := range mc.model.columns {
		d := mc.model.fields[name]
		if _, ok := attrs[name]; !ok && d.HasDefault() {
			r.attributes[name] = d.DefaultValue()
		}
	}
	if err := r.Fill(attrs); err != nil {
		return nil, err
	}
	return r, nil
}

// Create makes a record and inserts it.
func (mc *ModelClient) Create(ctx context.Context, attrs map[string]any) (*Record, error) {
	r, err := mc.Make(attrs)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// FromRow materializes a persisted record from a database row. Values are
// coerced to the kinds of their fields.
func (mc *ModelClient) FromRow(row map[string]any) (*Record, error) {
	return materialize(mc.model, mc.conn, row)
}

// Query returns a query over the model.
func (mc *ModelClient) Query() *Query { return newQuery(mc.model, mc.conn) }

// Find returns the record with the given key, or nil if there is none.
func (mc *ModelClient) Find(ctx context.Context, key any) (*Record, error) {
	return mc.Query().Find(ctx, key)
}

// FindOrFail returns the record with the given key or a NotFoundError.
func (mc *ModelClient) FindOrFail(ctx context.Context, key any) (*Record, error) {
	return mc.Query().FindOrFail(ctx, key)
}

// All returns all visible records of the model.
func (mc *ModelClient) All(ctx context.Context) ([]*Record, error) {
	return mc.Query().All(ctx)
}

// Load eager loads the relation paths of a batch of records.
func (mc *ModelClient) Load(ctx context.Context, records []*Record, paths ...string) error {
	return eagerLoad(ctx, mc.conn, mc.model, records, paths)
}

// Bind returns a copy of the record bound to the execution context of the
// client. The original record is left untouched.
func (mc *ModelClient) Bind(r *Record) *Record {
	c := r.clone()
	c.conn = mc.conn
	return c
}

func (c *conn) dialect() string { return c.driver.Dialect() }

// query runs a select statement and scans its rows.
func (c *conn) query(ctx context.Context, q sql.Querier) ([]map[string]any, error) {
	query, args := q.Query()
	c.logger.Debug("strata: query", zap.String("query", query), zap.Any("args", args), zap.Bool("tx", c.tx))
	rows := &sql.Rows{}
	if err := c.exec.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return sql.ScanMaps(rows)
}

// value runs a select statement returning a single value.
func (c *conn) value(ctx context.Context, q sql.Querier, dest any) error {
	query, args := q.Query()
	c.logger.Debug("strata: query", zap.String("query", query), zap.Any("args", args), zap.Bool("tx", c.tx))
	rows := &sql.Rows{}
	if err := c.exec.Query(ctx, query, args, rows); err != nil {
		return err
	}
	return sql.ScanValue(rows, dest)
}

// execute runs a statement and returns the number of affected rows.
func (c *conn) execute(ctx context.Context, q sql.Querier) (int64, error) {
	res, err := c.result(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *conn) result(ctx context.Context, q sql.Querier) (sql.Result, error) {
	query, args := q.Query()
	c.logger.Debug("strata: exec", zap.String("query", query), zap.Any("args", args), zap.Bool("tx", c.tx))
	var res sql.Result
	if err := c.exec.Exec(ctx, query, args, &res); err != nil {
		return nil, constraintError(err)
	}
	return res, nil
}
