package sql

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/syssam/strata/dialect"
)

// Kind classifies a statement by its leading keyword.
type Kind uint8

// Statement kinds.
const (
	KindOther Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	kindCount
)

var kindNames = [kindCount]string{"other", "select", "insert", "update", "delete"}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// StatementKind returns the kind of the statement.
func StatementKind(query string) Kind {
	word, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	switch strings.ToUpper(word) {
	case "SELECT", "WITH":
		return KindSelect
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	}
	return KindOther
}

// QueryStats holds statement counters. All counters are safe for
// concurrent use.
type QueryStats struct {
	// TotalQueries counts statements issued through Query, including
	// INSERT ... RETURNING.
	TotalQueries atomic.Int64
	// TotalExecs counts statements issued through Exec.
	TotalExecs atomic.Int64
	// TotalDuration is the time spent in the driver, in nanoseconds.
	TotalDuration atomic.Int64
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
	Commits       atomic.Int64
	Rollbacks     atomic.Int64
	kinds         [kindCount]atomic.Int64
}

// Kind returns the number of statements of kind k.
func (s *QueryStats) Kind(k Kind) int64 {
	if k >= kindCount {
		return 0
	}
	return s.kinds[k].Load()
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
		Commits:       s.Commits.Load(),
		Rollbacks:     s.Rollbacks.Load(),
		Selects:       s.Kind(KindSelect),
		Inserts:       s.Kind(KindInsert),
		Updates:       s.Kind(KindUpdate),
		Deletes:       s.Kind(KindDelete),
	}
}

// Reset zeroes all counters.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{
		&s.TotalQueries, &s.TotalExecs, &s.TotalDuration, &s.SlowQueries,
		&s.Errors, &s.Commits, &s.Rollbacks,
	} {
		c.Store(0)
	}
	for i := range s.kinds {
		s.kinds[i].Store(0)
	}
}

func (s *QueryStats) observe(kind Kind, isQuery bool, d time.Duration, err error) {
	if isQuery {
		s.TotalQueries.Add(1)
	} else {
		s.TotalExecs.Add(1)
	}
	s.kinds[kind].Add(1)
	s.TotalDuration.Add(int64(d))
	if err != nil {
		s.Errors.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	Commits       int64
	Rollbacks     int64
	Selects       int64
	Inserts       int64
	Updates       int64
	Deletes       int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d select=%d insert=%d update=%d delete=%d commit=%d rollback=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.Selects, s.Inserts, s.Updates, s.Deletes,
		s.Commits, s.Rollbacks, s.TotalDuration, s.AvgQueryDuration(), s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is called for every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver counts the statements and transactions passing through a
// Driver. Tests use it to assert how many round trips an operation costs.
type StatsDriver struct {
	dialect.Driver
	stats *QueryStats

	mu            sync.RWMutex
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets the callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to logger at warn level.
func WithSlowQueryLog(logger *zap.Logger) StatsOption {
	return WithSlowQueryHook(func(_ context.Context, query string, args []any, duration time.Duration) {
		logger.Warn("slow query detected",
			zap.Stringer("kind", StatementKind(query)),
			zap.Duration("duration", duration),
			zap.String("query", query),
			zap.Any("args", args),
		)
	})
}

// NewStatsDriver wraps drv with statement counters.
//
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	client, _ := strata.NewClient(stats, strata.WithSchemas(User{}))
//	...
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the live counters.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold. It is safe to call
// while statements are running.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.measure(ctx, query, args, true, func() error {
		return d.Driver.Query(ctx, query, args, v)
	})
}

func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.measure(ctx, query, args, false, func() error {
		return d.Driver.Exec(ctx, query, args, v)
	})
}

func (d *StatsDriver) measure(ctx context.Context, query string, args any, isQuery bool, run func() error) error {
	start := time.Now()
	err := run()
	elapsed := time.Since(start)
	d.stats.observe(StatementKind(query), isQuery, elapsed, err)

	d.mu.RLock()
	threshold, hook := d.slowThreshold, d.slowHook
	d.mu.RUnlock()
	if elapsed > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			argv, _ := args.([]any)
			hook(ctx, query, argv, elapsed)
		}
	}
	return err
}

// Tx starts a transaction whose statements and outcome are counted.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx is a transaction started by a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.measure(ctx, query, args, true, func() error {
		return tx.Tx.Query(ctx, query, args, v)
	})
}

func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.measure(ctx, query, args, false, func() error {
		return tx.Tx.Exec(ctx, query, args, v)
	})
}

// Commit commits the transaction. Only successful commits are counted.
func (tx *StatsTx) Commit() error {
	if err := tx.Tx.Commit(); err != nil {
		return err
	}
	tx.driver.stats.Commits.Add(1)
	return nil
}

// Rollback rolls the transaction back and counts the attempt.
func (tx *StatsTx) Rollback() error {
	tx.driver.stats.Rollbacks.Add(1)
	return tx.Tx.Rollback()
}

// DebugDriver logs every statement after it ran, with its duration and
// error.
type DebugDriver struct {
	dialect.Driver
	logger *zap.Logger
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger statements are written to.
func DebugWithLogger(logger *zap.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.logger = logger
	}
}

// NewDebugDriver wraps drv with statement logging at debug level. The
// default logger is zap.L().
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	return logStatement(d.logger, "query", query, args, func() error {
		return d.Driver.Query(ctx, query, args, v)
	})
}

func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	return logStatement(d.logger, "exec", query, args, func() error {
		return d.Driver.Exec(ctx, query, args, v)
	})
}

// Tx starts a transaction whose statements are logged.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.logger.Debug("begin transaction", zap.Error(err))
		return nil, err
	}
	d.logger.Debug("begin transaction")
	return &DebugTx{Tx: tx, logger: d.logger}, nil
}

// DebugTx is a transaction started by a DebugDriver.
type DebugTx struct {
	dialect.Tx
	logger *zap.Logger
}

func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	return logStatement(tx.logger, "tx query", query, args, func() error {
		return tx.Tx.Query(ctx, query, args, v)
	})
}

func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	return logStatement(tx.logger, "tx exec", query, args, func() error {
		return tx.Tx.Exec(ctx, query, args, v)
	})
}

func (tx *DebugTx) Commit() error {
	err := tx.Tx.Commit()
	tx.logger.Debug("commit transaction", zap.Error(err))
	return err
}

func (tx *DebugTx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.logger.Debug("rollback transaction", zap.Error(err))
	return err
}

func logStatement(logger *zap.Logger, msg, query string, args any, run func() error) error {
	start := time.Now()
	err := run()
	logger.Debug(msg,
		zap.Stringer("kind", StatementKind(query)),
		zap.String("query", query),
		zap.Any("args", args),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
