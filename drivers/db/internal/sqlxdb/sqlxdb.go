// Package sqlxdb is the sqlx-backed adapter shared by the SQL drivers.
package sqlxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/burugo/tombstone"
	"github.com/burugo/tombstone/common"
)

// Option customizes an Adapter.
type Option func(*settings)

type settings struct {
	logger          *zap.Logger
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// WithLogger sets the logger used for query tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *settings) { s.maxOpenConns = n }
}

// WithMaxIdleConns sets the idle pool size.
func WithMaxIdleConns(n int) Option {
	return func(s *settings) { s.maxIdleConns = n }
}

// WithConnMaxLifetime sets how long a connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *settings) { s.connMaxLifetime = d }
}

// Adapter implements tombstone.DBAdapter over *sqlx.DB.
type Adapter struct {
	db          *sqlx.DB
	dialect     string
	placeholder squirrel.PlaceholderFormat
	logger      *zap.Logger
	closeMx     sync.Mutex
	closed      bool
}

// Tx implements tombstone.Tx over *sqlx.Tx.
type Tx struct {
	tx      *sqlx.Tx
	dialect string
	logger  *zap.Logger
	mu      sync.Mutex
	done    bool
	// stmtMu serializes statements: a transaction owns one connection and
	// streaming drivers cannot interleave commands on it.
	stmtMu sync.Mutex
}

// Compile-time checks to ensure interfaces are implemented.
var (
	_ tombstone.DBAdapter = (*Adapter)(nil)
	_ tombstone.Tx        = (*Tx)(nil)
)

// Open connects with driverName, applies the pool settings and pings the
// database. defaults are applied before opts.
func Open(driverName, dialect, dsn string, placeholder squirrel.PlaceholderFormat, defaults []Option, opts ...Option) (*Adapter, error) {
	st := &settings{logger: zap.NewNop()}
	for _, o := range defaults {
		o(st)
	}
	for _, o := range opts {
		o(st)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}
	if st.maxOpenConns > 0 {
		db.SetMaxOpenConns(st.maxOpenConns)
	}
	if st.maxIdleConns > 0 {
		db.SetMaxIdleConns(st.maxIdleConns)
	}
	if st.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(st.connMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	logger := st.logger.With(zap.String("dialect", dialect))
	logger.Info("adapter initialized")
	return &Adapter{db: db, dialect: dialect, placeholder: placeholder, logger: logger}, nil
}

// Get scans a single row into dest. No row yields common.ErrNotFound.
func (a *Adapter) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if a.isClosed() {
		return common.ErrAdapterClosed
	}
	return get(ctx, a.db, a.logger, a.dialect, dest, query, args)
}

// Select scans every row into the slice dest points to.
func (a *Adapter) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if a.isClosed() {
		return common.ErrAdapterClosed
	}
	return selectRows(ctx, a.db, a.logger, a.dialect, dest, query, args)
}

// Exec runs a statement that returns no rows.
func (a *Adapter) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if a.isClosed() {
		return nil, common.ErrAdapterClosed
	}
	return exec(ctx, a.db, a.logger, query, args)
}

// BeginTx starts a transaction.
func (a *Adapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (tombstone.Tx, error) {
	if a.isClosed() {
		return nil, common.ErrAdapterClosed
	}
	tx, err := a.db.BeginTxx(ctx, opts)
	if err != nil {
		a.logger.Error("begin transaction failed", zap.Error(err))
		return nil, fmt.Errorf("%s BeginTx error: %w", a.dialect, err)
	}
	a.logger.Debug("transaction started")
	return &Tx{tx: tx, dialect: a.dialect, logger: a.logger}, nil
}

// Close closes the pool. Closing twice is a no-op.
func (a *Adapter) Close() error {
	a.closeMx.Lock()
	defer a.closeMx.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("error closing %s connection: %w", a.dialect, err)
	}
	a.logger.Info("adapter closed")
	return nil
}

// DB returns the underlying *sql.DB for advanced use cases.
func (a *Adapter) DB() *sql.DB { return a.db.DB }

// Placeholder returns the bind variable format of the dialect.
func (a *Adapter) Placeholder() squirrel.PlaceholderFormat { return a.placeholder }

// DialectName returns the name of the database dialect.
func (a *Adapter) DialectName() string { return a.dialect }

func (a *Adapter) isClosed() bool {
	a.closeMx.Lock()
	defer a.closeMx.Unlock()
	return a.closed
}

// --- Tx Methods ---

// Get executes a single-row query within the transaction.
func (tx *Tx) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if tx.isDone() {
		return common.ErrTransactionDone
	}
	tx.stmtMu.Lock()
	defer tx.stmtMu.Unlock()
	return get(ctx, tx.tx, tx.logger, tx.dialect, dest, query, args)
}

// Select executes a query within the transaction.
func (tx *Tx) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if tx.isDone() {
		return common.ErrTransactionDone
	}
	tx.stmtMu.Lock()
	defer tx.stmtMu.Unlock()
	return selectRows(ctx, tx.tx, tx.logger, tx.dialect, dest, query, args)
}

// Exec executes a statement within the transaction.
func (tx *Tx) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if tx.isDone() {
		return nil, common.ErrTransactionDone
	}
	tx.stmtMu.Lock()
	defer tx.stmtMu.Unlock()
	return exec(ctx, tx.tx, tx.logger, query, args)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if !tx.finish() {
		return common.ErrTransactionDone
	}
	if err := tx.tx.Commit(); err != nil {
		tx.logger.Error("commit failed", zap.Error(err))
		return fmt.Errorf("%s Tx Commit error: %w", tx.dialect, err)
	}
	tx.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls back the transaction. Rolling back a finished transaction
// is a no-op.
func (tx *Tx) Rollback() error {
	if !tx.finish() {
		return nil
	}
	if err := tx.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		tx.logger.Error("rollback failed", zap.Error(err))
		return fmt.Errorf("%s Tx Rollback error: %w", tx.dialect, err)
	}
	tx.logger.Debug("transaction rolled back")
	return nil
}

func (tx *Tx) isDone() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.done
}

// finish marks the transaction done and reports whether it was still open.
func (tx *Tx) finish() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return false
	}
	tx.done = true
	return true
}

// --- Shared query helpers ---

func get(ctx context.Context, q sqlx.QueryerContext, logger *zap.Logger, dialect string, dest interface{}, query string, args []interface{}) error {
	start := time.Now()
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	logQuery(logger, "get", query, args, start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s Get error: %w", dialect, err)
	}
	return nil
}

func selectRows(ctx context.Context, q sqlx.QueryerContext, logger *zap.Logger, dialect string, dest interface{}, query string, args []interface{}) error {
	start := time.Now()
	err := sqlx.SelectContext(ctx, q, dest, query, args...)
	logQuery(logger, "select", query, args, start, err)
	if err != nil {
		return fmt.Errorf("%s Select error: %w", dialect, err)
	}
	return nil
}

func exec(ctx context.Context, e sqlx.ExecerContext, logger *zap.Logger, query string, args []interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := e.ExecContext(ctx, query, args...)
	logQuery(logger, "exec", query, args, start, err)
	return result, err
}

func logQuery(logger *zap.Logger, op, query string, args []interface{}, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("query", query),
		zap.Any("args", args),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Warn("query failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("query", fields...)
}
