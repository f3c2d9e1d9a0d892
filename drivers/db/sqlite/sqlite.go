// Package sqlite provides the SQLite adapter (mattn/go-sqlite3).
package sqlite

import (
	"github.com/Masterminds/squirrel"

	"github.com/burugo/tombstone/drivers/db/internal/sqlxdb"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DialectName is reported by the adapter and used in logs.
const DialectName = "sqlite"

// Option customizes the adapter; see the With* helpers.
type Option = sqlxdb.Option

// Adapter options re-exported for callers of this package.
var (
	WithLogger          = sqlxdb.WithLogger
	WithMaxOpenConns    = sqlxdb.WithMaxOpenConns
	WithMaxIdleConns    = sqlxdb.WithMaxIdleConns
	WithConnMaxLifetime = sqlxdb.WithConnMaxLifetime
)

// NewSQLiteAdapter opens the database at dsn.
//
// The pool is limited to one connection by default: SQLite serializes
// writers, and a second connection would block behind an open transaction.
func NewSQLiteAdapter(dsn string, opts ...Option) (*sqlxdb.Adapter, error) {
	defaults := []Option{WithMaxOpenConns(1), WithMaxIdleConns(1)}
	return sqlxdb.Open("sqlite3", DialectName, dsn, squirrel.Question, defaults, opts...)
}
