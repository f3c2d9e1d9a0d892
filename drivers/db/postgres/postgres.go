// Package postgres provides the PostgreSQL adapter (lib/pq).
package postgres

import (
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/burugo/tombstone/drivers/db/internal/sqlxdb"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DialectName is reported by the adapter. The ORM reads inserted keys back
// with RETURNING under this dialect.
const DialectName = "postgres"

// Option customizes the adapter; see the With* helpers.
type Option = sqlxdb.Option

// Adapter options re-exported for callers of this package.
var (
	WithLogger          = sqlxdb.WithLogger
	WithMaxOpenConns    = sqlxdb.WithMaxOpenConns
	WithMaxIdleConns    = sqlxdb.WithMaxIdleConns
	WithConnMaxLifetime = sqlxdb.WithConnMaxLifetime
)

// NewPostgreSQLAdapter connects to dsn. Statements use $n placeholders.
func NewPostgreSQLAdapter(dsn string, opts ...Option) (*sqlxdb.Adapter, error) {
	defaults := []Option{WithMaxOpenConns(25), WithMaxIdleConns(10), WithConnMaxLifetime(time.Hour)}
	return sqlxdb.Open("postgres", DialectName, dsn, squirrel.Dollar, defaults, opts...)
}
