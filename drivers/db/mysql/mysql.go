// Package mysql provides the MySQL adapter (go-sql-driver/mysql).
package mysql

import (
	"time"

	"github.com/Masterminds/squirrel"
	driver "github.com/go-sql-driver/mysql"

	"github.com/burugo/tombstone/drivers/db/internal/sqlxdb"
)

// DialectName is reported by the adapter and used in logs.
const DialectName = "mysql"

// Option customizes the adapter; see the With* helpers.
type Option = sqlxdb.Option

// Adapter options re-exported for callers of this package.
var (
	WithLogger          = sqlxdb.WithLogger
	WithMaxOpenConns    = sqlxdb.WithMaxOpenConns
	WithMaxIdleConns    = sqlxdb.WithMaxIdleConns
	WithConnMaxLifetime = sqlxdb.WithConnMaxLifetime
)

// NewMySQLAdapter connects to dsn. parseTime is forced on so DATETIME
// columns scan into time.Time.
func NewMySQLAdapter(dsn string, opts ...Option) (*sqlxdb.Adapter, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	defaults := []Option{WithMaxOpenConns(25), WithMaxIdleConns(10), WithConnMaxLifetime(5 * time.Minute)}
	return sqlxdb.Open("mysql", DialectName, cfg.FormatDSN(), squirrel.Question, defaults, opts...)
}
