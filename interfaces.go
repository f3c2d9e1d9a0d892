// interfaces.go
// Core interfaces for tombstone: Executor, DBAdapter, Tx, Model, SoftDeletable.
// These are public and intended for use by users and driver developers.

package tombstone

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
)

// Executor is the query surface shared by adapters and transactions.
// Get returns common.ErrNotFound when no row matches.
type Executor interface {
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DBAdapter defines the interface for database drivers.
type DBAdapter interface {
	Executor
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
	Close() error
	DB() *sql.DB
	// Placeholder is the bind variable format used when building statements.
	Placeholder() squirrel.PlaceholderFormat
	DialectName() string
}

// Tx defines the interface for transaction operations.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Model defines the basic requirements for a struct managed by the ORM.
// Embedding BaseModel satisfies it.
type Model interface {
	GetID() int64
	SetID(id int64)
	TableName() string
}

// SoftDeletable marks models whose Destroy writes a deletion marker instead
// of removing the row. Embedding SoftDeleteModel satisfies it.
type SoftDeletable interface {
	Model
	SoftDeletes() bool
}

// DependentsDeclarer lists relation field names that are soft-deleted
// together with the model.
type DependentsDeclarer interface {
	Dependents() []string
}

// AttributeFormatter lets a model convert attribute values into the form its
// columns are stored in before a marker write.
type AttributeFormatter interface {
	FormatAttributes(attrs map[string]interface{}) map[string]interface{}
}
