package common

import "errors"

// ErrNotFound is returned when a requested record does not exist, or exists
// only as a soft-deleted row and the read did not ask for deleted rows.
var ErrNotFound = errors.New("tombstone: requested item not found")

// Additional package-level errors
var (
	ErrAdapterClosed   = errors.New("tombstone: database adapter is closed")
	ErrInvalidID       = errors.New("tombstone: invalid ID, must be > 0")
	ErrModelNotSet     = errors.New("tombstone: model not set")
	ErrDatabaseNotSet  = errors.New("tombstone: database adapter not set")
	ErrTransactionDone = errors.New("tombstone: transaction has already been committed or rolled back")
)
