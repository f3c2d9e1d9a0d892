package tombstone

import (
	"errors"
	"fmt"

	"github.com/burugo/tombstone/common"
)

// ErrNotFound is returned when a requested record is not found.
var ErrNotFound = common.ErrNotFound

// Additional package-level errors
var (
	// ErrNoRowsDeleted matches every *NoRowsDeletedError via errors.Is.
	ErrNoRowsDeleted   = errors.New("tombstone: no rows deleted")
	ErrInvalidID       = common.ErrInvalidID
	ErrModelNotSet     = common.ErrModelNotSet
	ErrDatabaseNotSet  = common.ErrDatabaseNotSet
	ErrTransactionDone = common.ErrTransactionDone
	ErrNilModel        = errors.New("tombstone: nil model")
	ErrUnknownRelation = errors.New("tombstone: unknown relation")
	ErrUnknownEvent    = errors.New("tombstone: unknown event name")
)

// NoRowsDeletedError is returned by Destroy with Options.Require when the
// write matched no row. No in-memory state or post-event follows it.
type NoRowsDeletedError struct {
	Table string
	ID    int64
}

func (e *NoRowsDeletedError) Error() string {
	return fmt.Sprintf("tombstone: no rows deleted from %s for id %d", e.Table, e.ID)
}

// Is reports ErrNoRowsDeleted as a match.
func (e *NoRowsDeletedError) Is(target error) bool {
	return target == ErrNoRowsDeleted
}
