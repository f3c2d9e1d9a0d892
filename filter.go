package tombstone

import (
	"github.com/Masterminds/squirrel"

	"github.com/burugo/tombstone/internal/schema"
)

// applyReadFilter restricts b to rows whose marker column is NULL. The
// predicate is qualified with the table name so it stays correct in joins.
// It leaves b untouched for WithDeleted reads, models that do not soft
// delete, and eager sub-queries whose parent already returned rows.
func applyReadFilter(b squirrel.SelectBuilder, info *schema.ModelInfo, policy *Policy, opts Options) squirrel.SelectBuilder {
	if !shouldFilter(info, opts) {
		return b
	}
	return b.Where(squirrel.Eq{info.Qualified(policy.Field()): nil})
}

func shouldFilter(info *schema.ModelInfo, opts Options) bool {
	switch {
	case opts.WithDeleted:
		return false
	case !info.SoftDelete:
		return false
	case opts.eager && opts.parentResponse:
		return false
	}
	return true
}
