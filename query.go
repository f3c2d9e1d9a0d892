package tombstone

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/burugo/tombstone/internal/schema"
)

// QueryParams describes a collection read. Where is a SQL fragment with ?
// placeholders; it is rebound to the adapter's placeholder format.
type QueryParams struct {
	Where    string
	Args     []interface{}
	Order    string
	Limit    uint64
	Offset   uint64
	Preloads []string // Relation field names loaded eagerly after the read
}

// buildQuery turns params into a read-filtered SELECT.
func (s *Store) buildQuery(info *schema.ModelInfo, params QueryParams, opts Options) squirrel.SelectBuilder {
	b := s.selectBuilder(info, opts)
	if w := strings.TrimSpace(params.Where); w != "" {
		b = b.Where(w, params.Args...)
	}
	if params.Order != "" {
		b = b.OrderBy(params.Order)
	} else {
		b = b.OrderBy(info.Qualified(info.PkName))
	}
	if params.Limit > 0 {
		b = b.Limit(params.Limit)
	}
	if params.Offset > 0 {
		b = b.Offset(params.Offset)
	}
	return b
}

// buildCount turns params into a read-filtered COUNT(*).
func (s *Store) buildCount(info *schema.ModelInfo, params QueryParams, opts Options) squirrel.SelectBuilder {
	b := squirrel.Select("COUNT(*)").
		From(info.TableName).
		PlaceholderFormat(s.db.Placeholder())
	if w := strings.TrimSpace(params.Where); w != "" {
		b = b.Where(w, params.Args...)
	}
	return applyReadFilter(b, info, s.policy, opts)
}
