package tombstone

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/burugo/tombstone/internal/reflection"
	"github.com/burugo/tombstone/internal/schema"
)

// joinLink is one row of a many-to-many join table.
type joinLink struct {
	LocalID   int64 `db:"local_id"`
	RelatedID int64 `db:"related_id"`
}

// ownerKeyColumn is the owner column whose value identifies related rows.
func ownerKeyColumn(info *schema.ModelInfo, rel *schema.Relation) string {
	if rel.Kind == schema.BelongsTo {
		return rel.ForeignKey
	}
	if rel.LocalKey != "" {
		return rel.LocalKey
	}
	return info.PkName
}

// fetchRelated loads the rows of rel for every owner (each a *T value). It
// returns them flat, and grouped by the owner key they belong to. The read
// filter applies to the related table under opts.
func (s *Store) fetchRelated(ctx context.Context, info *schema.ModelInfo, rel *schema.Relation, owners []reflect.Value, opts Options) (reflect.Value, map[int64][]reflect.Value, error) {
	relInfo, err := schema.GetCachedModelInfo(rel.Related)
	if err != nil {
		return reflect.Value{}, nil, fmt.Errorf("failed to get model info for related type %s: %w", rel.Related.Name(), err)
	}
	grouped := make(map[int64][]reflect.Value)
	empty := reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(relInfo.Type)), 0, 0)

	keyCol := ownerKeyColumn(info, rel)
	if !info.HasColumn(keyCol) {
		return reflect.Value{}, nil, fmt.Errorf("key column %s for relation %s not found on %s", keyCol, rel.Name, info.Type.Name())
	}
	keys := uniqueKeys(owners, info, keyCol)
	if len(keys) == 0 {
		return empty, grouped, nil
	}

	switch rel.Kind {
	case schema.BelongsTo:
		rows, err := s.selectByColumn(ctx, relInfo, relInfo.PkName, keys, opts)
		if err != nil {
			return reflect.Value{}, nil, err
		}
		groupBy(rows, relInfo, relInfo.PkName, grouped)
		return rows, grouped, nil

	case schema.HasOne, schema.HasMany:
		if !relInfo.HasColumn(rel.ForeignKey) {
			return reflect.Value{}, nil, fmt.Errorf("foreign key %s for relation %s not found on %s", rel.ForeignKey, rel.Name, relInfo.Type.Name())
		}
		rows, err := s.selectByColumn(ctx, relInfo, rel.ForeignKey, keys, opts)
		if err != nil {
			return reflect.Value{}, nil, err
		}
		groupBy(rows, relInfo, rel.ForeignKey, grouped)
		return rows, grouped, nil

	case schema.ManyToMany:
		links, err := s.joinLinks(ctx, rel, keys, opts)
		if err != nil {
			return reflect.Value{}, nil, err
		}
		if len(links) == 0 {
			return empty, grouped, nil
		}
		seen := make(map[int64]bool, len(links))
		relatedIDs := make([]int64, 0, len(links))
		for _, l := range links {
			if !seen[l.RelatedID] {
				seen[l.RelatedID] = true
				relatedIDs = append(relatedIDs, l.RelatedID)
			}
		}
		rows, err := s.selectByColumn(ctx, relInfo, relInfo.PkName, relatedIDs, opts)
		if err != nil {
			return reflect.Value{}, nil, err
		}
		byID := make(map[int64][]reflect.Value, rows.Len())
		groupBy(rows, relInfo, relInfo.PkName, byID)
		for _, l := range links {
			grouped[l.LocalID] = append(grouped[l.LocalID], byID[l.RelatedID]...)
		}
		return rows, grouped, nil

	default:
		return reflect.Value{}, nil, fmt.Errorf("unsupported relation kind %s on %s.%s", rel.Kind, info.Type.Name(), rel.Name)
	}
}

func (s *Store) joinLinks(ctx context.Context, rel *schema.Relation, keys []int64, opts Options) ([]joinLink, error) {
	var out []joinLink
	for i := 0; i < len(keys); i += ByIDBatchSize {
		end := i + ByIDBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		query, args, err := squirrel.Select(rel.JoinLocalKey+" AS local_id", rel.JoinRelatedKey+" AS related_id").
			From(rel.JoinTable).
			Where(squirrel.Eq{rel.JoinLocalKey: keys[i:end]}).
			PlaceholderFormat(s.db.Placeholder()).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build join query for %s: %w", rel.JoinTable, err)
		}
		var batch []joinLink
		if err := s.executor(opts).Select(ctx, &batch, query, args...); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// load fetches rel for owners and assigns it to each owner's relation field.
func (s *Store) load(ctx context.Context, info *schema.ModelInfo, owners []reflect.Value, name string, opts Options) error {
	rel, ok := info.Relations[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownRelation, info.Type.Name(), name)
	}
	_, grouped, err := s.fetchRelated(ctx, info, rel, owners, opts)
	if err != nil {
		return fmt.Errorf("load %s.%s: %w", info.Type.Name(), name, err)
	}
	keyCol := ownerKeyColumn(info, rel)
	for _, owner := range owners {
		key, _ := reflection.ColumnInt64(owner.Elem(), info, keyCol)
		assignRelated(owner.Elem().FieldByIndex(rel.FieldIndex), rel, grouped[key])
	}
	s.logger.Debug("loaded relation",
		zap.String("table", info.TableName),
		zap.String("relation", name),
		zap.Int("owners", len(owners)),
		zap.Bool("eager", opts.eager),
	)
	return nil
}

// assignRelated stores rows (each a *R value) into a relation field.
func assignRelated(field reflect.Value, rel *schema.Relation, rows []reflect.Value) {
	if rel.Cardinality() == schema.One {
		if len(rows) == 0 {
			field.Set(reflect.Zero(field.Type()))
			return
		}
		field.Set(rows[0])
		return
	}
	out := reflect.MakeSlice(field.Type(), 0, len(rows))
	for _, r := range rows {
		if rel.SliceOfPtr() {
			out = reflect.Append(out, r)
		} else {
			out = reflect.Append(out, r.Elem())
		}
	}
	field.Set(out)
}

func uniqueKeys(owners []reflect.Value, info *schema.ModelInfo, column string) []int64 {
	seen := make(map[int64]bool, len(owners))
	keys := make([]int64, 0, len(owners))
	for _, o := range owners {
		k, ok := reflection.ColumnInt64(o.Elem(), info, column)
		if !ok || k == 0 || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func groupBy(rows reflect.Value, info *schema.ModelInfo, column string, into map[int64][]reflect.Value) {
	for i := 0; i < rows.Len(); i++ {
		row := rows.Index(i)
		if k, ok := reflection.ColumnInt64(row.Elem(), info, column); ok {
			into[k] = append(into[k], row)
		}
	}
}
