package tombstone

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/burugo/tombstone/internal/reflection"
	"github.com/burugo/tombstone/internal/schema"
)

// --- Constants used internally ---
const (
	ByIDBatchSize = 100 // Size of IN lists when fetching by key
)

const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

// --- Core Internal CRUD & Fetching Logic ---

// selectBuilder starts a read-filtered SELECT of every column of info.
func (s *Store) selectBuilder(info *schema.ModelInfo, opts Options) squirrel.SelectBuilder {
	b := squirrel.Select(info.Columns...).
		From(info.TableName).
		PlaceholderFormat(s.db.Placeholder())
	return applyReadFilter(b, info, s.policy, opts)
}

// selectModels runs b and returns a []*T value for info's type. Every
// returned model is marked persisted and clean.
func (s *Store) selectModels(ctx context.Context, info *schema.ModelInfo, b squirrel.SelectBuilder, opts Options) (reflect.Value, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return reflect.Value{}, fmt.Errorf("build select for %s: %w", info.TableName, err)
	}
	slicePtr := reflect.New(reflect.SliceOf(reflect.PointerTo(info.Type)))
	if err := s.executor(opts).Select(ctx, slicePtr.Interface(), query, args...); err != nil {
		return reflect.Value{}, err
	}
	slice := slicePtr.Elem()
	for i := 0; i < slice.Len(); i++ {
		s.markLoaded(info, slice.Index(i))
	}
	return slice, nil
}

// selectByColumn fetches rows whose column is in keys, batching the IN list.
func (s *Store) selectByColumn(ctx context.Context, info *schema.ModelInfo, column string, keys []int64, opts Options) (reflect.Value, error) {
	out := reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(info.Type)), 0, len(keys))
	for i := 0; i < len(keys); i += ByIDBatchSize {
		end := i + ByIDBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		b := s.selectBuilder(info, opts).
			Where(squirrel.Eq{info.Qualified(column): keys[i:end]}).
			OrderBy(info.Qualified(info.PkName))
		batch, err := s.selectModels(ctx, info, b, opts)
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.AppendSlice(out, batch)
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, info *schema.ModelInfo, params QueryParams, opts Options) (int64, error) {
	query, args, err := s.buildCount(info, params, opts).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count for %s: %w", info.TableName, err)
	}
	var n int64
	if err := s.executor(opts).Get(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// markLoaded resets tracking on a freshly scanned *T.
func (s *Store) markLoaded(info *schema.ModelInfo, ptr reflect.Value) {
	tr, ok := ptr.Interface().(tracker)
	if !ok {
		return
	}
	tr.resetTracking(reflection.Attributes(ptr.Elem(), info))
	if m, ok := ptr.Interface().(interface{ SetNewRecordFlag(bool) }); ok {
		m.SetNewRecordFlag(false)
	}
}

// changed lists columns whose value differs from the tracked snapshot.
// Without a snapshot every non-key column counts as changed.
func changed(info *schema.ModelInfo, model interface{}) (map[string]interface{}, error) {
	val, err := reflection.StructValue(model)
	if err != nil {
		return nil, err
	}
	var original map[string]interface{}
	if tr, ok := model.(tracker); ok {
		original = tr.trackedAttributes()
	}
	out := make(map[string]interface{})
	for _, f := range info.CompareFields {
		if f.DBColumn == info.PkName {
			continue
		}
		cur, _ := reflection.ColumnValue(val, info, f.DBColumn)
		if original != nil {
			if f.IgnoreInDiff {
				continue
			}
			if prev, ok := original[f.DBColumn]; ok && reflect.DeepEqual(prev, cur) {
				continue
			}
		}
		out[f.DBColumn] = val.FieldByIndex(f.Index).Interface()
	}
	return out, nil
}

// save inserts a new record or updates the changed columns of an existing one.
func (s *Store) save(ctx context.Context, info *schema.ModelInfo, model interface{}, opts Options) error {
	m, ok := model.(Model)
	if !ok {
		return fmt.Errorf("%T does not implement Model", model)
	}
	val, err := reflection.StructValue(model)
	if err != nil {
		return err
	}
	bus := s.Events(info.Type)
	isNew := m.GetID() == 0
	if nr, ok := model.(interface{ IsNewRecord() bool }); ok {
		isNew = nr.IsNewRecord()
	}

	attrs, err := changed(info, model)
	if err != nil {
		return err
	}
	base := Event{Model: model, Table: info.TableName, ID: m.GetID(), Attrs: attrs, Options: opts}

	// --- Before hooks abort the save ---
	if err := bus.Emit(ctx, eventOf(base, EventSaving)); err != nil {
		return fmt.Errorf("saving hook failed: %w", err)
	}
	before := EventUpdating
	if isNew {
		before = EventCreating
	}
	if err := bus.Emit(ctx, eventOf(base, before)); err != nil {
		return fmt.Errorf("%s hook failed: %w", before, err)
	}

	// Listeners may have changed the model.
	attrs, err = changed(info, model)
	if err != nil {
		return err
	}
	now := s.now()
	var result sql.Result
	if isNew {
		reflection.SetTimestamp(val, info, createdAtColumn, now)
		reflection.SetTimestamp(val, info, updatedAtColumn, now)
		result, err = s.insert(ctx, info, val, m, opts)
	} else {
		if len(attrs) == 0 {
			s.logger.Debug("no fields changed, skipping update",
				zap.String("table", info.TableName), zap.Int64("id", m.GetID()))
			return nil
		}
		reflection.SetTimestamp(val, info, updatedAtColumn, now)
		if info.HasColumn(updatedAtColumn) {
			attrs[updatedAtColumn], _ = reflection.ColumnValue(val, info, updatedAtColumn)
		}
		result, err = s.update(ctx, info, m.GetID(), attrs, opts)
	}
	if err != nil {
		s.logger.Error("save failed", zap.String("table", info.TableName), zap.Error(err))
		return fmt.Errorf("database save operation failed: %w", err)
	}

	var previous map[string]interface{}
	if tr, ok := model.(tracker); ok {
		previous = tr.trackedAttributes()
		tr.setPrevious(previous)
		tr.resetTracking(reflection.Attributes(val, info))
	}
	if nr, ok := model.(interface{ SetNewRecordFlag(bool) }); ok {
		nr.SetNewRecordFlag(false)
	}

	// --- After hooks are logged, not returned ---
	base.ID = m.GetID()
	base.Previous = previous
	base.Result = result
	after := EventUpdated
	if isNew {
		after = EventCreated
	}
	for _, name := range []EventName{after, EventSaved} {
		if err := bus.Emit(ctx, eventOf(base, name)); err != nil {
			s.logger.Warn("after-save hook failed",
				zap.String("event", string(name)), zap.String("table", info.TableName), zap.Error(err))
		}
	}
	return nil
}

func (s *Store) insert(ctx context.Context, info *schema.ModelInfo, val reflect.Value, m Model, opts Options) (sql.Result, error) {
	// An explicit key is written as is; otherwise the database assigns one.
	cols := make([]string, 0, len(info.Columns))
	for _, c := range info.Columns {
		if c != info.PkName || m.GetID() != 0 {
			cols = append(cols, c)
		}
	}
	vals, err := reflection.WriteValues(val, info, cols)
	if err != nil {
		return nil, err
	}
	b := squirrel.Insert(info.TableName).
		Columns(cols...).
		Values(vals...).
		PlaceholderFormat(s.db.Placeholder())

	// Postgres has no LastInsertId; read the key back instead.
	if s.db.DialectName() == "postgres" {
		query, args, err := b.Suffix("RETURNING " + info.PkName).ToSql()
		if err != nil {
			return nil, err
		}
		var id int64
		if err := s.executor(opts).Get(ctx, &id, query, args...); err != nil {
			return nil, err
		}
		m.SetID(id)
		return insertResult(id), nil
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	result, err := s.executor(opts).Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id for %s: %w", info.TableName, err)
	}
	m.SetID(id)
	return result, nil
}

// insertResult reports a single inserted row with a known key.
type insertResult int64

func (r insertResult) LastInsertId() (int64, error) { return int64(r), nil }
func (r insertResult) RowsAffected() (int64, error) { return 1, nil }

func (s *Store) update(ctx context.Context, info *schema.ModelInfo, id int64, attrs map[string]interface{}, opts Options) (sql.Result, error) {
	query, args, err := squirrel.Update(info.TableName).
		SetMap(attrs).
		Where(squirrel.Eq{info.PkName: id}).
		PlaceholderFormat(s.db.Placeholder()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update for %s: %w", info.TableName, err)
	}
	return s.executor(opts).Exec(ctx, query, args...)
}

// hardDelete is the physical delete path. It emits destroying and destroyed
// regardless of the Policy. A destroyed listener error is returned although
// the row is already gone.
func (s *Store) hardDelete(ctx context.Context, info *schema.ModelInfo, m Model, opts Options) error {
	bus := s.Events(info.Type)
	base := Event{Model: m, Table: info.TableName, ID: m.GetID(), Options: opts}
	if err := bus.Emit(ctx, eventOf(base, EventDestroying)); err != nil {
		return fmt.Errorf("destroying hook failed: %w", err)
	}

	query, args, err := squirrel.Delete(info.TableName).
		Where(squirrel.Eq{info.PkName: m.GetID()}).
		PlaceholderFormat(s.db.Placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete for %s: %w", info.TableName, err)
	}
	result, err := s.executor(opts).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := requireRows(result, info, m.GetID(), opts); err != nil {
		return err
	}
	s.logger.Debug("hard deleted", zap.String("table", info.TableName), zap.Int64("id", m.GetID()))

	if tr, ok := m.(tracker); ok {
		tr.setPrevious(tr.trackedAttributes())
	}
	base.Result = result
	if err := bus.Emit(ctx, eventOf(base, EventDestroyed)); err != nil {
		s.logger.Warn("destroyed hook failed", zap.String("table", info.TableName), zap.Error(err))
		return err
	}
	return nil
}

// requireRows turns a zero-row result into *NoRowsDeletedError when
// opts.Require is set.
func requireRows(result sql.Result, info *schema.ModelInfo, id int64, opts Options) error {
	if !opts.Require {
		return nil
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NoRowsDeletedError{Table: info.TableName, ID: id}
	}
	return nil
}

func eventOf(base Event, name EventName) *Event {
	ev := base
	ev.Name = name
	ev.Attrs = copyAttributes(base.Attrs)
	return &ev
}
