package tombstone

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/burugo/tombstone/internal/reflection"
	"github.com/burugo/tombstone/internal/schema"
)

// destroy soft-deletes model, or removes it when the type does not soft
// delete or opts.HardDelete is set.
//
// The soft path runs in a fixed sequence: pre-events, one UPDATE on the
// caller's executor, the Require check, the in-memory update, post-events,
// then the cascade. Nothing is compensated on failure; only a caller-owned
// transaction can undo a marker that was already written.
func (s *Store) destroy(ctx context.Context, info *schema.ModelInfo, model interface{}, opts Options) error {
	if _, err := reflection.StructValue(model); err != nil {
		return ErrNilModel
	}
	m, ok := model.(Model)
	if !ok {
		return fmt.Errorf("%T does not implement Model", model)
	}
	if !info.SoftDelete || opts.HardDelete {
		return s.hardDelete(ctx, info, m, opts)
	}
	if !info.HasColumn(s.policy.Field()) {
		return fmt.Errorf("%s is soft-deletable but maps no %q column", info.Type.Name(), s.policy.Field())
	}

	id := m.GetID()
	bus := s.Events(info.Type)
	values := s.markerValues(info)
	attrs := formatAttributes(model, values)

	pre := s.policy.enabled(preDeleteEvents)
	err := bus.emitAll(ctx, pre, func(name EventName) *Event {
		ev := &Event{Name: name, Model: model, Table: info.TableName, ID: id, Options: opts}
		if name != EventDestroying {
			ev.Attrs = copyAttributes(attrs)
		}
		return ev
	})
	if err != nil {
		return err
	}

	query, args, err := squirrel.Update(info.TableName).
		SetMap(attrs).
		Where(squirrel.Eq{info.PkName: id}).
		PlaceholderFormat(s.db.Placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete for %s: %w", info.TableName, err)
	}
	result, err := s.executor(opts).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := requireRows(result, info, id, opts); err != nil {
		return err
	}
	s.logger.Debug("soft deleted",
		zap.String("table", info.TableName),
		zap.Int64("id", id),
		zap.Bool("transacting", opts.Transacting != nil),
	)

	if s.policy.EventsEnabled() {
		previous, err := applyMarker(info, model, values, attrs)
		if err != nil {
			return err
		}
		post := s.policy.enabled(postDeleteEvents)
		err = bus.emitAll(ctx, post, func(name EventName) *Event {
			return &Event{
				Name:     name,
				Model:    model,
				Table:    info.TableName,
				ID:       id,
				Previous: copyAttributes(previous),
				Result:   result,
				Options:  opts,
			}
		})
		if err != nil {
			return err
		}
	}

	return s.cascade(ctx, info, model, opts)
}

// markerValues returns the Go values written on soft delete: the current
// time for the marker and nil for the sentinel, when the model maps one.
func (s *Store) markerValues(info *schema.ModelInfo) map[string]interface{} {
	values := map[string]interface{}{s.policy.Field(): s.now()}
	if sentinel := s.policy.Sentinel(); sentinel != "" && info.HasColumn(sentinel) {
		values[sentinel] = nil
	}
	return values
}

// formatAttributes converts values to their column form. Times are stored in
// UTC unless the model formats its own attributes.
func formatAttributes(model interface{}, values map[string]interface{}) map[string]interface{} {
	attrs := make(map[string]interface{}, len(values))
	for k, v := range values {
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		attrs[k] = v
	}
	if f, ok := model.(AttributeFormatter); ok {
		if formatted := f.FormatAttributes(attrs); formatted != nil {
			return formatted
		}
	}
	return attrs
}

// applyMarker writes the stored attrs onto the struct, resets change
// tracking and returns the attributes the model held before. A formatted
// value the field cannot hold falls back to the raw value, with times in UTC.
func applyMarker(info *schema.ModelInfo, model interface{}, values, attrs map[string]interface{}) (map[string]interface{}, error) {
	val, err := reflection.StructValue(model)
	if err != nil {
		return nil, err
	}
	previous := reflection.Attributes(val, info)
	for col, raw := range values {
		if t, ok := raw.(time.Time); ok {
			raw = t.UTC()
		}
		if stored, ok := attrs[col]; ok {
			if reflection.SetAttribute(val, info, col, stored) == nil {
				continue
			}
		}
		if err := reflection.SetAttribute(val, info, col, raw); err != nil {
			return nil, err
		}
	}
	if tr, ok := model.(tracker); ok {
		tr.setPrevious(previous)
		tr.resetTracking(reflection.Attributes(val, info))
	}
	return previous, nil
}
