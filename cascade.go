package tombstone

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/burugo/tombstone/internal/schema"
)

// cascade soft-deletes the declared dependents of model. Without a
// transaction, relations run concurrently, and so do the rows of each
// relation; cascade returns once all of them have settled. Statements on a
// transaction share one connection, so they run one at a time. Only the
// transaction is carried into the nested deletes.
func (s *Store) cascade(ctx context.Context, info *schema.ModelInfo, model interface{}, opts Options) error {
	if len(info.Dependents) == 0 {
		return nil
	}
	copts := opts.cascadeOptions()
	owner := reflect.ValueOf(model)

	// Every relation is resolved before any delete starts.
	type target struct {
		rel     *schema.Relation
		relInfo *schema.ModelInfo
	}
	targets := make([]target, 0, len(info.Dependents))
	for _, name := range info.Dependents {
		rel, ok := info.Relations[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelation, info.Type.Name(), name)
		}
		if !cascades(rel) {
			continue
		}
		relInfo, err := schema.GetCachedModelInfo(rel.Related)
		if err != nil {
			return fmt.Errorf("cascade %s.%s: %w", info.Type.Name(), name, err)
		}
		if !relInfo.SoftDelete {
			s.logger.Debug("cascade skipped, related type does not soft delete",
				zap.String("table", info.TableName), zap.String("relation", name))
			continue
		}
		targets = append(targets, target{rel: rel, relInfo: relInfo})
	}

	g := newFanOut(copts)
	for _, tg := range targets {
		g.Go(func() error {
			return s.cascadeRelation(ctx, info, tg.rel, tg.relInfo, owner, copts)
		})
	}
	return g.Wait()
}

// cascades reports whether soft deletes follow rel. Rows reached through a
// join table are not owned by the parent and are left alone.
func cascades(rel *schema.Relation) bool {
	switch rel.Kind {
	case schema.ManyToMany:
		return false
	case schema.BelongsTo, schema.HasOne, schema.HasMany:
		return true
	default:
		panic(fmt.Sprintf("tombstone: unhandled relation kind %s", rel.Kind))
	}
}

func (s *Store) cascadeRelation(ctx context.Context, info *schema.ModelInfo, rel *schema.Relation, relInfo *schema.ModelInfo, owner reflect.Value, opts Options) error {
	rows, _, err := s.fetchRelated(ctx, info, rel, []reflect.Value{owner}, opts)
	if err != nil {
		return fmt.Errorf("cascade %s.%s: %w", info.Type.Name(), rel.Name, err)
	}
	if rows.Len() == 0 {
		return nil
	}
	s.logger.Debug("cascading soft delete",
		zap.String("table", info.TableName),
		zap.String("relation", rel.Name),
		zap.Int("rows", rows.Len()),
	)
	return invokeAll(rows, opts, func(row reflect.Value) error {
		return s.destroy(ctx, relInfo, row.Interface(), opts)
	})
}

// invokeAll runs fn for every element of slice and waits for all of them.
// The first error is returned; siblings are not cancelled.
func invokeAll(slice reflect.Value, opts Options, fn func(reflect.Value) error) error {
	g := newFanOut(opts)
	for i := 0; i < slice.Len(); i++ {
		elem := slice.Index(i)
		g.Go(func() error {
			return fn(elem)
		})
	}
	return g.Wait()
}

// fanOut runs tasks concurrently, or in order when they share a
// transaction.
type fanOut struct {
	sequential bool
	err        error
	g          errgroup.Group
}

func newFanOut(opts Options) *fanOut {
	return &fanOut{sequential: opts.Transacting != nil}
}

// Go starts fn. In sequential mode fn runs before Go returns and every task
// still runs after a failure, matching the concurrent mode.
func (f *fanOut) Go(fn func() error) {
	if !f.sequential {
		f.g.Go(fn)
		return
	}
	if err := fn(); err != nil && f.err == nil {
		f.err = err
	}
}

// Wait returns the first error.
func (f *fanOut) Wait() error {
	if f.sequential {
		return f.err
	}
	return f.g.Wait()
}
