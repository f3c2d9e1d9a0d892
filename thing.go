package tombstone

import (
	"context"
	"fmt"
	"reflect"

	"github.com/burugo/tombstone/internal/reflection"
	"github.com/burugo/tombstone/internal/schema"
)

// --- Thing Core ---

// Thing is the typed access point for ORM operations on T.
// T must be a struct whose pointer implements Model, usually by embedding
// BaseModel or SoftDeleteModel.
type Thing[T any] struct {
	store *Store
	ctx   context.Context
	info  *schema.ModelInfo // Pre-computed metadata for type T
}

// Use returns a Thing for T bound to s.
func Use[T any](s *Store) (*Thing[T], error) {
	if s == nil {
		return nil, ErrDatabaseNotSet
	}
	modelType := reflect.TypeOf((*T)(nil)).Elem()
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type parameter must be a struct type, got %s", modelType)
	}
	if _, ok := any(new(T)).(Model); !ok {
		return nil, fmt.Errorf("*%s does not implement Model; embed tombstone.BaseModel", modelType.Name())
	}
	info, err := schema.GetCachedModelInfo(modelType)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info for type %s: %w", modelType.Name(), err)
	}
	if info.SoftDelete && !info.HasColumn(s.policy.Field()) {
		return nil, fmt.Errorf("%s soft deletes but maps no %q column", modelType.Name(), s.policy.Field())
	}
	return &Thing[T]{store: s, ctx: context.Background(), info: info}, nil
}

// WithContext returns a shallow copy of Thing with the context replaced.
func (t *Thing[T]) WithContext(ctx context.Context) *Thing[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	newThing := *t
	newThing.ctx = ctx
	return &newThing
}

// Info returns the cached metadata for T.
func (t *Thing[T]) Info() *schema.ModelInfo { return t.info }

// Events returns the event bus shared by every Thing[T] on the same Store.
func (t *Thing[T]) Events() *EventBus { return t.store.Events(t.info.Type) }

// --- Public Methods on *Thing[T] ---

// ByID retrieves a single record of type T. Soft-deleted rows are reported
// as ErrNotFound unless opts asks for them.
func (t *Thing[T]) ByID(id int64, opts ...Options) (*T, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	return t.First(QueryParams{
		Where: t.info.Qualified(t.info.PkName) + " = ?",
		Args:  []interface{}{id},
	}, opts...)
}

// First returns the first record matching params, or ErrNotFound.
func (t *Thing[T]) First(params QueryParams, opts ...Options) (*T, error) {
	params.Limit = 1
	params.Preloads = nil
	c, err := t.Query(params, opts...)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, ErrNotFound
	}
	return c.At(0), nil
}

// Query reads every record matching params and eagerly loads params.Preloads.
func (t *Thing[T]) Query(params QueryParams, opts ...Options) (*Collection[T], error) {
	o := firstOptions(opts)
	b := t.store.buildQuery(t.info, params, o)
	rows, err := t.store.selectModels(t.ctx, t.info, b, o)
	if err != nil {
		return nil, err
	}
	c := newCollection(t, rows.Interface().([]*T))
	for _, name := range params.Preloads {
		if err := t.loadEager(c.Models(), name, o); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// All reads every record of T.
func (t *Thing[T]) All(opts ...Options) (*Collection[T], error) {
	return t.Query(QueryParams{}, opts...)
}

// Count returns the number of records matching params.
func (t *Thing[T]) Count(params QueryParams, opts ...Options) (int64, error) {
	return t.store.count(t.ctx, t.info, params, firstOptions(opts))
}

// Save updates an existing record or creates a new one if its primary key is
// zero or it is explicitly marked as new. Timestamps are maintained.
// Only Options.Transacting is honored.
func (t *Thing[T]) Save(value *T, opts ...Options) error {
	if value == nil {
		return ErrNilModel
	}
	return t.store.save(t.ctx, t.info, value, firstOptions(opts))
}

// Destroy soft-deletes value when T soft deletes, and removes the row when it
// does not or when Options.HardDelete is set. Declared dependents are
// soft-deleted in the same transaction, if one is given.
func (t *Thing[T]) Destroy(value *T, opts ...Options) error {
	if value == nil {
		return ErrNilModel
	}
	return t.store.destroy(t.ctx, t.info, value, firstOptions(opts))
}

// Load eagerly fills the named relation on every model. Since the models
// are the parent's response, the related read is not soft-delete filtered.
func (t *Thing[T]) Load(models []*T, relation string, opts ...Options) error {
	return t.loadEager(models, relation, firstOptions(opts))
}

func (t *Thing[T]) loadEager(models []*T, relation string, opts Options) error {
	if len(models) == 0 {
		if _, ok := t.info.Relations[relation]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelation, t.info.Type.Name(), relation)
		}
		return nil
	}
	return t.store.load(t.ctx, t.info, ptrValues(models), relation, opts.eagerOptions(true))
}

// Related fetches the named relation of one model into its relation field,
// applying the read filter to the related table.
func (t *Thing[T]) Related(value *T, relation string, opts ...Options) error {
	if value == nil {
		return ErrNilModel
	}
	return t.store.load(t.ctx, t.info, ptrValues([]*T{value}), relation, firstOptions(opts))
}

// Changed returns the columns of value that differ from the state last read
// or written, with their current values.
func (t *Thing[T]) Changed(value *T) (map[string]interface{}, error) {
	if value == nil {
		return nil, ErrNilModel
	}
	return changed(t.info, value)
}

// Attributes returns the current column values of value.
func (t *Thing[T]) Attributes(value *T) (map[string]interface{}, error) {
	val, err := reflection.StructValue(value)
	if err != nil {
		return nil, err
	}
	return reflection.Attributes(val, t.info), nil
}

func ptrValues[T any](models []*T) []reflect.Value {
	out := make([]reflect.Value, 0, len(models))
	for _, m := range models {
		if m != nil {
			out = append(out, reflect.ValueOf(m))
		}
	}
	return out
}
