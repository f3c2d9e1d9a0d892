package tombstone

import (
	"golang.org/x/sync/errgroup"
)

// Collection is the ordered result of one query.
type Collection[T any] struct {
	thing  *Thing[T]
	models []*T
}

func newCollection[T any](t *Thing[T], models []*T) *Collection[T] {
	if models == nil {
		models = []*T{}
	}
	return &Collection[T]{thing: t, models: models}
}

// Models returns the members in query order.
func (c *Collection[T]) Models() []*T { return c.models }

// Len returns the number of members.
func (c *Collection[T]) Len() int { return len(c.models) }

// At returns the i-th member.
func (c *Collection[T]) At(i int) *T { return c.models[i] }

// IDs returns the primary keys of the members, in order.
func (c *Collection[T]) IDs() []int64 {
	ids := make([]int64, 0, len(c.models))
	for _, m := range c.models {
		ids = append(ids, any(m).(Model).GetID())
	}
	return ids
}

// Invoke runs fn on every member concurrently and waits for all of them.
// The first error is returned; members already running are not cancelled.
func (c *Collection[T]) Invoke(fn func(*T) error) error {
	var g errgroup.Group
	for _, m := range c.models {
		g.Go(func() error {
			return fn(m)
		})
	}
	return g.Wait()
}

// Destroy destroys every member with opts. Members are destroyed one at a
// time when opts carries a transaction.
func (c *Collection[T]) Destroy(opts ...Options) error {
	g := newFanOut(firstOptions(opts))
	for _, m := range c.models {
		g.Go(func() error {
			return c.thing.Destroy(m, opts...)
		})
	}
	return g.Wait()
}

// Load eagerly fills relation on every member.
func (c *Collection[T]) Load(relation string, opts ...Options) error {
	return c.thing.Load(c.models, relation, opts...)
}
