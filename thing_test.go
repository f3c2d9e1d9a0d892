package tombstone_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burugo/tombstone"
)

type notAModel struct {
	Name string `db:"name"`
}

func TestUse_Validation(t *testing.T) {
	env := setupTestEnv(t, nil)

	_, err := tombstone.Use[Customer](nil)
	assert.ErrorIs(t, err, tombstone.ErrDatabaseNotSet)

	_, err = tombstone.Use[notAModel](env.store)
	assert.Error(t, err)

	_, err = tombstone.Use[int](env.store)
	assert.Error(t, err)

	strict, err := tombstone.Open(tombstone.Config{
		DB:     env.db,
		Policy: tombstone.NewPolicy(tombstone.WithField("removed_at")),
	})
	require.NoError(t, err)
	_, err = tombstone.Use[Customer](strict)
	assert.Error(t, err, "soft-deletable type must map the marker column")

	_, err = tombstone.Use[Note](strict)
	assert.NoError(t, err, "plain types do not need the marker column")
}

func TestThing_SaveAndByID(t *testing.T) {
	env := setupTestEnv(t, nil)

	c := &Customer{Name: "Grace"}
	require.NoError(t, env.customers.Save(c))
	require.NotZero(t, c.ID)
	assert.False(t, c.IsNewRecord())
	assert.True(t, c.CreatedAt.Equal(fixedNow))
	assert.True(t, c.UpdatedAt.Equal(fixedNow))

	got, err := env.customers.ByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.Name)
	assert.Nil(t, got.DeletedAt)

	_, err = env.customers.ByID(0)
	assert.ErrorIs(t, err, tombstone.ErrInvalidID)

	_, err = env.customers.ByID(c.ID + 100)
	assert.ErrorIs(t, err, tombstone.ErrNotFound)
}

func TestThing_ExplicitIDInsert(t *testing.T) {
	env := setupTestEnv(t, nil)
	order, _ := env.seedOrder(t, 42, "A-42")

	assert.EqualValues(t, 42, order.ID)
	got, err := env.orders.ByID(42)
	require.NoError(t, err)
	assert.Equal(t, "A-42", got.Number)
}

func TestThing_ChangedTracksEdits(t *testing.T) {
	env := setupTestEnv(t, nil)
	c := &Customer{Name: "Linus"}
	require.NoError(t, env.customers.Save(c))

	loaded, err := env.customers.ByID(c.ID)
	require.NoError(t, err)
	diff, err := env.customers.Changed(loaded)
	require.NoError(t, err)
	assert.Empty(t, diff, "freshly loaded rows are clean")

	loaded.Name = "Linus T."
	diff, err = env.customers.Changed(loaded)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Linus T."}, diff)

	require.NoError(t, env.customers.Save(loaded))
	assert.Equal(t, "Linus", loaded.Previous()["name"])
	diff, err = env.customers.Changed(loaded)
	require.NoError(t, err)
	assert.Empty(t, diff)

	// Saving a clean model is a no-op.
	var updates int32
	env.customers.Events().On(tombstone.EventUpdated, func(ctx context.Context, ev *tombstone.Event) error {
		atomic.AddInt32(&updates, 1)
		return nil
	})
	require.NoError(t, env.customers.Save(loaded))
	assert.Zero(t, atomic.LoadInt32(&updates))

	attrs, err := env.customers.Attributes(loaded)
	require.NoError(t, err)
	assert.Equal(t, "Linus T.", attrs["name"])
	assert.Nil(t, attrs["deleted_at"])
}

func TestThing_QueryOrderLimitCount(t *testing.T) {
	env := setupTestEnv(t, nil)
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, env.customers.Save(&Customer{Name: n}))
	}

	c, err := env.customers.Query(tombstone.QueryParams{Order: "name ASC", Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "a", c.At(0).Name)
	assert.Equal(t, "b", c.At(1).Name)

	c, err = env.customers.Query(tombstone.QueryParams{Order: "name ASC", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "c", c.At(0).Name)

	first, err := env.customers.First(tombstone.QueryParams{Where: "name = ?", Args: []interface{}{"b"}})
	require.NoError(t, err)
	assert.Equal(t, "b", first.Name)

	_, err = env.customers.First(tombstone.QueryParams{Where: "name = ?", Args: []interface{}{"zzz"}})
	assert.ErrorIs(t, err, tombstone.ErrNotFound)

	require.NoError(t, env.customers.Destroy(first))
	n, err := env.customers.Count(tombstone.QueryParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = env.customers.Count(tombstone.QueryParams{}, withDeleted)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	all, err := env.customers.All()
	require.NoError(t, err)
	assert.Len(t, all.Models(), 2)
}

func TestThing_RelatedIsFilteredLoadIsNot(t *testing.T) {
	env := setupTestEnv(t, nil)
	order, items := env.seedOrder(t, 0, "rel")
	require.NoError(t, env.items.Destroy(items[0]))

	require.NoError(t, env.orders.Related(order, "Items"))
	require.Len(t, order.Items, 1)
	assert.Equal(t, items[1].ID, order.Items[0].ID)

	require.NoError(t, env.orders.Related(order, "Items", withDeleted))
	assert.Len(t, order.Items, 2)

	order.Items = nil
	require.NoError(t, env.orders.Load([]*Order{order}, "Items"))
	assert.Len(t, order.Items, 2, "eager loads under a parent response include marked rows")
}

func TestThing_LoadKinds(t *testing.T) {
	env := setupTestEnv(t, nil)
	customer := &Customer{Name: "Owner"}
	require.NoError(t, env.customers.Save(customer))

	order, _ := env.seedOrder(t, 0, "kinds")
	order.CustomerID = customer.ID
	require.NoError(t, env.orders.Save(order))

	c, err := env.orders.Query(tombstone.QueryParams{
		Where:    "id = ?",
		Args:     []interface{}{order.ID},
		Preloads: []string{"Customer", "Notes", "Tags", "Items"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	got := c.At(0)

	require.NotNil(t, got.Customer)
	assert.Equal(t, "Owner", got.Customer.Name)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "fragile", got.Notes[0].Body)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "kinds-tag", got.Tags[0].Label)
	assert.Len(t, got.Items, 2)

	err = env.orders.Load(nil, "Nope")
	assert.ErrorIs(t, err, tombstone.ErrUnknownRelation)
	assert.NoError(t, env.orders.Load(nil, "Items"))
	assert.ErrorIs(t, env.orders.Related(got, "Nope"), tombstone.ErrUnknownRelation)
}

func TestCollection_InvokeAndDestroy(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.seedOrder(t, 0, "one")
	env.seedOrder(t, 0, "two")

	orders, err := env.orders.All()
	require.NoError(t, err)
	require.Equal(t, 2, orders.Len())
	assert.Len(t, orders.IDs(), 2)

	var visited int32
	require.NoError(t, orders.Invoke(func(o *Order) error {
		atomic.AddInt32(&visited, 1)
		return nil
	}))
	assert.EqualValues(t, 2, visited)

	errStop := errors.New("stop")
	assert.ErrorIs(t, orders.Invoke(func(o *Order) error { return errStop }), errStop)

	require.NoError(t, orders.Load("Items"))
	for _, o := range orders.Models() {
		assert.Len(t, o.Items, 2)
	}

	require.NoError(t, orders.Destroy(tombstone.Options{Require: true}))
	n, err := env.orders.Count(tombstone.QueryParams{})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = env.items.Count(tombstone.QueryParams{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestThing_WithContext(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.customers.WithContext(ctx).All()
	assert.ErrorIs(t, err, context.Canceled)

	_, err = env.customers.WithContext(nil).All() //nolint:staticcheck
	assert.NoError(t, err)
}
