package tombstone_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/burugo/tombstone"
	"github.com/burugo/tombstone/drivers/db/sqlite"
)

// --- Test Models ---

type Customer struct {
	tombstone.SoftDeleteModel
	Name string `db:"name"`
}

func (*Customer) TableName() string { return "customers" }

type Order struct {
	tombstone.SoftDeleteModel
	Number     string    `db:"number"`
	Active     *bool     `db:"active"`
	CustomerID int64     `db:"customer_id"`
	Customer   *Customer `db:"-" thing:"belongsTo;fk:customer_id"`
	Items      []*Item   `db:"-" thing:"hasMany;fk:order_id"`
	Notes      []Note    `db:"-" thing:"hasMany;fk:order_id"`
	Tags       []*Tag    `db:"-" thing:"manyToMany;joinTable:order_tags;joinLocalKey:order_id;joinRelatedKey:tag_id"`
}

func (*Order) TableName() string     { return "orders" }
func (*Order) Dependents() []string { return []string{"Items", "Notes", "Tags"} }

type Item struct {
	tombstone.SoftDeleteModel
	OrderID int64   `db:"order_id"`
	Name    string  `db:"name"`
	Active  *bool   `db:"active"`
	Parts   []*Part `db:"-" thing:"hasMany;fk:item_id"`
}

func (*Item) TableName() string     { return "items" }
func (*Item) Dependents() []string { return []string{"Parts"} }

type Part struct {
	tombstone.SoftDeleteModel
	ItemID int64  `db:"item_id"`
	Name   string `db:"name"`
}

func (*Part) TableName() string { return "parts" }

// Note does not soft delete.
type Note struct {
	tombstone.BaseModel
	OrderID int64  `db:"order_id"`
	Body    string `db:"body"`
}

func (*Note) TableName() string { return "notes" }

type Tag struct {
	tombstone.SoftDeleteModel
	Label string `db:"label"`
}

func (*Tag) TableName() string { return "tags" }

var schemaDDL = []string{
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		name TEXT
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		number TEXT,
		active BOOLEAN,
		customer_id INTEGER
	)`,
	`CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		order_id INTEGER,
		name TEXT,
		active BOOLEAN
	)`,
	`CREATE TABLE parts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		item_id INTEGER,
		name TEXT
	)`,
	`CREATE TABLE notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		order_id INTEGER,
		body TEXT
	)`,
	`CREATE TABLE tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		label TEXT
	)`,
	`CREATE TABLE order_tags (
		order_id INTEGER,
		tag_id INTEGER
	)`,
}

// fixedNow is the clock of every test store.
var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type testEnv struct {
	db        tombstone.DBAdapter
	store     *tombstone.Store
	customers *tombstone.Thing[Customer]
	orders    *tombstone.Thing[Order]
	items     *tombstone.Thing[Item]
	parts     *tombstone.Thing[Part]
	notes     *tombstone.Thing[Note]
	tags      *tombstone.Thing[Tag]
}

// setupTestEnv creates a file-backed SQLite database in a temp dir with the
// test schema and a Store using policy (nil for defaults).
func setupTestEnv(tb testing.TB, policy *tombstone.Policy) *testEnv {
	tb.Helper()
	logger := zaptest.NewLogger(tb)

	dsn := filepath.Join(tb.TempDir(), "tombstone_test.db")
	adapter, err := sqlite.NewSQLiteAdapter(dsn, sqlite.WithLogger(logger))
	require.NoError(tb, err, "Failed to create SQLite adapter")
	tb.Cleanup(func() {
		if err := adapter.Close(); err != nil {
			tb.Logf("Error closing test DB adapter: %v", err)
		}
	})

	for _, ddl := range schemaDDL {
		_, err := adapter.Exec(context.Background(), ddl)
		require.NoError(tb, err, "Failed to create table")
	}

	store, err := tombstone.Open(tombstone.Config{
		DB:     adapter,
		Policy: policy,
		Logger: logger,
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(tb, err)

	env := &testEnv{db: adapter, store: store}
	env.customers = mustUse[Customer](tb, store)
	env.orders = mustUse[Order](tb, store)
	env.items = mustUse[Item](tb, store)
	env.parts = mustUse[Part](tb, store)
	env.notes = mustUse[Note](tb, store)
	env.tags = mustUse[Tag](tb, store)
	return env
}

func mustUse[T any](tb testing.TB, s *tombstone.Store) *tombstone.Thing[T] {
	tb.Helper()
	th, err := tombstone.Use[T](s)
	require.NoError(tb, err)
	return th
}

func boolPtr(b bool) *bool { return &b }

// seedOrder saves an order with two items, one part per item, a note and a
// tag link.
func (e *testEnv) seedOrder(tb testing.TB, id int64, number string) (*Order, []*Item) {
	tb.Helper()
	order := &Order{Number: number, Active: boolPtr(true)}
	if id != 0 {
		order.ID = id
		order.SetNewRecordFlag(true)
	}
	require.NoError(tb, e.orders.Save(order))

	var items []*Item
	for _, name := range []string{"widget", "gadget"} {
		item := &Item{OrderID: order.ID, Name: name, Active: boolPtr(true)}
		require.NoError(tb, e.items.Save(item))
		require.NoError(tb, e.parts.Save(&Part{ItemID: item.ID, Name: name + "-part"}))
		items = append(items, item)
	}
	require.NoError(tb, e.notes.Save(&Note{OrderID: order.ID, Body: "fragile"}))

	tag := &Tag{Label: number + "-tag"}
	require.NoError(tb, e.tags.Save(tag))
	_, err := e.db.Exec(context.Background(), "INSERT INTO order_tags (order_id, tag_id) VALUES (?, ?)", order.ID, tag.ID)
	require.NoError(tb, err)
	return order, items
}

func byOrder(id int64) tombstone.QueryParams {
	return tombstone.QueryParams{Where: "order_id = ?", Args: []interface{}{id}}
}

var withDeleted = tombstone.Options{WithDeleted: true}
