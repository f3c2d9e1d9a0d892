package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/burugo/tombstone/drivers/db/sqlite"
)

func TestSQLiteAdapter_TransactionConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.NewSQLiteAdapter(filepath.Join(t.TempDir(), "txc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(ctx, "CREATE TABLE things (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)")
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			if _, err := tx.Exec(ctx, "INSERT INTO things (name) VALUES (?)", "n"); err != nil {
				return err
			}
			var rows []row
			return tx.Select(ctx, &rows, "SELECT id, name FROM things")
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, tx.Commit())

	var rows []row
	require.NoError(t, db.Select(ctx, &rows, "SELECT id, name FROM things"))
	assert.Len(t, rows, 16)
}
