package schema

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type genRow struct {
	ID        int64      `db:"id,pk"`
	Name      string     `db:"name"`
	CreatedAt time.Time  `db:"created_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

func (genRow) SoftDeletes() bool { return true }
func (genRow) TableName() string { return "gen_rows" }

type genPlain struct {
	ID   int64  `db:"id,pk"`
	Body string `db:"body"`
}

func TestGenerateCreateTableSQL_Dialects(t *testing.T) {
	info, err := GetCachedModelInfo(reflect.TypeOf(genRow{}))
	require.NoError(t, err)
	opts := TableOptions{Marker: "deleted_at"}

	pg, err := GenerateCreateTableSQL(info, "postgres", opts)
	require.NoError(t, err)
	require.Len(t, pg, 2)
	assert.Contains(t, pg[0], "id BIGSERIAL PRIMARY KEY")
	assert.Contains(t, pg[0], "deleted_at TIMESTAMPTZ")
	assert.Contains(t, pg[1], "ON gen_rows (deleted_at)")

	my, err := GenerateCreateTableSQL(info, "mysql", opts)
	require.NoError(t, err)
	require.Len(t, my, 1)
	assert.Contains(t, my[0], "id BIGINT PRIMARY KEY AUTO_INCREMENT")
	assert.Contains(t, my[0], "INDEX idx_gen_rows_deleted_at (deleted_at)")
	assert.False(t, strings.Contains(my[0], "deleted_at DATETIME(6) NOT NULL"))

	_, err = GenerateCreateTableSQL(info, "oracle", opts)
	assert.Error(t, err)
}

func TestGenerateCreateTableSQL_NoIndexWithoutSoftDelete(t *testing.T) {
	info, err := GetCachedModelInfo(reflect.TypeOf(genPlain{}))
	require.NoError(t, err)

	stmts, err := GenerateCreateTableSQL(info, "sqlite", TableOptions{Marker: "deleted_at"})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "body TEXT NOT NULL")
}
