package tombstone

import (
	"reflect"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burugo/tombstone/internal/schema"
)

type filterOrder struct {
	SoftDeleteModel
	Number string `db:"number"`
}

func (*filterOrder) TableName() string { return "orders" }

type filterPlain struct {
	BaseModel
	Body string `db:"body"`
}

func (*filterPlain) TableName() string { return "notes" }

type filterOptOut struct {
	SoftDeleteModel
}

func (*filterOptOut) TableName() string { return "legacy" }
func (filterOptOut) SoftDeletes() bool  { return false }

func infoFor(t *testing.T, model interface{}) *schema.ModelInfo {
	t.Helper()
	info, err := schema.GetCachedModelInfo(reflect.TypeOf(model))
	require.NoError(t, err)
	return info
}

func TestApplyReadFilter(t *testing.T) {
	soft := infoFor(t, &filterOrder{})
	plain := infoFor(t, &filterPlain{})
	optOut := infoFor(t, &filterOptOut{})
	policy := NewPolicy()

	cases := []struct {
		name string
		info *schema.ModelInfo
		pol  *Policy
		opts Options
		want string
	}{
		{"soft", soft, policy, Options{}, "SELECT id FROM orders WHERE orders.deleted_at IS NULL"},
		{"custom field", soft, NewPolicy(WithField("removed_at")), Options{}, "SELECT id FROM orders WHERE orders.removed_at IS NULL"},
		{"with deleted", soft, policy, Options{WithDeleted: true}, "SELECT id FROM orders"},
		{"plain model", plain, policy, Options{}, "SELECT id FROM notes"},
		{"opted out", optOut, policy, Options{}, "SELECT id FROM legacy"},
		{"eager with parent response", soft, policy, Options{}.eagerOptions(true), "SELECT id FROM orders"},
		{"eager without parent response", soft, policy, Options{}.eagerOptions(false), "SELECT id FROM orders WHERE orders.deleted_at IS NULL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := squirrel.Select("id").From(tc.info.TableName)
			sql, args, err := applyReadFilter(b, tc.info, tc.pol, tc.opts).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tc.want, sql)
			assert.Empty(t, args)
		})
	}
}

func TestApplyReadFilter_KeepsExistingPredicates(t *testing.T) {
	info := infoFor(t, &filterOrder{})
	b := squirrel.Select("id").From("orders").Where("number = ?", "A-42")

	sql, args, err := applyReadFilter(b, info, NewPolicy(), Options{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM orders WHERE number = ? AND orders.deleted_at IS NULL", sql)
	assert.Equal(t, []interface{}{"A-42"}, args)
}

func TestCascades(t *testing.T) {
	assert.False(t, cascades(&schema.Relation{Kind: schema.ManyToMany}))
	for _, k := range []schema.RelationKind{schema.BelongsTo, schema.HasOne, schema.HasMany} {
		assert.True(t, cascades(&schema.Relation{Kind: k}), k.String())
	}
	assert.Panics(t, func() { cascades(&schema.Relation{Kind: schema.RelationKind(99)}) })
}
