package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
)

func TestRenderCondition(t *testing.T) {
	var args []any
	idx := 0

	clause, err := renderCondition(database.DialectPostgres,
		Condition{Field: "s.active", Comparator: CmpEq, Value: true}, &args, &idx)
	require.NoError(t, err)
	assert.Equal(t, `"s"."active" = $1`, clause)
	assert.Equal(t, []any{true}, args)
}

func TestRenderCondition_In(t *testing.T) {
	var args []any
	idx := 0

	clause, err := renderCondition(database.DialectMySQL,
		Condition{Field: "category_id", Comparator: CmpIn, Value: []int{1, 2, 3}}, &args, &idx)
	require.NoError(t, err)
	assert.Equal(t, "`category_id` IN (?, ?, ?)", clause)
	assert.Len(t, args, 3)
}

func TestRenderCondition_EmptyInRejected(t *testing.T) {
	var args []any
	idx := 0

	_, err := renderCondition(database.DialectSQLite,
		Condition{Field: "id", Comparator: CmpIn, Value: []any{}}, &args, &idx)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestRenderCondition_UnknownComparatorRejected(t *testing.T) {
	var args []any
	idx := 0

	_, err := renderCondition(database.DialectSQLite,
		Condition{Field: "id", Comparator: "; DROP TABLE", Value: 1}, &args, &idx)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestRenderGroups(t *testing.T) {
	var args []any
	idx := 0

	groups := []ConditionGroup{
		Or(
			Condition{Field: "kind", Comparator: CmpEq, Value: "live"},
			Condition{Field: "kind", Comparator: CmpEq, Value: "vod"},
		),
		And(Condition{Field: "s.active", Comparator: CmpEq, Value: 1}),
	}

	clause, err := renderGroups(database.DialectPostgres, groups, &args, &idx)
	require.NoError(t, err)
	assert.Equal(t,
		`("kind" = $1 OR "kind" = $2) AND ("s"."active" = $3)`,
		clause)
	assert.Equal(t, []any{"live", "vod", 1}, args)
}

func TestRenderGroups_SkipsEmpty(t *testing.T) {
	var args []any
	idx := 0

	clause, err := renderGroups(database.DialectSQLite, []ConditionGroup{{}}, &args, &idx)
	require.NoError(t, err)
	assert.Empty(t, clause)
}

func TestStripAliasGroups(t *testing.T) {
	groups := []ConditionGroup{
		And(Condition{Field: "s.active", Comparator: CmpEq, Value: 1}),
	}
	stripped := stripAliasGroups(groups)

	assert.Equal(t, "active", stripped[0].Conditions[0].Field)
	// The input is left untouched.
	assert.Equal(t, "s.active", groups[0].Conditions[0].Field)
}
