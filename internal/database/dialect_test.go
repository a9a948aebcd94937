package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpane/sqlpane/internal/errs"
)

func TestDialect_Placeholder(t *testing.T) {
	assert.Equal(t, "$1", DialectPostgres.Placeholder(1))
	assert.Equal(t, "$7", DialectPostgres.Placeholder(7))
	assert.Equal(t, "?", DialectMySQL.Placeholder(3))
	assert.Equal(t, "?", DialectSQLite.Placeholder(3))
}

func TestDialect_Placeholders(t *testing.T) {
	assert.Equal(t, "$2, $3, $4", DialectPostgres.Placeholders(2, 3))
	assert.Equal(t, "?, ?, ?", DialectMySQL.Placeholders(1, 3))
}

func TestDialect_QuoteIdent(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"postgres plain", DialectPostgres, "name", `"name"`},
		{"postgres embedded quote", DialectPostgres, `we"ird`, `"we""ird"`},
		{"mysql plain", DialectMySQL, "name", "`name`"},
		{"mysql embedded backtick", DialectMySQL, "we`ird", "`we``ird`"},
		{"sqlite plain", DialectSQLite, "order", `"order"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.QuoteIdent(tt.in))
		})
	}
}

func TestDialect_QuoteQualified(t *testing.T) {
	assert.Equal(t, `"s"."name"`, DialectPostgres.QuoteQualified("s.name"))
	assert.Equal(t, "`s`.`name`", DialectMySQL.QuoteQualified("s.name"))
	assert.Equal(t, `"name"`, DialectSQLite.QuoteQualified("name"))
}

func TestDialect_Capabilities(t *testing.T) {
	assert.False(t, DialectPostgres.SupportsLastInsertID())
	assert.True(t, DialectPostgres.SupportsReturning())
	assert.True(t, DialectMySQL.SupportsLastInsertID())
	assert.False(t, DialectMySQL.SupportsReturning())
	assert.True(t, DialectSQLite.SupportsLastInsertID())
}

func TestDialect_UpsertSQL(t *testing.T) {
	insert := map[string]any{"id": 1, "name": "alpha"}
	update := map[string]any{"name": "alpha"}

	t.Run("mysql uses on duplicate key", func(t *testing.T) {
		sql, args, err := DialectMySQL.UpsertSQL("streams", insert, update, nil)
		require.NoError(t, err)
		assert.Equal(t,
			"INSERT INTO `streams` (`id`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `name` = ?",
			sql)
		assert.Equal(t, []any{1, "alpha", "alpha"}, args)
	})

	t.Run("postgres requires conflict columns", func(t *testing.T) {
		_, _, err := DialectPostgres.UpsertSQL("streams", insert, update, nil)
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("postgres on conflict do update", func(t *testing.T) {
		sql, args, err := DialectPostgres.UpsertSQL("streams", insert, update, []string{"id"})
		require.NoError(t, err)
		assert.Equal(t,
			`INSERT INTO "streams" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = $3`,
			sql)
		assert.Len(t, args, 3)
	})

	t.Run("empty insert rejected", func(t *testing.T) {
		_, _, err := DialectSQLite.UpsertSQL("streams", nil, update, []string{"id"})
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})
}

func TestDialect_ReplaceSQL(t *testing.T) {
	data := map[string]any{"id": 5, "name": "beta"}

	t.Run("mysql", func(t *testing.T) {
		sql, args, err := DialectMySQL.ReplaceSQL("streams", data)
		require.NoError(t, err)
		assert.Equal(t, "REPLACE INTO `streams` (`id`, `name`) VALUES (?, ?)", sql)
		assert.Equal(t, []any{5, "beta"}, args)
	})

	t.Run("sqlite", func(t *testing.T) {
		sql, _, err := DialectSQLite.ReplaceSQL("streams", data)
		require.NoError(t, err)
		assert.Equal(t, `INSERT OR REPLACE INTO "streams" ("id", "name") VALUES (?, ?)`, sql)
	})

	t.Run("postgres unsupported", func(t *testing.T) {
		_, _, err := DialectPostgres.ReplaceSQL("streams", data)
		require.Error(t, err)
		assert.True(t, errs.IsUnsupported(err))
	})
}

func TestDialect_NormalizeArg(t *testing.T) {
	assert.Equal(t, int64(1), DialectMySQL.NormalizeArg(true))
	assert.Equal(t, int64(0), DialectSQLite.NormalizeArg(false))
	assert.Equal(t, true, DialectPostgres.NormalizeArg(true))
	assert.Equal(t, "text", DialectMySQL.NormalizeArg("text"))
	assert.Nil(t, DialectMySQL.NormalizeArg(nil))
}
