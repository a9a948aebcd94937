package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpane/sqlpane/internal/database"
	_ "github.com/sqlpane/sqlpane/internal/database/sqlite"
	"github.com/sqlpane/sqlpane/internal/errs"
)

func openTestConn(t *testing.T) database.Conn {
	t.Helper()
	conn, err := database.Open(context.Background(), &database.Config{
		Driver: database.DriverSQLite,
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = conn.Exec(context.Background(), `
		CREATE TABLE streams (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			bitrate INTEGER,
			active INTEGER NOT NULL DEFAULT 1
		)`)
	require.NoError(t, err)
	return conn
}

func seedStreams(t *testing.T, ex *database.Executor) {
	t.Helper()
	err := ex.InsertBatch(context.Background(), "streams",
		[]string{"name", "bitrate", "active"},
		[][]any{
			{"alpha", 128, true},
			{"beta", 256, true},
			{"gamma", 64, false},
		})
	require.NoError(t, err)
}

func TestExecutor_FetchPositional(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	seedStreams(t, ex)

	rows, err := ex.Query("SELECT name, bitrate FROM streams WHERE bitrate > ? ORDER BY name").
		Bind(100).
		Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alpha", rows[0]["name"])
	assert.Equal(t, int64(128), rows[0]["bitrate"])
	assert.Equal(t, "beta", rows[1]["name"])
}

func TestExecutor_FetchNamed(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	seedStreams(t, ex)

	rows, err := ex.Query("SELECT name FROM streams WHERE bitrate >= :min AND bitrate <= :max").
		BindNamed(map[string]any{"min": 100, "max": 300}).
		Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExecutor_NamedMissingParameter(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	_, err := ex.Query("SELECT * FROM streams WHERE name = :name").
		BindNamed(map[string]any{"other": 1}).
		Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), ":name")
}

func TestExecutor_MixedBindingRejected(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	_, err := ex.Query("SELECT * FROM streams WHERE name = :name AND bitrate = ?").
		Bind(128).
		BindNamed(map[string]any{"name": "alpha"}).
		Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestExecutor_QueryResetsState(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	seedStreams(t, ex)

	_, err := ex.Query("SELECT * FROM streams WHERE name = ?").
		Bind("alpha").
		Single().
		Fetch(context.Background(), 0)
	require.NoError(t, err)

	// A fresh Query must not inherit the previous bind or single mode.
	rows, err := ex.Query("SELECT * FROM streams").Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExecutor_FetchLimits(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	seedStreams(t, ex)

	one, err := ex.Query("SELECT * FROM streams ORDER BY id").Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	two, err := ex.Query("SELECT * FROM streams ORDER BY id").Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	none, err := ex.Query("SELECT * FROM streams WHERE id = ?").Bind(999).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestExecutor_FetchOne(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	seedStreams(t, ex)

	row, err := ex.Query("SELECT name FROM streams WHERE name = ?").Bind("beta").FetchOne(context.Background())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "beta", row["name"])

	missing, err := ex.Query("SELECT name FROM streams WHERE name = ?").Bind("nope").FetchOne(context.Background())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExecutor_Insert(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	id, err := ex.Insert(context.Background(), "streams",
		map[string]any{"name": "delta", "bitrate": 512}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id2, err := ex.Insert(context.Background(), "streams",
		map[string]any{"name": "epsilon", "bitrate": 96}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)
}

func TestExecutor_InsertBatchArityFailsFast(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	err := ex.InsertBatch(context.Background(), "streams",
		[]string{"name", "bitrate"},
		[][]any{
			{"alpha", 128},
			{"beta"},
		})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	// Nothing was inserted: the arity check runs before any SQL.
	rows, err := ex.Query("SELECT * FROM streams").Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExecutor_Upsert(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	_, err := conn.Exec(context.Background(),
		"CREATE UNIQUE INDEX idx_streams_name ON streams (name)")
	require.NoError(t, err)

	err = ex.Upsert(context.Background(), "streams",
		map[string]any{"name": "alpha", "bitrate": 128},
		map[string]any{"bitrate": 128},
		"name")
	require.NoError(t, err)

	err = ex.Upsert(context.Background(), "streams",
		map[string]any{"name": "alpha", "bitrate": 999},
		map[string]any{"bitrate": 999},
		"name")
	require.NoError(t, err)

	row, err := ex.Query("SELECT bitrate FROM streams WHERE name = ?").Bind("alpha").FetchOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(999), row["bitrate"])

	err = ex.Upsert(context.Background(), "streams",
		map[string]any{"name": "beta"},
		map[string]any{"name": "beta"})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestExecutor_Replace(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	err := ex.Replace(context.Background(), "streams",
		map[string]any{"id": 1, "name": "alpha", "bitrate": 128})
	require.NoError(t, err)

	err = ex.Replace(context.Background(), "streams",
		map[string]any{"id": 1, "name": "renamed", "bitrate": 256})
	require.NoError(t, err)

	rows, err := ex.Query("SELECT name FROM streams").Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "renamed", rows[0]["name"])
}

func TestExecutor_TransactionCommit(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	ctx := context.Background()

	require.NoError(t, ex.Begin(ctx))
	assert.True(t, ex.InTransaction())

	_, err := ex.Query("INSERT INTO streams (name) VALUES (?)").Bind("tx").Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, ex.Commit(ctx))
	assert.False(t, ex.InTransaction())

	rows, err := ex.Query("SELECT * FROM streams").Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecutor_TransactionRollback(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	ctx := context.Background()

	require.NoError(t, ex.Begin(ctx))
	_, err := ex.Query("INSERT INTO streams (name) VALUES (?)").Bind("tx").Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, ex.Rollback(ctx))

	rows, err := ex.Query("SELECT * FROM streams").Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExecutor_NestedBeginRejected(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	ctx := context.Background()

	require.NoError(t, ex.Begin(ctx))
	err := ex.Begin(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsExecution(err))
	require.NoError(t, ex.Rollback(ctx))
}

func TestExecutor_RollbackWithoutTransaction(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)

	assert.NoError(t, ex.Rollback(context.Background()))
}

func TestExecutor_Profiler(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	ctx := context.Background()

	_, err := ex.Query("SELECT 1 AS one").Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ex.Profiler().Entries(), "disabled profiler must not record")

	ex.Profiler().Enable(true)
	_, err = ex.Query("SELECT 2 AS two").Fetch(ctx, 0)
	require.NoError(t, err)
	_, err = ex.Query("SELECT 3 AS three").Fetch(ctx, 0)
	require.NoError(t, err)

	entries := ex.Profiler().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "SELECT 2 AS two", entries[0].SQL)

	ex.Profiler().Clear()
	assert.Empty(t, ex.Profiler().Entries())
	assert.True(t, ex.Profiler().Enabled(), "clear keeps recording on")
}

func TestExecutor_BooleanNormalization(t *testing.T) {
	conn := openTestConn(t)
	ex := database.NewExecutor(conn, nil)
	ctx := context.Background()

	_, err := ex.Query("INSERT INTO streams (name, active) VALUES (?, ?)").
		Bind("flag", false).
		Exec(ctx)
	require.NoError(t, err)

	row, err := ex.Query("SELECT active FROM streams WHERE name = ?").Bind("flag").FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row["active"])
}
