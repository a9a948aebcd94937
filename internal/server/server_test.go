package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpane/sqlpane/internal/database"
	_ "github.com/sqlpane/sqlpane/internal/database/sqlite"
	"github.com/sqlpane/sqlpane/internal/grid"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	conn, err := database.Open(ctx, &database.Config{
		Driver: database.DriverSQLite,
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = conn.Exec(ctx, `
		CREATE TABLE items (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			price INTEGER
		)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO items (name, price) VALUES ('hammer', 15), ('wrench', 22)`)
	require.NoError(t, err)

	cfg, err := grid.NewBuilder("items").Build(ctx, conn)
	require.NoError(t, err)

	s := New(nil)
	s.Register("items", grid.NewEngine(cfg, conn, nil))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postForm(t *testing.T, ts *httptest.Server, path string, form url.Values) (*http.Response, grid.Result) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var res grid.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp, res
}

func TestServer_FetchData(t *testing.T) {
	ts := newTestServer(t)

	resp, res := postForm(t, ts, "/api/grid/items/fetch_data", url.Values{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(2), res.Total)

	rows, ok := res.Data.([]any)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestServer_FetchData_Paged(t *testing.T) {
	ts := newTestServer(t)

	_, res := postForm(t, ts, "/api/grid/items/fetch_data", url.Values{
		"page":     {"2"},
		"per_page": {"1"},
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 1, res.PerPage)
	assert.Equal(t, 2, res.TotalPages)
}

func TestServer_AddRecord(t *testing.T) {
	ts := newTestServer(t)

	_, res := postForm(t, ts, "/api/grid/items/add_record", url.Values{
		"record_data": {`{"name":"pliers","price":"9"}`},
	})
	require.True(t, res.Success, res.Message)

	_, list := postForm(t, ts, "/api/grid/items/fetch_data", url.Values{})
	assert.Equal(t, int64(3), list.Total)
}

func TestServer_EditAndDelete(t *testing.T) {
	ts := newTestServer(t)

	_, res := postForm(t, ts, "/api/grid/items/edit_record", url.Values{
		"id":          {"1"},
		"record_data": {`{"price":"18"}`},
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(1), res.AffectedRows)

	_, res = postForm(t, ts, "/api/grid/items/delete_record", url.Values{
		"id": {"1"},
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(1), res.AffectedRows)
}

func TestServer_BulkDelete(t *testing.T) {
	ts := newTestServer(t)

	_, res := postForm(t, ts, "/api/grid/items/bulk_action", url.Values{
		"bulk_action":  {"delete"},
		"selected_ids": {"[1,2]"},
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(2), res.AffectedRows)
}

func TestServer_UnknownGrid(t *testing.T) {
	ts := newTestServer(t)

	resp, res := postForm(t, ts, "/api/grid/nothing/fetch_data", url.Values{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, res.Success)
}

func TestServer_UnknownAction(t *testing.T) {
	ts := newTestServer(t)

	resp, res := postForm(t, ts, "/api/grid/items/drop_everything", url.Values{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, res.Success)
}

func TestServer_BadParameters(t *testing.T) {
	ts := newTestServer(t)

	resp, res := postForm(t, ts, "/api/grid/items/edit_record", url.Values{
		"id":          {"not-a-number"},
		"record_data": {`{"price":"1"}`},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, res.Success)

	resp, res = postForm(t, ts, "/api/grid/items/add_record", url.Values{
		"record_data": {`{broken json`},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, res.Success)
}

func TestParseRequest_ParameterNames(t *testing.T) {
	form := url.Values{
		"page":          {"2"},
		"per_page":      {"10"},
		"search":        {"film"},
		"search_column": {"name"},
		"bulk_action":   {"deactivate"},
		"selected_ids":  {"[4,5]"},
		"field":         {"category_id"},
		"query":         {"mov"},
	}
	r := httptest.NewRequest(http.MethodPost, "/api/grid/items/bulk_action",
		strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := parseRequest(r, grid.ActionBulkAction)
	require.NoError(t, err)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, 10, req.PerPage)
	assert.Equal(t, "film", req.Search)
	assert.Equal(t, "name", req.SearchColumn)
	assert.Equal(t, "deactivate", req.BulkName)
	assert.Equal(t, []int64{4, 5}, req.SelectedIDs)
	assert.Equal(t, "category_id", req.Field)
	assert.Equal(t, "mov", req.Query)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
