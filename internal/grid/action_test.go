package grid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpane/sqlpane/internal/errs"
)

func TestParseAction(t *testing.T) {
	for _, name := range []string{
		"fetch_data", "fetch_record", "add_record", "edit_record",
		"delete_record", "bulk_action", "inline_edit", "upload_file",
		"action_callback", "fetch_aggregations", "fetch_select2_options",
	} {
		a, err := ParseAction(name)
		require.NoError(t, err, name)
		assert.Equal(t, Action(name), a)
	}
}

func TestParseAction_Unknown(t *testing.T) {
	_, err := ParseAction("drop_all_tables")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidAction(err))

	_, err = ParseAction("")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidAction(err))
}

func TestRequest_ListParams(t *testing.T) {
	cfg := &Config{perPage: 25}

	p := (&Request{Page: 0, PerPage: -1}).listParams(cfg)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 25, p.PerPage)

	// An explicit zero means "no limit", not "use the default".
	p = (&Request{Page: 2, PerPage: 0}).listParams(cfg)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 0, p.PerPage)

	p = (&Request{PerPage: 10}).listParams(cfg)
	assert.Equal(t, 10, p.PerPage)
}

func TestEngine_UnknownActionResult(t *testing.T) {
	conn := openGridConn(t)
	e := newTestEngine(t, conn)

	res := e.Do(context.Background(), Request{Action: "launch_missiles"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "launch_missiles")
}
