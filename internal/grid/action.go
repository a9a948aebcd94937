package grid

import (
	"io"

	"github.com/sqlpane/sqlpane/internal/errs"
)

// Action is the closed set of operations the engine accepts. Anything
// outside this list fails at the boundary before reaching the engine.
type Action string

const (
	ActionFetchData         Action = "fetch_data"
	ActionFetchRecord       Action = "fetch_record"
	ActionAddRecord         Action = "add_record"
	ActionEditRecord        Action = "edit_record"
	ActionDeleteRecord      Action = "delete_record"
	ActionBulkAction        Action = "bulk_action"
	ActionInlineEdit        Action = "inline_edit"
	ActionUploadFile        Action = "upload_file"
	ActionCallback          Action = "action_callback"
	ActionFetchAggregations Action = "fetch_aggregations"
	ActionFetchOptions      Action = "fetch_select2_options"
)

var knownActions = map[Action]bool{
	ActionFetchData: true, ActionFetchRecord: true,
	ActionAddRecord: true, ActionEditRecord: true, ActionDeleteRecord: true,
	ActionBulkAction: true, ActionInlineEdit: true, ActionUploadFile: true,
	ActionCallback: true, ActionFetchAggregations: true, ActionFetchOptions: true,
}

// ParseAction validates a raw action name against the allow-list.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if !knownActions[a] {
		return "", errs.Newf(errs.ErrKindInvalidAction, "unknown action %q", name)
	}
	return a, nil
}

// Upload carries one multipart file handed to the upload_file action.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// Request is the typed parameter surface for one action invocation,
// validated at the boundary before the engine sees it.
type Request struct {
	Action Action

	// list / aggregation parameters
	Page          int
	PerPage       int // 0 means no limit
	Search        string
	SearchColumn  string
	SortColumn    string
	SortDirection string

	// record parameters
	ID         int64
	HasID      bool
	Field      string
	Value      any
	RecordData map[string]any

	// bulk / callback parameters
	BulkName    string
	SelectedIDs []int64
	RowID       int64
	RowData     map[string]any

	// lookup parameters; the lookup column arrives in Field
	Query string

	// upload parameters
	File *Upload
}

// listParams resolves the request's read surface against the grid's
// pagination defaults.
func (r *Request) listParams(cfg *Config) ListParams {
	perPage := r.PerPage
	if perPage < 0 {
		perPage = cfg.perPage
	}
	page := r.Page
	if page < 1 {
		page = 1
	}
	return ListParams{
		Page:          page,
		PerPage:       perPage,
		Search:        r.Search,
		SearchColumn:  r.SearchColumn,
		SortColumn:    r.SortColumn,
		SortDirection: r.SortDirection,
	}
}
