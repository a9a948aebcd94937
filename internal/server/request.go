package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/grid"
)

// maxUploadMemory bounds how much of a multipart body stays in memory;
// larger files spill to temp storage.
const maxUploadMemory = 32 << 20

// parseRequest converts the HTTP form into the typed action request.
// Structured parameters (record data, selected ids, row data) arrive as
// JSON-encoded form fields.
func parseRequest(r *http.Request, action grid.Action) (grid.Request, error) {
	req := grid.Request{Action: action}

	multipart := false
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "multipart/form-data" {
			multipart = true
		}
	}

	if multipart {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return req, errs.Wrap(errs.ErrKindValidation, "failed to parse multipart form", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, errs.Wrap(errs.ErrKindValidation, "failed to parse form", err)
		}
	}

	req.Page = formInt(r, "page", 0)
	req.PerPage = formInt(r, "per_page", -1)
	req.Search = r.FormValue("search")
	req.SearchColumn = r.FormValue("search_column")
	req.SortColumn = r.FormValue("sort_column")
	req.SortDirection = r.FormValue("sort_direction")

	if raw := r.FormValue("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, errs.Newf(errs.ErrKindValidation, "invalid id %q", raw)
		}
		req.ID = id
		req.HasID = true
	}

	req.Field = r.FormValue("field")
	if raw := r.FormValue("value"); raw != "" {
		req.Value = raw
	}

	if raw := r.FormValue("record_data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.RecordData); err != nil {
			return req, errs.Wrap(errs.ErrKindValidation, "invalid record_data", err)
		}
	}

	req.BulkName = r.FormValue("bulk_action")
	if raw := r.FormValue("selected_ids"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.SelectedIDs); err != nil {
			return req, errs.Wrap(errs.ErrKindValidation, "invalid selected_ids", err)
		}
	}

	if raw := r.FormValue("row_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, errs.Newf(errs.ErrKindValidation, "invalid row_id %q", raw)
		}
		req.RowID = id
	}
	if raw := r.FormValue("row_data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.RowData); err != nil {
			return req, errs.Wrap(errs.ErrKindValidation, "invalid row_data", err)
		}
	}

	req.Query = strings.TrimSpace(r.FormValue("query"))

	if action == grid.ActionUploadFile && multipart {
		file, header, err := r.FormFile("file")
		if err != nil {
			return req, errs.Wrap(errs.ErrKindValidation, "missing file field", err)
		}
		req.File = &grid.Upload{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	return req, nil
}

func formInt(r *http.Request, key string, fallback int) int {
	raw := r.FormValue(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
