package grid

// Result is the uniform contract every grid action returns. The rendering
// and dispatch layers serialize it as-is; no raw error ever crosses this
// boundary.
type Result struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message,omitempty"`
	Data         any              `json:"data,omitempty"`
	Total        int64            `json:"total,omitempty"`
	Page         int              `json:"page,omitempty"`
	PerPage      int              `json:"per_page,omitempty"`
	TotalPages   int              `json:"total_pages,omitempty"`
	AffectedRows int64            `json:"affected_rows,omitempty"`
	Aggregations map[string]any   `json:"aggregations,omitempty"`
	Columns      []map[string]any `json:"columns,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func okMessage(msg string) Result {
	return Result{Success: true, Message: msg}
}

func failErr(err error) Result {
	return Result{Success: false, Message: err.Error()}
}
