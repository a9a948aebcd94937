package grid

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/logger"
)

// FileStore persists uploaded files and returns the stored object name.
// The minio-backed store in internal/filestore satisfies this.
type FileStore interface {
	Store(ctx context.Context, filename string, size int64, contentType string, r io.Reader) (string, error)
}

// Engine executes grid actions against one built configuration and one
// connection. It is safe for concurrent use: per-request state lives in
// a fresh Executor per call, never on the Engine itself.
type Engine struct {
	cfg   *Config
	conn  database.Conn
	log   *logger.Logger
	files FileStore
	prof  *database.Profiler
}

// NewEngine binds a built configuration to a connection.
func NewEngine(cfg *Config, conn database.Conn, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Global()
	}
	return &Engine{
		cfg:  cfg,
		conn: conn,
		log:  log.With().Str("grid", cfg.Table()).Logger(),
		prof: database.NewProfiler(),
	}
}

// WithFileStore attaches the store backing upload_file.
func (e *Engine) WithFileStore(fs FileStore) *Engine {
	e.files = fs
	return e
}

// Profiler exposes the engine's query profiler.
func (e *Engine) Profiler() *database.Profiler { return e.prof }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *Config { return e.cfg }

// Do dispatches one action. Every failure path is converted into an
// unsuccessful Result here; callers never see a raw error.
func (e *Engine) Do(ctx context.Context, req Request) Result {
	ex := database.NewExecutor(e.conn, e.log).WithProfiler(e.prof)

	res, err := e.dispatch(ctx, ex, req)
	if err != nil {
		e.log.With().Str("action", string(req.Action)).Err(err).Logger().Error("grid action failed")
		return failErr(err)
	}
	return res
}

func (e *Engine) dispatch(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	switch req.Action {
	case ActionFetchData:
		return e.fetchData(ctx, ex, req)
	case ActionFetchRecord:
		return e.fetchRecord(ctx, ex, req)
	case ActionAddRecord:
		return e.addRecord(ctx, ex, req)
	case ActionEditRecord:
		return e.editRecord(ctx, ex, req)
	case ActionDeleteRecord:
		return e.deleteRecord(ctx, ex, req)
	case ActionBulkAction:
		return e.bulkAction(ctx, ex, req)
	case ActionInlineEdit:
		return e.inlineEdit(ctx, ex, req)
	case ActionUploadFile:
		return e.uploadFile(ctx, req)
	case ActionCallback:
		return e.actionCallback(ctx, ex, req)
	case ActionFetchAggregations:
		return e.fetchAggregations(ctx, ex, req)
	case ActionFetchOptions:
		return e.fetchLookupOptions(ctx, ex, req)
	default:
		return Result{}, errs.Newf(errs.ErrKindInvalidAction, "unknown action %q", req.Action)
	}
}

// --- reads ---

func (e *Engine) fetchData(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	p := req.listParams(e.cfg)
	asm := newAssembler(e.cfg, e.conn.Dialect())

	dataSQL, dataArgs, err := asm.DataQuery(p)
	if err != nil {
		return Result{}, err
	}
	rows, err := ex.Query(dataSQL).Bind(dataArgs...).Fetch(ctx, 0)
	if err != nil {
		return Result{}, err
	}

	countSQL, countArgs, err := asm.CountQuery(p)
	if err != nil {
		return Result{}, err
	}
	countRow, err := ex.Query(countSQL).Bind(countArgs...).FetchOne(ctx)
	if err != nil {
		return Result{}, err
	}
	total := toInt64(countRow["total"])

	if err := e.enrichLookups(ctx, ex, rows); err != nil {
		return Result{}, err
	}

	res := ok(rows)
	res.Total = total
	res.Page = p.Page
	res.PerPage = p.PerPage
	res.TotalPages = totalPages(total, p.PerPage)
	return res, nil
}

func (e *Engine) fetchRecord(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if !req.HasID {
		return Result{}, errs.New(errs.ErrKindValidation, "record id is required")
	}
	asm := newAssembler(e.cfg, e.conn.Dialect())

	sql, args, err := asm.RecordQuery(req.ID)
	if err != nil {
		return Result{}, err
	}
	row, err := ex.Query(sql).Bind(args...).FetchOne(ctx)
	if err != nil {
		return Result{}, err
	}
	if row == nil {
		return Result{}, errs.Newf(errs.ErrKindNotFound, "record %d not found", req.ID)
	}
	return ok(row), nil
}

// --- writes ---

func (e *Engine) addRecord(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	data, err := e.sanitizeRecord(req.RecordData)
	if err != nil {
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, errs.New(errs.ErrKindValidation, "no valid fields to insert")
	}

	id, err := ex.Insert(ctx, e.cfg.BaseTable(), data, e.cfg.BasePrimaryKey())
	if err != nil {
		return Result{}, err
	}

	res := okMessage("record created")
	res.Data = map[string]any{"id": id}
	return res, nil
}

func (e *Engine) editRecord(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if !req.HasID {
		return Result{}, errs.New(errs.ErrKindValidation, "record id is required")
	}
	data, err := e.sanitizeRecord(req.RecordData)
	if err != nil {
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, errs.New(errs.ErrKindValidation, "no valid fields to update")
	}

	sql, args, err := e.updateSQL(data, req.ID)
	if err != nil {
		return Result{}, err
	}
	result, err := ex.Query(sql).Bind(args...).Exec(ctx)
	if err != nil {
		return Result{}, err
	}

	res := okMessage("record updated")
	res.AffectedRows = result.RowsAffected
	return res, nil
}

func (e *Engine) deleteRecord(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if !req.HasID {
		return Result{}, errs.New(errs.ErrKindValidation, "record id is required")
	}

	d := e.conn.Dialect()
	var args []any
	idx := 0
	where, err := e.writeWhere(d, &args, &idx, req.ID)
	if err != nil {
		return Result{}, err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", d.QuoteIdent(e.cfg.BaseTable()), where)
	result, err := ex.Query(sql).Bind(args...).Exec(ctx)
	if err != nil {
		return Result{}, err
	}

	// Deleting an already-gone row is not an error; affected reports 0.
	res := okMessage("record deleted")
	res.AffectedRows = result.RowsAffected
	return res, nil
}

func (e *Engine) inlineEdit(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if !req.HasID {
		return Result{}, errs.New(errs.ErrKindValidation, "record id is required")
	}
	if req.Field == "" {
		return Result{}, errs.New(errs.ErrKindValidation, "field is required")
	}
	if !e.cfg.inlineEditableSet(req.Field) {
		return Result{}, errs.Newf(errs.ErrKindValidation, "field %q is not inline editable", req.Field)
	}

	bare := stripAlias(req.Field)
	col := e.cfg.TableSchema().Column(bare)
	if col == nil {
		return Result{}, errs.Newf(errs.ErrKindValidation, "unknown field %q", req.Field)
	}
	value, err := validateField(col, req.Value)
	if err != nil {
		return Result{}, err
	}

	sql, args, err := e.updateSQL(map[string]any{bare: value}, req.ID)
	if err != nil {
		return Result{}, err
	}
	result, err := ex.Query(sql).Bind(args...).Exec(ctx)
	if err != nil {
		return Result{}, err
	}

	res := okMessage("field updated")
	res.AffectedRows = result.RowsAffected
	return res, nil
}

// --- bulk and callbacks ---

func (e *Engine) bulkAction(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if len(req.SelectedIDs) == 0 {
		return Result{}, errs.New(errs.ErrKindValidation, "no records selected")
	}

	if req.BulkName == "delete" {
		return e.bulkDelete(ctx, ex, req.SelectedIDs)
	}

	action, found := e.cfg.bulkActions[req.BulkName]
	if !found {
		return Result{}, errs.Newf(errs.ErrKindValidation, "unknown bulk action %q", req.BulkName)
	}

	if err := ex.Begin(ctx); err != nil {
		return Result{}, err
	}
	affected, err := action.Fn(ctx, req.SelectedIDs, ex, e.cfg.BaseTable())
	if err != nil {
		if rbErr := ex.Rollback(ctx); rbErr != nil {
			e.log.With().Err(rbErr).Logger().Error("bulk action rollback failed")
		}
		if action.ErrorMessage != "" {
			return Result{}, errs.Wrap(errs.ErrKindExecution, action.ErrorMessage, err)
		}
		return Result{}, err
	}
	if err := ex.Commit(ctx); err != nil {
		return Result{}, err
	}

	if affected < 0 {
		affected = int64(len(req.SelectedIDs))
	}
	msg := action.SuccessMessage
	if msg == "" {
		msg = "bulk action completed"
	}
	res := okMessage(msg)
	res.AffectedRows = affected
	return res, nil
}

// bulkDelete removes the selected rows, constrained by the same
// alias-stripped configured conditions every single-row write applies.
// A row the grid cannot list cannot be bulk-deleted either.
func (e *Engine) bulkDelete(ctx context.Context, ex *database.Executor, ids []int64) (Result, error) {
	d := e.conn.Dialect()

	var args []any
	idx := 0
	structured, err := renderGroups(d, stripAliasGroups(e.cfg.where), &args, &idx)
	if err != nil {
		return Result{}, err
	}

	where := fmt.Sprintf("%s IN (%s)",
		d.QuoteIdent(e.cfg.BasePrimaryKey()), d.Placeholders(idx+1, len(ids)))
	for _, id := range ids {
		args = append(args, id)
	}
	if structured != "" {
		where = structured + " AND " + where
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", d.QuoteIdent(e.cfg.BaseTable()), where)

	if err := ex.Begin(ctx); err != nil {
		return Result{}, err
	}
	result, err := ex.Query(sql).Bind(args...).Exec(ctx)
	if err != nil {
		if rbErr := ex.Rollback(ctx); rbErr != nil {
			e.log.With().Err(rbErr).Logger().Error("bulk delete rollback failed")
		}
		return Result{}, err
	}
	if err := ex.Commit(ctx); err != nil {
		return Result{}, err
	}

	res := okMessage("records deleted")
	res.AffectedRows = result.RowsAffected
	return res, nil
}

func (e *Engine) actionCallback(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	action, found := e.cfg.rowActions[req.BulkName]
	if !found {
		return Result{}, errs.Newf(errs.ErrKindValidation, "unknown row action %q", req.BulkName)
	}

	if err := action.Fn(ctx, req.RowID, req.RowData, ex, e.cfg.BaseTable()); err != nil {
		if action.ErrorMessage != "" {
			return Result{}, errs.Wrap(errs.ErrKindExecution, action.ErrorMessage, err)
		}
		return Result{}, err
	}

	msg := action.SuccessMessage
	if msg == "" {
		msg = "action completed"
	}
	return okMessage(msg), nil
}

// --- uploads ---

func (e *Engine) uploadFile(ctx context.Context, req Request) (Result, error) {
	if e.files == nil {
		return Result{}, errs.New(errs.ErrKindUnsupported, "no file store configured")
	}
	if req.File == nil {
		return Result{}, errs.New(errs.ErrKindValidation, "no file provided")
	}

	name, err := e.files.Store(ctx, req.File.Name, req.File.Size, req.File.ContentType, req.File.Reader)
	if err != nil {
		return Result{}, err
	}

	res := okMessage("file uploaded")
	res.Data = map[string]any{"filename": name}
	return res, nil
}

// --- aggregations ---

func (e *Engine) fetchAggregations(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if len(e.cfg.aggregations) == 0 {
		return Result{}, errs.New(errs.ErrKindValidation, "no aggregations configured")
	}

	p := req.listParams(e.cfg)
	asm := newAssembler(e.cfg, e.conn.Dialect())

	merged := make(map[string]any)
	for _, scope := range []AggScope{ScopeFiltered, ScopePage} {
		if !e.hasScope(scope) {
			continue
		}
		sql, args, err := asm.AggregationQuery(p, scope)
		if err != nil {
			return Result{}, err
		}
		row, err := ex.Query(sql).Bind(args...).FetchOne(ctx)
		if err != nil {
			return Result{}, err
		}
		for k, v := range row {
			merged[k] = v
		}
	}

	res := Result{Success: true, Aggregations: merged}
	return res, nil
}

func (e *Engine) hasScope(scope AggScope) bool {
	for _, agg := range e.cfg.aggregations {
		s := agg.Scope
		if s == "" {
			s = ScopeFiltered
		}
		if s == scope {
			return true
		}
	}
	return false
}

// --- mutation helpers ---

// sanitizeRecord keeps only known, syntactically valid, non-primary-key
// fields and coerces each value to the column's semantic type. A value
// that fails coercion aborts the whole record.
func (e *Engine) sanitizeRecord(data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for name, value := range data {
		if !validFieldName(name) {
			continue
		}
		bare := stripAlias(name)
		if bare == e.cfg.BasePrimaryKey() {
			continue
		}
		col := e.cfg.TableSchema().Column(bare)
		if col == nil {
			continue
		}
		clean, err := validateField(col, value)
		if err != nil {
			return nil, err
		}
		out[bare] = clean
	}
	return out, nil
}

// updateSQL builds the UPDATE against the base table: sorted SET clause,
// alias-stripped configured conditions, and the primary key match.
func (e *Engine) updateSQL(data map[string]any, id int64) (string, []any, error) {
	d := e.conn.Dialect()

	cols := make([]string, 0, len(data))
	for c := range data {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var sets []string
	var args []any
	idx := 0
	for _, c := range cols {
		idx++
		sets = append(sets, fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(idx)))
		args = append(args, d.NormalizeArg(data[c]))
	}

	where, err := e.writeWhere(d, &args, &idx, id)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		d.QuoteIdent(e.cfg.BaseTable()), strings.Join(sets, ", "), where)
	return sql, args, nil
}

// writeWhere renders the configured conditions with aliases stripped,
// plus the primary key match, for mutations against the base table.
func (e *Engine) writeWhere(d database.Dialect, args *[]any, idx *int, id int64) (string, error) {
	structured, err := renderGroups(d, stripAliasGroups(e.cfg.where), args, idx)
	if err != nil {
		return "", err
	}

	*idx++
	pkCond := fmt.Sprintf("%s = %s", d.QuoteIdent(e.cfg.BasePrimaryKey()), d.Placeholder(*idx))
	*args = append(*args, id)

	if structured != "" {
		return structured + " AND " + pkCond, nil
	}
	return pkCond, nil
}

func totalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return int(pages)
}

// toInt64 reads a count value regardless of how the driver surfaced it.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
