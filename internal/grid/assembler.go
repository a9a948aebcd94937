package grid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlpane/sqlpane/internal/database"
)

// ListParams is the request-time read surface: paging, free-text search,
// and sort. Invalid sort or search columns are not errors; the query
// degrades to unsorted/unfiltered on that axis so stale client state
// never breaks the UI.
type ListParams struct {
	Page          int
	PerPage       int // 0 means no limit
	Search        string
	SearchColumn  string
	SortColumn    string
	SortDirection string
}

// assembler builds the data, count, and aggregation queries from one
// shared foundation, so every shape accepts the same filters. It holds
// structured clause state and renders SQL only at the end.
type assembler struct {
	cfg *Config
	d   database.Dialect
}

func newAssembler(cfg *Config, d database.Dialect) *assembler {
	return &assembler{cfg: cfg, d: d}
}

// --- column expression helpers ---

var (
	asRe       = regexp.MustCompile(`(?i)\s+AS\s+`)
	templateRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)
)

// splitAS splits "expr AS alias" at the last AS. ok is false for plain
// column references.
func splitAS(expr string) (pre, alias string, ok bool) {
	locs := asRe.FindAllStringIndex(expr, -1)
	if len(locs) == 0 {
		return "", "", false
	}
	last := locs[len(locs)-1]
	return strings.TrimSpace(expr[:last[0]]), trimQuotes(strings.TrimSpace(expr[last[1]:])), true
}

func trimQuotes(s string) string {
	return strings.Trim(s, "`\"")
}

// aliasOf returns the name a column is known by in the result set: the AS
// alias for expressions, the unqualified name for plain columns.
func aliasOf(expr string) string {
	if _, alias, ok := splitAS(expr); ok {
		return alias
	}
	return stripAlias(expr)
}

// selectExpr renders one select-list entry. Already-aliased expressions
// pass through verbatim; plain columns are quoted and re-aliased to their
// bare name so result keys are stable regardless of qualification.
func (a *assembler) selectExpr(expr string) string {
	if _, _, ok := splitAS(expr); ok {
		return expr
	}
	return a.d.QuoteQualified(expr) + " AS " + a.d.QuoteIdent(stripAlias(expr))
}

// searchExpr renders the filterable form of a column: the pre-AS
// expression for aliased expressions, the quoted identifier otherwise.
func (a *assembler) searchExpr(expr string) string {
	if pre, _, ok := splitAS(expr); ok {
		return pre
	}
	return a.d.QuoteQualified(expr)
}

// castText wraps expr so LIKE works on non-text columns. Postgres is
// strict about operand types; mysql and sqlite coerce implicitly.
func (a *assembler) castText(expr string) string {
	if a.d == database.DialectPostgres {
		return "CAST(" + expr + " AS TEXT)"
	}
	return expr
}

// selectList computes the SELECT field list: configured columns plus any
// columns referenced only inside action-button templates, deduplicated.
func (a *assembler) selectList() []string {
	seen := make(map[string]bool)
	var fields []string

	for _, col := range a.cfg.columns {
		fields = append(fields, a.selectExpr(col.Expr))
		seen[aliasOf(col.Expr)] = true
	}

	for _, tpl := range a.cfg.actionTemplates {
		for _, m := range templateRe.FindAllStringSubmatch(tpl, -1) {
			field := m[1]
			if seen[stripAlias(field)] {
				continue
			}
			seen[stripAlias(field)] = true
			fields = append(fields, a.selectExpr(field))
		}
	}
	return fields
}

// fromJoins renders FROM plus the configured joins in order.
func (a *assembler) fromJoins(sb *strings.Builder) {
	sb.WriteString(" FROM ")
	sb.WriteString(a.cfg.table)
	for _, j := range a.cfg.joins {
		sb.WriteString(" ")
		sb.WriteString(string(j.Type))
		sb.WriteString(" ")
		sb.WriteString(j.Table)
		sb.WriteString(" ON ")
		sb.WriteString(j.On)
	}
}

// whereClause renders the configured structured conditions combined with
// the request's free-text search. Both query shapes share this method so
// data and count always accept identical filters.
func (a *assembler) whereClause(p ListParams, args *[]any, idx *int) (string, error) {
	structured, err := renderGroups(a.d, a.cfg.where, args, idx)
	if err != nil {
		return "", err
	}

	search := a.searchClause(p, args, idx)

	switch {
	case structured != "" && search != "":
		return structured + " AND " + search, nil
	case structured != "":
		return structured, nil
	default:
		return search, nil
	}
}

// searchClause builds the free-text filter: a single-column LIKE when a
// known search column was requested, otherwise an OR group across every
// configured column. An unknown requested column falls back to all.
func (a *assembler) searchClause(p ListParams, args *[]any, idx *int) string {
	term := strings.TrimSpace(p.Search)
	if term == "" {
		return ""
	}
	pattern := "%" + term + "%"

	if p.SearchColumn != "" {
		for _, col := range a.cfg.columns {
			if aliasOf(col.Expr) == p.SearchColumn || col.Expr == p.SearchColumn {
				*idx++
				*args = append(*args, pattern)
				return fmt.Sprintf("%s LIKE %s", a.castText(a.searchExpr(col.Expr)), a.d.Placeholder(*idx))
			}
		}
	}

	var parts []string
	for _, col := range a.cfg.columns {
		*idx++
		*args = append(*args, pattern)
		parts = append(parts, fmt.Sprintf("%s LIKE %s", a.castText(a.searchExpr(col.Expr)), a.d.Placeholder(*idx)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// resolveSort applies the allow-list: the requested column is accepted
// only when it is literally in the sortable list, or when it is a full
// aliased expression whose alias is listed. Accepted aliased expressions
// sort by their bare alias; plain columns by the quoted identifier.
func (a *assembler) resolveSort(col, dir string) (string, bool) {
	if col == "" {
		return "", false
	}

	direction := "ASC"
	if strings.EqualFold(dir, "DESC") {
		direction = "DESC"
	}

	if a.cfg.sortableSet(col) {
		return a.d.QuoteQualified(col) + " " + direction, true
	}
	if _, alias, ok := splitAS(col); ok && a.cfg.sortableSet(alias) {
		return a.d.QuoteIdent(alias) + " " + direction, true
	}
	return "", false
}

// groupExpr renders the GROUP BY target: raw for expressions, quoted for
// plain columns.
func (a *assembler) groupExpr() string {
	g := a.cfg.groupBy
	if strings.ContainsAny(g, "(") {
		return g
	}
	return a.d.QuoteQualified(g)
}

// DataQuery builds the paged, sorted, filtered SELECT.
func (a *assembler) DataQuery(p ListParams) (string, []any, error) {
	var sb strings.Builder
	var args []any
	idx := 0

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(a.selectList(), ", "))
	a.fromJoins(&sb)

	where, err := a.whereClause(p, &args, &idx)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if a.cfg.groupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(a.groupExpr())
	}

	if order, ok := a.resolveSort(p.SortColumn, p.SortDirection); ok {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(order)
	}

	// perPage 0 means unlimited: no LIMIT at all.
	if p.PerPage > 0 {
		page := p.Page
		if page < 1 {
			page = 1
		}
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", p.PerPage, (page-1)*p.PerPage)
	}

	return sb.String(), args, nil
}

// CountQuery builds the matching COUNT with identical filter construction.
// Grouped configs count groups, not rows, via a subquery wrap.
func (a *assembler) CountQuery(p ListParams) (string, []any, error) {
	var body strings.Builder
	var args []any
	idx := 0

	a.fromJoins(&body)
	where, err := a.whereClause(p, &args, &idx)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		body.WriteString(" WHERE ")
		body.WriteString(where)
	}

	if a.cfg.groupBy != "" {
		inner := "SELECT " + a.groupExpr() + " AS grp" + body.String() + " GROUP BY " + a.groupExpr()
		return "SELECT COUNT(*) AS total FROM (" + inner + ") AS grouped", args, nil
	}

	return "SELECT COUNT(*) AS total" + body.String(), args, nil
}

// RecordQuery builds the single-record SELECT for the given primary key
// value, with the configured structured conditions still applied.
func (a *assembler) RecordQuery(id int64) (string, []any, error) {
	var sb strings.Builder
	var args []any
	idx := 0

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(a.selectList(), ", "))
	a.fromJoins(&sb)

	structured, err := renderGroups(a.d, a.cfg.where, &args, &idx)
	if err != nil {
		return "", nil, err
	}

	idx++
	pkCond := fmt.Sprintf("%s = %s", a.d.QuoteQualified(a.cfg.primaryKey), a.d.Placeholder(idx))
	args = append(args, id)

	sb.WriteString(" WHERE ")
	if structured != "" {
		sb.WriteString(structured)
		sb.WriteString(" AND ")
	}
	sb.WriteString(pkCond)

	return sb.String(), args, nil
}

// aggExpr resolves the expression an aggregation runs over: the calculated
// expression when the column names a calculated alias, else the column.
func (a *assembler) aggExpr(column string) (string, error) {
	for _, calc := range a.cfg.calculated {
		if calc.Alias == column {
			return calc.expression(a.d)
		}
	}
	return a.d.QuoteQualified(column), nil
}

// aggKey derives the stable result-key prefix for an aggregated column.
func aggKey(column string) string {
	return strings.ReplaceAll(stripAlias(column), ".", "_")
}

// AggregationQuery builds the SUM/AVG footer query for the aggregations in
// the given scope. With GROUP BY configured, each expression is reduced to
// one representative value per group in an inner query, and the outer
// SUM/AVG runs over the grouped rows; summing raw joined rows would
// double count.
func (a *assembler) AggregationQuery(p ListParams, scope AggScope) (string, []any, error) {
	var specs []Aggregation
	for _, agg := range a.cfg.aggregations {
		if agg.Scope == scope || (agg.Scope == "" && scope == ScopeFiltered) {
			specs = append(specs, agg)
		}
	}
	if len(specs) == 0 {
		return "", nil, nil
	}

	var body strings.Builder
	var args []any
	idx := 0

	a.fromJoins(&body)
	where, err := a.whereClause(p, &args, &idx)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		body.WriteString(" WHERE ")
		body.WriteString(where)
	}

	if a.cfg.groupBy != "" {
		innerCols := make([]string, len(specs))
		outerCols := make([]string, 0, 2*len(specs))
		for i, agg := range specs {
			expr, err := a.aggExpr(agg.Column)
			if err != nil {
				return "", nil, err
			}
			innerAlias := fmt.Sprintf("agg_%d", i)
			innerCols[i] = fmt.Sprintf("MAX(%s) AS %s", expr, innerAlias)
			outerCols = append(outerCols, aggSelects(innerAlias, aggKey(agg.Column), agg.Type)...)
		}
		inner := "SELECT " + strings.Join(innerCols, ", ") + body.String() + " GROUP BY " + a.groupExpr()
		sql := "SELECT " + strings.Join(outerCols, ", ") + " FROM (" + inner + ") AS grouped"
		return sql, args, nil
	}

	cols := make([]string, 0, 2*len(specs))
	for _, agg := range specs {
		expr, err := a.aggExpr(agg.Column)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, aggSelects(expr, aggKey(agg.Column), agg.Type)...)
	}

	sql := "SELECT " + strings.Join(cols, ", ") + body.String()
	if scope == ScopePage && p.PerPage > 0 {
		// Page scope: aggregate the visible slice only.
		page := p.Page
		if page < 1 {
			page = 1
		}
		inner := "SELECT " + strings.Join(a.selectList(), ", ") + body.String()
		if order, ok := a.resolveSort(p.SortColumn, p.SortDirection); ok {
			inner += " ORDER BY " + order
		}
		inner += fmt.Sprintf(" LIMIT %d OFFSET %d", p.PerPage, (page-1)*p.PerPage)

		pageCols := make([]string, 0, 2*len(specs))
		for _, agg := range specs {
			pageCols = append(pageCols, aggSelects(a.d.QuoteIdent(aggKey(agg.Column)), aggKey(agg.Column), agg.Type)...)
		}
		return "SELECT " + strings.Join(pageCols, ", ") + " FROM (" + inner + ") AS page", args, nil
	}
	return sql, args, nil
}

// aggSelects emits the SUM/AVG select entries for one column.
func aggSelects(expr, key string, t AggType) []string {
	var out []string
	if t == AggSum || t == AggBoth {
		out = append(out, fmt.Sprintf("SUM(%s) AS %s_sum", expr, key))
	}
	if t == AggAvg || t == AggBoth {
		out = append(out, fmt.Sprintf("AVG(%s) AS %s_avg", expr, key))
	}
	return out
}
