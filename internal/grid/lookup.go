package grid

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/schema"
)

// defaultOptionsLimit caps fetch_select2_options when the lookup does
// not set its own limit.
const defaultOptionsLimit = 50

// enrichLookups resolves stored select2 values into labels: one query
// per lookup column over the distinct values on the page, attached as
// "<column>_label". Lookups run after the data query, outside any
// transaction, so a concurrent change to the lookup source can surface
// a label newer than the row it annotates.
func (e *Engine) enrichLookups(ctx context.Context, ex *database.Executor, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	d := e.conn.Dialect()

	for _, spec := range e.cfg.columns {
		key := aliasOf(spec.Expr)
		col := e.cfg.TableSchema().Column(stripAlias(spec.Expr))
		if col == nil || col.Field != schema.FieldSelect2 || col.Lookup == nil {
			continue
		}
		lk := col.Lookup

		// A lookup with {field} placeholders needs per-row record context
		// that a page fetch does not carry; those columns stay unlabeled
		// here and resolve through fetch_select2_options instead.
		if templateRe.MatchString(lk.Query) {
			continue
		}

		values := distinctValues(rows, key)
		if len(values) == 0 {
			continue
		}

		sql := fmt.Sprintf("SELECT * FROM (%s) AS lookup_source WHERE %s IN (%s)",
			lk.Query, d.QuoteIdent(lk.ValueField), d.Placeholders(1, len(values)))

		found, err := ex.Query(sql).Bind(values...).Fetch(ctx, 0)
		if err != nil {
			return errs.Wrap(errs.ErrKindExecution, fmt.Sprintf("lookup for %q failed", key), err)
		}

		labels := make(map[string]any, len(found))
		for _, r := range found {
			labels[valueKey(r[lk.ValueField])] = r[lk.LabelField]
		}
		for _, row := range rows {
			if v, exists := row[key]; exists && v != nil {
				if label, hit := labels[valueKey(v)]; hit {
					row[key+"_label"] = label
				}
			}
		}
	}
	return nil
}

// fetchLookupOptions serves the select2 widget: the lookup query with
// {field} placeholders substituted from the submitted record, optionally
// narrowed by a search term or an exact value, capped.
func (e *Engine) fetchLookupOptions(ctx context.Context, ex *database.Executor, req Request) (Result, error) {
	if req.Field == "" {
		return Result{}, errs.New(errs.ErrKindValidation, "lookup field is required")
	}
	col := e.cfg.TableSchema().Column(stripAlias(req.Field))
	if col == nil || col.Field != schema.FieldSelect2 || col.Lookup == nil {
		return Result{}, errs.Newf(errs.ErrKindValidation, "field %q has no lookup", req.Field)
	}
	lk := col.Lookup
	d := e.conn.Dialect()

	inner, err := substitutePlaceholders(lk.Query, req.RecordData)
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	var args []any
	idx := 0

	sb.WriteString("SELECT * FROM (")
	sb.WriteString(inner)
	sb.WriteString(") AS lookup_options")

	var conds []string
	if term := strings.TrimSpace(req.Query); term != "" {
		idx++
		conds = append(conds, fmt.Sprintf("%s LIKE %s", d.QuoteIdent(lk.LabelField), d.Placeholder(idx)))
		args = append(args, "%"+term+"%")
	}
	if req.Value != nil {
		idx++
		conds = append(conds, fmt.Sprintf("%s = %s", d.QuoteIdent(lk.ValueField), d.Placeholder(idx)))
		args = append(args, d.NormalizeArg(req.Value))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	limit := lk.Limit
	if limit <= 0 {
		limit = defaultOptionsLimit
	}
	fmt.Fprintf(&sb, " LIMIT %d", limit)

	options, err := ex.Query(sb.String()).Bind(args...).Fetch(ctx, 0)
	if err != nil {
		return Result{}, err
	}
	return ok(options), nil
}

// substitutePlaceholders inlines {field} references from record data.
// Numeric values go in raw; everything else is single-quote escaped. A
// referenced field missing from the record is a validation error, not a
// silent empty string.
func substitutePlaceholders(query string, record map[string]any) (string, error) {
	var missing string
	out := templateRe.ReplaceAllStringFunc(query, func(m string) string {
		name := m[1 : len(m)-1]
		v, found := record[name]
		if !found {
			if missing == "" {
				missing = name
			}
			return m
		}
		return literal(v)
	})
	if missing != "" {
		return "", errs.Newf(errs.ErrKindValidation, "lookup query references missing field %q", missing)
	}
	return out, nil
}

// literal renders a record value for inline substitution.
func literal(v any) string {
	switch n := v.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", n)
	case float32, float64:
		return fmt.Sprintf("%v", n)
	case string:
		if _, err := strconv.ParseFloat(n, 64); err == nil {
			return n
		}
		return "'" + strings.ReplaceAll(n, "'", "''") + "'"
	case nil:
		return "NULL"
	default:
		s := fmt.Sprintf("%v", n)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

// distinctValues collects the unique non-nil values under key.
func distinctValues(rows []map[string]any, key string) []any {
	seen := make(map[string]bool)
	var out []any
	for _, row := range rows {
		v, found := row[key]
		if !found || v == nil {
			continue
		}
		k := valueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// valueKey normalizes a lookup value for map comparison, so an int64
// from one driver matches the string another driver returned.
func valueKey(v any) string {
	return fmt.Sprintf("%v", v)
}
