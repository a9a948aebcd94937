// Package grid is the schema-driven grid/query engine: a declarative table
// configuration (columns, joins, filters, sortable and editable fields,
// calculated columns, aggregations) from which safe parameterized SQL is
// assembled for listing, searching, sorting, paging, editing, deleting,
// bulk-mutating, and aggregating records.
package grid

import (
	"fmt"
	"strings"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
)

// Comparator is the closed vocabulary for structured WHERE conditions.
// The operator position cannot be parameterized, so anything outside this
// allow-list is rejected.
type Comparator string

const (
	CmpEq      Comparator = "="
	CmpNeq     Comparator = "!="
	CmpNeqAlt  Comparator = "<>"
	CmpLt      Comparator = "<"
	CmpGt      Comparator = ">"
	CmpLte     Comparator = "<="
	CmpGte     Comparator = ">="
	CmpIn      Comparator = "IN"
	CmpNotIn   Comparator = "NOT IN"
	CmpLike    Comparator = "LIKE"
	CmpNotLike Comparator = "NOT LIKE"
)

var validComparators = map[Comparator]bool{
	CmpEq: true, CmpNeq: true, CmpNeqAlt: true,
	CmpLt: true, CmpGt: true, CmpLte: true, CmpGte: true,
	CmpIn: true, CmpNotIn: true,
	CmpLike: true, CmpNotLike: true,
}

// Condition is one structured WHERE condition. For IN / NOT IN the value
// must be a []any list.
type Condition struct {
	Field      string
	Comparator Comparator
	Value      any
}

// GroupOperator joins the conditions inside one group.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// ConditionGroup is a set of conditions joined by one operator. Groups
// themselves always combine with AND.
type ConditionGroup struct {
	Operator   GroupOperator
	Conditions []Condition
}

// And wraps a flat condition list as a single implicit-AND group.
func And(conds ...Condition) ConditionGroup {
	return ConditionGroup{Operator: GroupAnd, Conditions: conds}
}

// Or wraps conditions as an OR group.
func Or(conds ...Condition) ConditionGroup {
	return ConditionGroup{Operator: GroupOr, Conditions: conds}
}

// renderCondition produces "field cmp ?" (or an IN list) and appends the
// bound values. Identifiers containing a dot are treated as already
// qualified and quoted segment by segment; bare names are quoted whole.
func renderCondition(d database.Dialect, c Condition, args *[]any, idx *int) (string, error) {
	if !validComparators[c.Comparator] {
		return "", errs.Newf(errs.ErrKindValidation, "unsupported comparator %q", string(c.Comparator))
	}

	field := d.QuoteQualified(c.Field)

	switch c.Comparator {
	case CmpIn, CmpNotIn:
		vals, ok := toList(c.Value)
		if !ok || len(vals) == 0 {
			return "", errs.Newf(errs.ErrKindValidation,
				"%s condition on %q requires a non-empty list value", c.Comparator, c.Field)
		}
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			*idx++
			placeholders[i] = d.Placeholder(*idx)
			*args = append(*args, d.NormalizeArg(v))
		}
		return fmt.Sprintf("%s %s (%s)", field, c.Comparator, strings.Join(placeholders, ", ")), nil

	default:
		*idx++
		*args = append(*args, d.NormalizeArg(c.Value))
		return fmt.Sprintf("%s %s %s", field, c.Comparator, d.Placeholder(*idx)), nil
	}
}

// renderGroups renders condition groups joined by AND, each group's
// conditions joined by the group operator and parenthesized.
func renderGroups(d database.Dialect, groups []ConditionGroup, args *[]any, idx *int) (string, error) {
	var parts []string
	for _, g := range groups {
		if len(g.Conditions) == 0 {
			continue
		}
		op := g.Operator
		if op != GroupOr {
			op = GroupAnd
		}

		rendered := make([]string, 0, len(g.Conditions))
		for _, c := range g.Conditions {
			clause, err := renderCondition(d, c, args, idx)
			if err != nil {
				return "", err
			}
			rendered = append(rendered, clause)
		}
		parts = append(parts, "("+strings.Join(rendered, " "+string(op)+" ")+")")
	}
	return strings.Join(parts, " AND "), nil
}

// stripAlias removes the table qualification from a condition field so the
// same conditions apply to writes against the unaliased base table.
func stripAlias(field string) string {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}

// stripAliasGroups rewrites every condition field to its unqualified form.
func stripAliasGroups(groups []ConditionGroup) []ConditionGroup {
	out := make([]ConditionGroup, len(groups))
	for i, g := range groups {
		conds := make([]Condition, len(g.Conditions))
		for j, c := range g.Conditions {
			c.Field = stripAlias(c.Field)
			conds[j] = c
		}
		out[i] = ConditionGroup{Operator: g.Operator, Conditions: conds}
	}
	return out
}

func toList(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
