package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlpane/sqlpane/internal/errs"
)

// Dialect controls placeholder style, identifier quoting, and the
// driver-conditional SQL shapes (upsert, replace) the executor emits.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and double-quoted identifiers.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and back-quoted identifiers.
	DialectMySQL

	// DialectSQLite uses ? placeholders and double-quoted identifiers.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the parameter placeholder for the 1-based index idx.
// Postgres: $1, $2, …   MySQL/SQLite: ? (index is ignored).
func (d Dialect) Placeholder(idx int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// Placeholders returns n placeholders starting at the 1-based index from,
// joined with ", ".
func (d Dialect) Placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// QuoteIdent wraps a single SQL identifier in the dialect's quote character.
// This safely handles reserved words and mixed-case names.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes a possibly dot-qualified identifier segment by
// segment, so "s.name" becomes "s"."name" rather than one quoted token.
func (d Dialect) QuoteQualified(name string) string {
	if !strings.Contains(name, ".") {
		return d.QuoteIdent(name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// SupportsLastInsertID reports whether the driver returns generated keys
// through the statement result. Postgres requires RETURNING instead.
func (d Dialect) SupportsLastInsertID() bool {
	return d == DialectMySQL || d == DialectSQLite
}

// SupportsReturning reports whether INSERT … RETURNING is available.
func (d Dialect) SupportsReturning() bool {
	return d == DialectPostgres
}

// UpsertSQL builds an insert-or-update statement for the dialect.
//
// MySQL emits INSERT … ON DUPLICATE KEY UPDATE and ignores conflictCols.
// Postgres and SQLite emit INSERT … ON CONFLICT (…) DO UPDATE and require
// a non-empty conflict column list. Column order is sorted for stable SQL.
func (d Dialect) UpsertSQL(table string, insert, update map[string]any, conflictCols []string) (string, []any, error) {
	if len(insert) == 0 {
		return "", nil, errs.New(errs.ErrKindValidation, "upsert requires at least one insert column")
	}

	insCols := sortedKeys(insert)
	args := make([]any, 0, len(insert)+len(update))
	for _, c := range insCols {
		args = append(args, insert[c])
	}

	quoted := make([]string, len(insCols))
	for i, c := range insCols {
		quoted[i] = d.QuoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table), strings.Join(quoted, ", "), d.Placeholders(1, len(insCols)))

	updCols := sortedKeys(update)
	idx := len(insCols) + 1

	switch d {
	case DialectMySQL:
		if len(updCols) == 0 {
			return "", nil, errs.New(errs.ErrKindValidation, "upsert requires at least one update column")
		}
		sets := make([]string, len(updCols))
		for i, c := range updCols {
			sets[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(idx))
			args = append(args, update[c])
			idx++
		}
		sb.WriteString(" ON DUPLICATE KEY UPDATE ")
		sb.WriteString(strings.Join(sets, ", "))

	case DialectPostgres, DialectSQLite:
		if len(conflictCols) == 0 {
			return "", nil, errs.Newf(errs.ErrKindValidation,
				"upsert on %s requires explicit conflict columns", d)
		}
		if len(updCols) == 0 {
			return "", nil, errs.New(errs.ErrKindValidation, "upsert requires at least one update column")
		}
		conflict := make([]string, len(conflictCols))
		for i, c := range conflictCols {
			conflict[i] = d.QuoteIdent(c)
		}
		sets := make([]string, len(updCols))
		for i, c := range updCols {
			sets[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(idx))
			args = append(args, update[c])
			idx++
		}
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(conflict, ", "), strings.Join(sets, ", "))

	default:
		return "", nil, errs.Newf(errs.ErrKindUnsupported, "upsert is not supported on %s", d)
	}

	return sb.String(), args, nil
}

// ReplaceSQL builds a replace-row statement for the dialect.
//
// MySQL emits REPLACE INTO, SQLite INSERT OR REPLACE INTO. Postgres has no
// replace form; callers must use UpsertSQL with conflict columns instead.
func (d Dialect) ReplaceSQL(table string, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, errs.New(errs.ErrKindValidation, "replace requires at least one column")
	}

	var verb string
	switch d {
	case DialectMySQL:
		verb = "REPLACE INTO"
	case DialectSQLite:
		verb = "INSERT OR REPLACE INTO"
	default:
		return "", nil, errs.Newf(errs.ErrKindUnsupported, "replace is not supported on %s", d)
	}

	cols := sortedKeys(data)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
		args[i] = data[c]
	}

	sql := fmt.Sprintf("%s %s (%s) VALUES (%s)",
		verb, d.QuoteIdent(table), strings.Join(quoted, ", "), d.Placeholders(1, len(cols)))
	return sql, args, nil
}

// NormalizeArg converts Go values into the representation the driver binds
// most predictably. Booleans are stored as 0/1 on engines without a native
// boolean column type; nil passes through as SQL NULL.
func (d Dialect) NormalizeArg(v any) any {
	if b, ok := v.(bool); ok && d != DialectPostgres {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
