package schema

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
)

// sqliteInspector reads table structure via PRAGMA table_info.
type sqliteInspector struct {
	conn database.Conn
}

// PRAGMA arguments cannot be bound, so the table name is restricted to a
// safe identifier character class before being spliced into the statement.
var sqliteIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (s *sqliteInspector) InspectTable(ctx context.Context, table string) (*Table, error) {
	if !sqliteIdentRe.MatchString(table) {
		return nil, errs.Newf(errs.ErrKindValidation, "invalid table name %q", table)
	}

	q := fmt.Sprintf("PRAGMA table_info(%s)", database.DialectSQLite.QuoteIdent(table))

	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("inspect table %q: %w", table, err)
	}
	defer rows.Close()

	t := newTable(table)
	for rows.Next() {
		var (
			cid     int
			notNull int
			pk      int
			col     = &Column{}
		)
		if err := rows.Scan(&cid, &col.Name, &col.DataType, &notNull, &col.DefaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Nullable = notNull == 0
		col.IsPrimary = pk > 0
		finishColumn(col)
		t.add(col)
	}
	return t, rows.Err()
}
