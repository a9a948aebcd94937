package schema

import (
	"context"
	"fmt"

	"github.com/sqlpane/sqlpane/internal/database"
)

// mysqlInspector reads table structure from MySQL's information_schema.
// It selects column_type rather than data_type so width-sensitive rules
// (tinyint(1) → boolean) and enum choice lists survive inference.
type mysqlInspector struct {
	conn database.Conn
}

func (m *mysqlInspector) InspectTable(ctx context.Context, table string) (*Table, error) {
	const q = `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable = 'YES'    AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			(c.column_key = 'PRI')   AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE()
		  AND c.table_name   = ?
		ORDER BY c.ordinal_position`

	rows, err := m.conn.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %q: %w", table, err)
	}
	defer rows.Close()

	t := newTable(table)
	for rows.Next() {
		col := &Column{}
		if err := rows.Scan(
			&col.Name,
			&col.DataType,
			&col.Nullable,
			&col.DefaultValue,
			&col.MaxLength,
			&col.IsPrimary,
		); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		finishColumn(col)
		t.add(col)
	}
	return t, rows.Err()
}
