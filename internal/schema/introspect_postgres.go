package schema

import (
	"context"
	"fmt"

	"github.com/sqlpane/sqlpane/internal/database"
)

// pgInspector reads table structure from PostgreSQL's information_schema.
type pgInspector struct {
	conn database.Conn
}

func (p *pgInspector) InspectTable(ctx context.Context, table string) (*Table, error) {
	const q = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES'         AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			COALESCE(pk.is_pk, false)     AS is_primary_key
		FROM information_schema.columns c

		-- Primary key check
		LEFT JOIN (
			SELECT kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = 'public'
			  AND tc.table_name   = $1
		) pk ON pk.column_name = c.column_name

		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position`

	rows, err := p.conn.Query(ctx, q, table)
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
