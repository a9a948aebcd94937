package schema

import (
	"context"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
)

// Inspector reads the structure of a single table. Each dialect implements
// the engine-specific query; field inference is shared.
type Inspector interface {
	InspectTable(ctx context.Context, table string) (*Table, error)
}

// NewInspector returns the Inspector for the connection's dialect.
func NewInspector(conn database.Conn) (Inspector, error) {
	switch conn.Dialect() {
	case database.DialectPostgres:
		return &pgInspector{conn: conn}, nil
	case database.DialectMySQL:
		return &mysqlInspector{conn: conn}, nil
	case database.DialectSQLite:
		return &sqliteInspector{conn: conn}, nil
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "no schema inspector for dialect %s", conn.Dialect())
	}
}

// Inspect loads the structure of table through the connection's dialect.
// This runs live queries; grids call it once at table-binding time and
// keep the result for the lifetime of the configuration.
func Inspect(ctx context.Context, conn database.Conn, table string) (*Table, error) {
	ins, err := NewInspector(conn)
	if err != nil {
		return nil, err
	}
	t, err := ins.InspectTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, errs.Newf(errs.ErrKindValidation, "table %q not found or has no columns", table)
	}
	return t, nil
}

// finishColumn applies shared inference to a freshly scanned column.
func finishColumn(col *Column) {
	col.Field = InferField(col.DataType)
	if col.Field == FieldSelect {
		col.Enum = ParseEnum(col.DataType)
	}
}
