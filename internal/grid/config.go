package grid

import (
	"context"
	"strings"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/schema"
)

// JoinType is the closed set of supported join kinds.
type JoinType string

const (
	JoinInner     JoinType = "INNER JOIN"
	JoinLeft      JoinType = "LEFT JOIN"
	JoinRight     JoinType = "RIGHT JOIN"
	JoinFullOuter JoinType = "FULL OUTER JOIN"
)

// Join is one configured join. The ON condition is caller-authored and
// trusted; it is configuration, not request input.
type Join struct {
	Type  JoinType
	Table string
	On    string
}

// ColumnSpec maps a column or raw aliased expression to a display label.
type ColumnSpec struct {
	// Expr is a plain column ("s.name"), or a raw SQL expression aliased
	// with AS ("CONCAT(first, ' ', last) AS full_name").
	Expr  string
	Label string
}

// Calculated is a named expression combining two or more columns with one
// arithmetic operator, or a raw expression. It is injected into the select
// list as "expr AS alias".
type Calculated struct {
	Alias    string
	Fields   []string
	Operator string // one of + - * / %
	Raw      string // used verbatim when set
}

var calcOperators = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true}

// expression renders the calculated expression without its alias.
func (c Calculated) expression(d database.Dialect) (string, error) {
	if c.Raw != "" {
		return c.Raw, nil
	}
	if len(c.Fields) < 2 {
		return "", errs.Newf(errs.ErrKindValidation,
			"calculated column %q needs at least two fields", c.Alias)
	}
	if !calcOperators[c.Operator] {
		return "", errs.Newf(errs.ErrKindValidation,
			"calculated column %q has unsupported operator %q", c.Alias, c.Operator)
	}
	quoted := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		quoted[i] = d.QuoteQualified(f)
	}
	return "(" + strings.Join(quoted, " "+c.Operator+" ") + ")", nil
}

// AggType selects which aggregates a footer column computes.
type AggType string

const (
	AggSum  AggType = "sum"
	AggAvg  AggType = "avg"
	AggBoth AggType = "both"
)

// AggScope selects whether aggregates cover the current page or the full
// filtered result set.
type AggScope string

const (
	ScopePage     AggScope = "page"
	ScopeFiltered AggScope = "filtered"
)

// Aggregation is one footer aggregation spec.
type Aggregation struct {
	Column string
	Type   AggType
	Scope  AggScope
}

// BulkActionFunc is caller-injected bulk behavior. It receives the selected
// ids, an executor already inside the bulk transaction, and the unaliased
// base table. Returning a non-negative count overrides the reported
// affected-row count; returning -1 defaults it to len(ids).
type BulkActionFunc func(ctx context.Context, ids []int64, ex *database.Executor, baseTable string) (int64, error)

// RowActionFunc is caller-injected per-row behavior.
type RowActionFunc func(ctx context.Context, id int64, row map[string]any, ex *database.Executor, baseTable string) error

// BulkAction registers a named bulk operation with its messaging.
type BulkAction struct {
	Fn             BulkActionFunc
	SuccessMessage string
	ErrorMessage   string
}

// RowAction registers a named per-row operation with its messaging.
type RowAction struct {
	Fn             RowActionFunc
	SuccessMessage string
	ErrorMessage   string
}

// Config is the immutable declarative description of one grid. It holds no
// query logic; the assembler and mutation handler read it through the
// accessors below. Construct it with NewBuilder; after Build it must not
// be mutated.
type Config struct {
	table      string // possibly aliased: "streams s"
	baseTable  string // unaliased, used for writes
	tableAlias string

	columns        []ColumnSpec
	joins          []Join
	where          []ConditionGroup
	sortable       []string
	inlineEditable []string
	calculated     []Calculated
	aggregations   []Aggregation
	groupBy        string
	primaryKey     string // possibly qualified: "s.id"

	perPage         int
	pageSizeOptions []int
	allOption       bool

	actionTemplates []string
	bulkActions     map[string]BulkAction
	rowActions      map[string]RowAction

	cssClasses string

	schema *schema.Table
}

// --- Read accessors ---

// Table returns the read-query table reference, possibly aliased.
func (c *Config) Table() string { return c.table }

// BaseTable returns the unaliased table name used for writes.
func (c *Config) BaseTable() string { return c.baseTable }

// Columns returns the configured display columns in order.
func (c *Config) Columns() []ColumnSpec { return c.columns }

// TableSchema returns the introspected schema with overrides applied.
func (c *Config) TableSchema() *schema.Table { return c.schema }

// PrimaryKey returns the possibly qualified primary key reference.
func (c *Config) PrimaryKey() string { return c.primaryKey }

// BasePrimaryKey returns the unqualified primary key used for writes.
func (c *Config) BasePrimaryKey() string { return stripAlias(c.primaryKey) }

// PerPage returns the default page size. Zero means no limit.
func (c *Config) PerPage() int { return c.perPage }

// PageSizeOptions returns the selectable page sizes, with 0 meaning "all"
// when the all option is enabled.
func (c *Config) PageSizeOptions() []int { return c.pageSizeOptions }

// CssClasses returns the renderer hint classes. The engine never reads them.
func (c *Config) CssClasses() string { return c.cssClasses }

// Aggregations returns the footer aggregation specs.
func (c *Config) Aggregations() []Aggregation { return c.aggregations }

// sortableSet reports whether name is in the sortable allow-list.
func (c *Config) sortableSet(name string) bool {
	for _, s := range c.sortable {
		if s == name {
			return true
		}
	}
	return false
}

// inlineEditableSet checks the inline-edit allow-list by qualified or
// unqualified name.
func (c *Config) inlineEditableSet(name string) bool {
	bare := stripAlias(name)
	for _, s := range c.inlineEditable {
		if s == name || stripAlias(s) == bare {
			return true
		}
	}
	return false
}

// Builder assembles a Config and binds it to a live table schema.
type Builder struct {
	cfg *Config
	err error

	overrides map[string]schema.Override
}

// NewBuilder starts a grid configuration for table, which may carry an
// alias ("streams s" or "streams AS s").
func NewBuilder(table string) *Builder {
	base, alias := splitTableAlias(table)
	return &Builder{
		cfg: &Config{
			table:       table,
			baseTable:   base,
			tableAlias:  alias,
			perPage:     25,
			bulkActions: make(map[string]BulkAction),
			rowActions:  make(map[string]RowAction),
		},
		overrides: make(map[string]schema.Override),
	}
}

// Columns sets the ordered display columns.
func (b *Builder) Columns(cols ...ColumnSpec) *Builder {
	b.cfg.columns = cols
	return b
}

// Join appends a join in configuration order.
func (b *Builder) Join(t JoinType, table, on string) *Builder {
	b.cfg.joins = append(b.cfg.joins, Join{Type: t, Table: table, On: on})
	return b
}

// Where sets the structured filter applied to every read and, alias-
// stripped, to every write.
func (b *Builder) Where(groups ...ConditionGroup) *Builder {
	b.cfg.where = groups
	return b
}

// Sortable sets the sort allow-list (columns or expression aliases).
func (b *Builder) Sortable(cols ...string) *Builder {
	b.cfg.sortable = cols
	return b
}

// InlineEditable sets the inline-edit allow-list.
func (b *Builder) InlineEditable(cols ...string) *Builder {
	b.cfg.inlineEditable = cols
	return b
}

// Calculated appends a calculated column.
func (b *Builder) Calculated(c Calculated) *Builder {
	b.cfg.calculated = append(b.cfg.calculated, c)
	return b
}

// Aggregate appends a footer aggregation.
func (b *Builder) Aggregate(column string, t AggType, scope AggScope) *Builder {
	b.cfg.aggregations = append(b.cfg.aggregations, Aggregation{Column: column, Type: t, Scope: scope})
	return b
}

// GroupBy sets the single grouping column or expression.
func (b *Builder) GroupBy(expr string) *Builder {
	b.cfg.groupBy = expr
	return b
}

// PrimaryKey overrides the introspected primary key, possibly qualified.
func (b *Builder) PrimaryKey(pk string) *Builder {
	b.cfg.primaryKey = pk
	return b
}

// PerPage sets pagination defaults. A perPage of 0 means no limit.
func (b *Builder) PerPage(n int, options []int, allOption bool) *Builder {
	b.cfg.perPage = n
	b.cfg.pageSizeOptions = options
	b.cfg.allOption = allOption
	return b
}

// Override forces a column's semantic type (select2 with lookup, image,
// boolean, …) on top of schema inference.
func (b *Builder) Override(column string, ov schema.Override) *Builder {
	b.overrides[column] = ov
	return b
}

// ActionTemplates registers row-button templates whose {field} placeholders
// may reference columns beyond the display set; those columns are added to
// the select list.
func (b *Builder) ActionTemplates(templates ...string) *Builder {
	b.cfg.actionTemplates = templates
	return b
}

// BulkAction registers a named bulk operation.
func (b *Builder) BulkAction(name string, a BulkAction) *Builder {
	b.cfg.bulkActions[name] = a
	return b
}

// RowAction registers a named per-row operation.
func (b *Builder) RowAction(name string, a RowAction) *Builder {
	b.cfg.rowActions[name] = a
	return b
}

// CssClasses sets renderer hint classes exposed through the config.
func (b *Builder) CssClasses(classes string) *Builder {
	b.cfg.cssClasses = classes
	return b
}

// Build introspects the base table and freezes the configuration.
// When no explicit columns were configured, all non-primary-key schema
// columns become the display set with generated labels.
func (b *Builder) Build(ctx context.Context, conn database.Conn) (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	cfg := b.cfg

	t, err := schema.Inspect(ctx, conn, cfg.baseTable)
	if err != nil {
		return nil, err
	}
	t.IndexAlias(cfg.tableAlias)

	for name, ov := range b.overrides {
		t.ApplyOverride(name, ov)
	}
	cfg.schema = t

	if cfg.primaryKey == "" {
		cfg.primaryKey = t.PrimaryKey
		if cfg.tableAlias != "" && cfg.primaryKey != "" {
			cfg.primaryKey = cfg.tableAlias + "." + cfg.primaryKey
		}
	}
	if cfg.primaryKey == "" {
		return nil, errs.Newf(errs.ErrKindValidation,
			"table %q has no primary key and none was configured", cfg.baseTable)
	}

	if len(cfg.columns) == 0 {
		for _, col := range t.Columns {
			if col.IsPrimary {
				continue
			}
			expr := col.Name
			if cfg.tableAlias != "" {
				expr = cfg.tableAlias + "." + col.Name
			}
			cfg.columns = append(cfg.columns, ColumnSpec{Expr: expr, Label: schema.Label(col.Name)})
		}
	}

	// Calculated columns join the display set as aliased expressions.
	d := conn.Dialect()
	for _, calc := range cfg.calculated {
		expr, err := calc.expression(d)
		if err != nil {
			return nil, err
		}
		cfg.columns = append(cfg.columns, ColumnSpec{
			Expr:  expr + " AS " + calc.Alias,
			Label: schema.Label(calc.Alias),
		})
	}

	return cfg, nil
}

// splitTableAlias splits "streams s" / "streams AS s" into base and alias.
func splitTableAlias(table string) (base, alias string) {
	fields := strings.Fields(table)
	switch len(fields) {
	case 2:
		return fields[0], fields[1]
	case 3:
		if strings.EqualFold(fields[1], "AS") {
			return fields[0], fields[2]
		}
	}
	return table, ""
}
