// Package schema reads table structure from a live database and infers a
// semantic field type per column. The grid engine drives rendering and
// validation off this inference, with caller overrides layered on top.
package schema

import "strings"

// FieldType is the semantic type inferred for a column (or forced by a
// caller override). It drives validation and the widget a renderer picks.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldTime     FieldType = "time"
	FieldEmail    FieldType = "email"
	FieldSelect   FieldType = "select"
	FieldSelect2  FieldType = "select2"
	FieldImage    FieldType = "image"
)

// LookupSpec configures a select2 column: a query returning value/label
// pairs used to resolve stored ids into human-readable labels.
type LookupSpec struct {
	// Query returns at least the value and label columns.
	// It may contain {field} placeholders substituted from record data.
	Query string

	// ValueField and LabelField name the columns in Query's result.
	// They default to "id" and "name".
	ValueField string
	LabelField string

	// Limit caps fetch_select2_options results. 0 means no cap.
	Limit int
}

// Column describes one table column with its inferred semantics.
type Column struct {
	Name         string
	DataType     string // raw type as reported by the engine: varchar(50), tinyint(1), …
	Field        FieldType
	Nullable     bool
	IsPrimary    bool
	DefaultValue *string
	MaxLength    *int
	Enum         []string    // closed choices for FieldSelect columns
	Lookup       *LookupSpec // set for FieldSelect2 columns
}

// Override forces a column's semantic type (and lookup, for select2)
// regardless of what inference derived from the raw type.
type Override struct {
	Field  FieldType
	Lookup *LookupSpec
}

// Table is the introspected structure of one table.
type Table struct {
	Name       string
	Columns    []*Column
	PrimaryKey string

	// byName indexes columns by unqualified name, plus an alias-qualified
	// copy per column when the grid reads the table under an alias, so
	// lookups succeed regardless of how the caller references the column.
	byName map[string]*Column
}

func newTable(name string) *Table {
	return &Table{Name: name, byName: make(map[string]*Column)}
}

func (t *Table) add(col *Column) {
	t.Columns = append(t.Columns, col)
	t.byName[col.Name] = col
	if col.IsPrimary && t.PrimaryKey == "" {
		t.PrimaryKey = col.Name
	}
}

// Column returns the column named name, accepting both qualified
// ("s.active") and unqualified ("active") forms. Returns nil when the
// table has no such column.
func (t *Table) Column(name string) *Column {
	if col, ok := t.byName[name]; ok {
		return col
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return t.byName[name[i+1:]]
	}
	return nil
}

// Has reports whether the table carries the named column.
func (t *Table) Has(name string) bool {
	return t.Column(name) != nil
}

// IndexAlias registers alias-qualified keys for every column, so
// "s.active" resolves once the grid reads the table as "streams s".
func (t *Table) IndexAlias(alias string) {
	if alias == "" {
		return
	}
	for _, col := range t.Columns {
		t.byName[alias+"."+col.Name] = col
	}
}

// ApplyOverride layers a caller-forced field type over the inferred one.
// Unknown column names are ignored; stale overrides must not break a grid.
func (t *Table) ApplyOverride(name string, ov Override) {
	col := t.Column(name)
	if col == nil {
		return
	}
	col.Field = ov.Field
	if ov.Lookup != nil {
		lk := *ov.Lookup
		if lk.ValueField == "" {
			lk.ValueField = "id"
		}
		if lk.LabelField == "" {
			lk.LabelField = "name"
		}
		col.Lookup = &lk
	}
}
