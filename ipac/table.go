package ipac

import (
	"github.com/rickbassham/fitscore/errors"
)

// Column is one column definition of a Table.
type Column struct {
	Name       string
	Title      string
	Type       DataType
	Unit       string
	Nullable   bool
	NullString string
	Format     FormatInfo
	Sortable   bool
	Filterable bool
}

// NewColumn returns a column with the default format for t.
func NewColumn(name string, t DataType) *Column {
	return &Column{
		Name:       name,
		Title:      name,
		Type:       t,
		Format:     DefaultFormat(t),
		Sortable:   true,
		Filterable: true,
	}
}

// Row holds one value per column and, for parsed rows, the raw text of
// each cell.
type Row struct {
	Values    []interface{}
	Formatted []string
}

// Set replaces the value at i and drops the raw text of the row.
func (r *Row) Set(i int, v interface{}) {
	r.Values[i] = v
	r.Formatted = nil
}

// Attribute is a table keyword (Key = Value) or, when Comment is set, a
// free-text comment stored in Value.
type Attribute struct {
	Key     string
	Value   string
	Comment bool
}

// Table is an ordered set of rows sharing one set of columns.
type Table struct {
	Columns []*Column
	rows    []*Row
	attrs   []Attribute
}

// NewTable returns an empty table with the given columns.
func NewTable(cols ...*Column) *Table {
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Row(i int) *Row {
	return t.rows[i]
}

// Rows returns the rows in order. The slice is shared with the table.
func (t *Table) Rows() []*Row {
	return t.rows
}

// AddRow appends a row. The number of values must match the columns.
func (t *Table) AddRow(values ...interface{}) *Row {
	if len(values) != len(t.Columns) {
		panic(errors.AssertionFailedf("row has %d values, table has %d columns", len(values), len(t.Columns)))
	}
	r := &Row{Values: values}
	t.rows = append(t.rows, r)
	return r
}

func (t *Table) addRow(r *Row) {
	t.rows = append(t.rows, r)
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) *Column {
	if i := t.ColumnIndex(name); i >= 0 {
		return t.Columns[i]
	}
	return nil
}

// SetAttribute sets a keyword, keeping its position if it already exists.
func (t *Table) SetAttribute(key, value string) {
	for i := range t.attrs {
		if !t.attrs[i].Comment && t.attrs[i].Key == key {
			t.attrs[i].Value = value
			return
		}
	}
	t.attrs = append(t.attrs, Attribute{Key: key, Value: value})
}

// AddComment appends a comment attribute.
func (t *Table) AddComment(text string) {
	t.attrs = append(t.attrs, Attribute{Value: text, Comment: true})
}

// Attribute returns the value of a keyword.
func (t *Table) Attribute(key string) (string, bool) {
	for _, a := range t.attrs {
		if !a.Comment && a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Attributes returns all attributes in insertion order.
func (t *Table) Attributes() []Attribute {
	out := make([]Attribute, len(t.attrs))
	copy(out, t.attrs)
	return out
}

// Keywords returns the keyword attributes in insertion order.
func (t *Table) Keywords() []Attribute {
	return t.filterAttrs(false)
}

// Comments returns the comment attributes in insertion order.
func (t *Table) Comments() []Attribute {
	return t.filterAttrs(true)
}

func (t *Table) filterAttrs(comment bool) []Attribute {
	var out []Attribute
	for _, a := range t.attrs {
		if a.Comment == comment {
			out = append(out, a)
		}
	}
	return out
}

func (t *Table) copyAttrs(from *Table) {
	t.attrs = from.Attributes()
}

func (c *Column) clone() *Column {
	cp := *c
	return &cp
}
