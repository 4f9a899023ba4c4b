// Package table holds the typed, column-oriented rows that flow between
// pipeline stages.
package table

import (
	"fmt"
	"strconv"
)

// Kind is the declared type of a column.
type Kind int

const (
	Text Kind = iota
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "text"
	}
}

// Value is a single cell. Raw keeps the exact source text so that
// identifiers such as category ids never lose leading zeros.
type Value struct {
	Missing bool
	Raw     string
	Int     int64
	Float   float64
}

// Missing returns the missing marker.
func Missing() Value { return Value{Missing: true} }

// TextValue returns a present text cell.
func TextValue(s string) Value { return Value{Raw: s} }

// IntValue returns a present integer cell.
func IntValue(i int64) Value {
	return Value{Raw: strconv.FormatInt(i, 10), Int: i, Float: float64(i)}
}

// FloatValue returns a present floating point cell.
func FloatValue(f float64) Value {
	return Value{Raw: strconv.FormatFloat(f, 'f', -1, 64), Float: f, Int: int64(f)}
}

// String renders the cell for keys and logs; missing cells render empty.
func (v Value) String() string {
	if v.Missing {
		return ""
	}
	return v.Raw
}

// Column is a named, typed sequence of values.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// NewColumn creates a column with the given values.
func NewColumn(name string, kind Kind, values []Value) *Column {
	return &Column{Name: name, Kind: kind, Values: values}
}

// Len returns the number of values in the column.
func (c *Column) Len() int { return len(c.Values) }

// Table is an ordered set of uniquely named columns of equal length.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New returns an empty table with the given row count. Columns added later
// must have exactly rows values.
func New(rows int) *Table {
	return &Table{index: make(map[string]int), rows: rows}
}

// AddColumn appends a column. Names must be unique and lengths must match.
func (t *Table) AddColumn(c *Column) error {
	if _, exists := t.index[c.Name]; exists {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", c.Name, c.Len(), t.rows)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// SetColumn replaces a column with the same name or appends it.
func (t *Table) SetColumn(c *Column) error {
	i, exists := t.index[c.Name]
	if !exists {
		return t.AddColumn(c)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", c.Name, c.Len(), t.rows)
	}
	t.columns[i] = c
	return nil
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column with this name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.columns) }

// Row returns the values of row i across all columns.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Filter keeps the rows for which keep returns true, preserving order, and
// returns how many rows were removed.
func (t *Table) Filter(keep func(row int) bool) int {
	kept := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			kept = append(kept, i)
		}
	}
	removed := t.rows - len(kept)
	if removed == 0 {
		return 0
	}
	for _, c := range t.columns {
		values := make([]Value, len(kept))
		for j, i := range kept {
			values[j] = c.Values[i]
		}
		c.Values = values
	}
	t.rows = len(kept)
	return removed
}
