package network

import "fmt"

// Table is a columnar read result. Each column holds one nullable value per
// row; a nil entry is a null.
type Table struct {
	names []string
	cols  [][]*string
}

// NewTable returns an empty table with the given column names.
func NewTable(names ...string) *Table {
	return &Table{
		names: names,
		cols:  make([][]*string, len(names)),
	}
}

// Append adds one row. It panics if the number of values does not match the
// number of columns.
func (t *Table) Append(values ...*string) {
	if len(values) != len(t.cols) {
		panic(fmt.Sprintf("network: append %d values to %d columns", len(values), len(t.cols)))
	}
	for i, v := range values {
		t.cols[i] = append(t.cols[i], v)
	}
}

// Names returns the column names.
func (t *Table) Names() []string {
	return t.names
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]*string, bool) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], true
		}
	}
	return nil, false
}

// NonNull returns the non-null values of the named column in row order.
func (t *Table) NonNull(name string) []string {
	col, _ := t.Column(name)
	out := make([]string, 0, len(col))
	for _, v := range col {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
