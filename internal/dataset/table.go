// Package dataset implements the columnar snapshot format shared by every
// engine: an in-memory Table with nullable typed columns, a snappy-compressed
// binary codec, and Store implementations for persisting named snapshots.
package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies a column's value type.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindInt
	KindString
	KindTime
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column is a named, typed, nullable vector. Only the slice matching Kind is
// populated; Valid marks non-null rows and always matches the value length.
type Column struct {
	Name  string
	Kind  Kind
	Float []float64
	Int   []int64
	Str   []string
	Time  []time.Time
	Bool  []bool
	Valid []bool
}

// NewFloatCol builds a float column; a nil valid mask means all rows valid.
func NewFloatCol(name string, vals []float64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindFloat, Float: vals, Valid: fillValid(valid, len(vals))}
}

// NewIntCol builds an int column; a nil valid mask means all rows valid.
func NewIntCol(name string, vals []int64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindInt, Int: vals, Valid: fillValid(valid, len(vals))}
}

// NewStringCol builds a string column; a nil valid mask means all rows valid.
func NewStringCol(name string, vals []string, valid []bool) *Column {
	return &Column{Name: name, Kind: KindString, Str: vals, Valid: fillValid(valid, len(vals))}
}

// NewTimeCol builds a time column; a nil valid mask means all rows valid.
func NewTimeCol(name string, vals []time.Time, valid []bool) *Column {
	return &Column{Name: name, Kind: KindTime, Time: vals, Valid: fillValid(valid, len(vals))}
}

// NewBoolCol builds a bool column; a nil valid mask means all rows valid.
func NewBoolCol(name string, vals []bool, valid []bool) *Column {
	return &Column{Name: name, Kind: KindBool, Bool: vals, Valid: fillValid(valid, len(vals))}
}

func fillValid(valid []bool, n int) []bool {
	if valid != nil {
		return valid
	}
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Valid) }

// IsNull reports whether row i holds no value.
func (c *Column) IsNull(i int) bool { return !c.Valid[i] }

// FloatAt returns the float value at row i; ok is false for nulls or
// non-float columns.
func (c *Column) FloatAt(i int) (float64, bool) {
	if c.Kind != KindFloat || !c.Valid[i] {
		return 0, false
	}
	return c.Float[i], true
}

// IntAt returns the int value at row i; ok is false for nulls or non-int
// columns.
func (c *Column) IntAt(i int) (int64, bool) {
	if c.Kind != KindInt || !c.Valid[i] {
		return 0, false
	}
	return c.Int[i], true
}

// StringAt returns the string value at row i; ok is false for nulls or
// non-string columns.
func (c *Column) StringAt(i int) (string, bool) {
	if c.Kind != KindString || !c.Valid[i] {
		return "", false
	}
	return c.Str[i], true
}

// TimeAt returns the time value at row i; ok is false for nulls or non-time
// columns.
func (c *Column) TimeAt(i int) (time.Time, bool) {
	if c.Kind != KindTime || !c.Valid[i] {
		return time.Time{}, false
	}
	return c.Time[i], true
}

// BoolAt returns the bool value at row i; ok is false for nulls or non-bool
// columns.
func (c *Column) BoolAt(i int) (bool, bool) {
	if c.Kind != KindBool || !c.Valid[i] {
		return false, false
	}
	return c.Bool[i], true
}

// AsFloat coerces the value at row i to float64. Float and Int columns
// coerce; other kinds and nulls report ok=false.
func (c *Column) AsFloat(i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	switch c.Kind {
	case KindFloat:
		return c.Float[i], true
	case KindInt:
		return float64(c.Int[i]), true
	default:
		return 0, false
	}
}

// renderString formats the value at row i for string promotion.
func (c *Column) renderString(i int) string {
	if !c.Valid[i] {
		return ""
	}
	switch c.Kind {
	case KindFloat:
		return strconv.FormatFloat(c.Float[i], 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(c.Int[i], 10)
	case KindString:
		return c.Str[i]
	case KindTime:
		return c.Time[i].Format("2006-01-02")
	case KindBool:
		return strconv.FormatBool(c.Bool[i])
	default:
		return ""
	}
}

// Table is an immutable set of equal-length columns with unique names.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New validates and assembles a table from columns. All columns must share
// one length and carry distinct names.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("dataset: column %d has empty name", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("dataset: column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// Empty returns a table with zero rows and zero columns.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Col looks a column up by name.
func (t *Table) Col(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// HasCol reports whether the named column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column { return t.cols }

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Concat stacks tables vertically with schema reconciliation: the output
// schema is the union of all input columns in first-seen order; a column
// absent from an input contributes nulls for those rows. Conflicting kinds
// promote: float+int becomes float, any other mix becomes string.
func Concat(tables ...*Table) (*Table, error) {
	nonEmpty := tables[:0:0]
	for _, t := range tables {
		if t != nil && t.NumCols() > 0 {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return Empty(), nil
	}

	var order []string
	kinds := map[string]Kind{}
	totalRows := 0
	for _, t := range nonEmpty {
		totalRows += t.NumRows()
		for _, c := range t.cols {
			k, seen := kinds[c.Name]
			if !seen {
				kinds[c.Name] = c.Kind
				order = append(order, c.Name)
				continue
			}
			kinds[c.Name] = promote(k, c.Kind)
		}
	}

	out := make([]*Column, 0, len(order))
	for _, name := range order {
		out = append(out, concatColumn(name, kinds[name], nonEmpty, totalRows))
	}
	return New(out...)
}

func promote(a, b Kind) Kind {
	if a == b {
		return a
	}
	if (a == KindFloat && b == KindInt) || (a == KindInt && b == KindFloat) {
		return KindFloat
	}
	return KindString
}

func concatColumn(name string, kind Kind, tables []*Table, totalRows int) *Column {
	valid := make([]bool, 0, totalRows)
	var (
		floats  []float64
		ints    []int64
		strs    []string
		times   []time.Time
		bools   []bool
	)
	switch kind {
	case KindFloat:
		floats = make([]float64, 0, totalRows)
	case KindInt:
		ints = make([]int64, 0, totalRows)
	case KindString:
		strs = make([]string, 0, totalRows)
	case KindTime:
		times = make([]time.Time, 0, totalRows)
	case KindBool:
		bools = make([]bool, 0, totalRows)
	}

	appendNulls := func(n int) {
		for i := 0; i < n; i++ {
			valid = append(valid, false)
			switch kind {
			case KindFloat:
				floats = append(floats, 0)
			case KindInt:
				ints = append(ints, 0)
			case KindString:
				strs = append(strs, "")
			case KindTime:
				times = append(times, time.Time{})
			case KindBool:
				bools = append(bools, false)
			}
		}
	}

	for _, t := range tables {
		src, ok := t.Col(name)
		if !ok {
			appendNulls(t.NumRows())
			continue
		}
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				appendNulls(1)
				continue
			}
			valid = append(valid, true)
			switch kind {
			case KindFloat:
				v, _ := src.AsFloat(i)
				floats = append(floats, v)
			case KindInt:
				ints = append(ints, src.Int[i])
			case KindString:
				strs = append(strs, src.renderString(i))
			case KindTime:
				times = append(times, src.Time[i])
			case KindBool:
				bools = append(bools, src.Bool[i])
			}
		}
	}

	return &Column{
		Name: name, Kind: kind, Valid: valid,
		Float: floats, Int: ints, Str: strs, Time: times, Bool: bools,
	}
}
