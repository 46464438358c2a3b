package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fluxmap/internal/dataset"
)

// Known header synonyms remapped during normalization.
var headerSynonyms = map[string]string{
	"dt":       "date",
	"st":       "state",
	"dist":     "district",
	"pin":      "pincode",
	"pin_code": "pincode",
}

// Date layouts attempted in order; a column where any value fails both stays
// a plain string column.
var dateLayouts = []string{"02-01-2006", "2006-01-02"}

// NormalizeHeader lowercases, trims, squashes inner whitespace to
// underscores, and applies the synonym map.
func NormalizeHeader(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Join(strings.Fields(n), "_")
	if mapped, ok := headerSynonyms[n]; ok {
		return mapped
	}
	return n
}

// DecodeCSV reads a tabular file into a Table: headers normalized, numeric
// columns detected as nullable floats, the date column parsed when every
// value fits a known layout. Ragged rows are tolerated; missing cells become
// nulls.
func DecodeCSV(r io.Reader) (*dataset.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	if len(records) == 0 {
		return dataset.Empty(), nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = NormalizeHeader(h)
	}
	rows := records[1:]

	cols := make([]*dataset.Column, 0, len(header))
	for ci, name := range header {
		if name == "" {
			name = fmt.Sprintf("column_%d", ci)
		}
		cells := make([]string, len(rows))
		for ri, row := range rows {
			if ci < len(row) {
				cells[ri] = strings.TrimSpace(row[ci])
			}
		}
		cols = append(cols, buildColumn(name, cells))
	}

	return dataset.New(dedupeNames(cols)...)
}

// buildColumn picks the narrowest type that fits every non-empty cell:
// date layouts for the date column, float for numerics, string otherwise.
func buildColumn(name string, cells []string) *dataset.Column {
	if name == "date" {
		if col, ok := tryTimeColumn(name, cells); ok {
			return col
		}
	}
	if col, ok := tryFloatColumn(name, cells); ok {
		return col
	}

	valid := make([]bool, len(cells))
	for i, c := range cells {
		valid[i] = c != ""
	}
	return dataset.NewStringCol(name, cells, valid)
}

func tryTimeColumn(name string, cells []string) (*dataset.Column, bool) {
	vals := make([]time.Time, len(cells))
	valid := make([]bool, len(cells))
	for i, c := range cells {
		if c == "" {
			continue
		}
		t, ok := parseDate(c)
		if !ok {
			return nil, false
		}
		vals[i] = t
		valid[i] = true
	}
	return dataset.NewTimeCol(name, vals, valid), true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func tryFloatColumn(name string, cells []string) (*dataset.Column, bool) {
	vals := make([]float64, len(cells))
	valid := make([]bool, len(cells))
	any := false
	for i, c := range cells {
		if c == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(c, ",", ""), 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
		valid[i] = true
		any = true
	}
	// A column with no values at all stays string-typed rather than
	// pretending to be numeric.
	if !any {
		return nil, false
	}
	return dataset.NewFloatCol(name, vals, valid), true
}

// dedupeNames suffixes repeated header names so Table construction succeeds.
func dedupeNames(cols []*dataset.Column) []*dataset.Column {
	seen := map[string]int{}
	for _, c := range cols {
		n := seen[c.Name]
		seen[c.Name] = n + 1
		if n > 0 {
			c.Name = fmt.Sprintf("%s_%d", c.Name, n)
		}
	}
	return cols
}
