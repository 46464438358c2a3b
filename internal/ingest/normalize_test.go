package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/dataset"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Date", "date"},
		{"  State  ", "state"},
		{"Age 0 5", "age_0_5"},
		{"dt", "date"},
		{"Dist", "district"},
		{"PIN_CODE", "pincode"},
		{"pin", "pincode"},
		{"age_18_greater", "age_18_greater"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeHeader(tc.in), "input %q", tc.in)
	}
}

func mustCol(t *testing.T, tbl *dataset.Table, name string) *dataset.Column {
	t.Helper()
	col, ok := tbl.Col(name)
	require.True(t, ok, "column %q missing", name)
	return col
}

func TestDecodeCSV(t *testing.T) {
	raw := strings.Join([]string{
		"Date,State,Dist,Pin,Age 0 5,age_18_greater",
		"01-01-2025,Delhi,Central Delhi,110001,12,340",
		"08-01-2025,Delhi,Central Delhi,110001,,360",
		"2025-01-15,Maharashtra,Mumbai,400001,9,510",
	}, "\n")

	tbl, err := DecodeCSV(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())
	assert.Equal(t,
		[]string{"date", "state", "district", "pincode", "age_0_5", "age_18_greater"},
		tbl.ColumnNames())

	dates := mustCol(t, tbl, "date")
	assert.Equal(t, dataset.KindTime, dates.Kind)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), dates.Time[0])
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), dates.Time[2])

	young := mustCol(t, tbl, "age_0_5")
	assert.Equal(t, dataset.KindFloat, young.Kind)
	assert.Equal(t, 12.0, young.Float[0])
	assert.True(t, young.IsNull(1), "empty numeric cell should be null")
	assert.Equal(t, 9.0, young.Float[2])

	assert.Equal(t, dataset.KindString, mustCol(t, tbl, "state").Kind)
	assert.Equal(t, "Mumbai", mustCol(t, tbl, "district").Str[2])
}

func TestDecodeCSVRaggedRows(t *testing.T) {
	raw := "date,state,age_18_greater\n01-01-2025,Delhi,100\n08-01-2025,Delhi\n"
	tbl, err := DecodeCSV(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumRows())
	assert.True(t, mustCol(t, tbl, "age_18_greater").IsNull(1), "short row cell should be null")
}

func TestDecodeCSVNumbersWithThousandSeparators(t *testing.T) {
	raw := "date,state,age_18_greater\n01-01-2025,Delhi,\"1,250\"\n"
	tbl, err := DecodeCSV(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1250.0, mustCol(t, tbl, "age_18_greater").Float[0])
}

func TestDecodeCSVUnparseableDateStaysString(t *testing.T) {
	raw := "date,state\nJanuary 1st,Delhi\n"
	tbl, err := DecodeCSV(strings.NewReader(raw))
	require.NoError(t, err)
	col := mustCol(t, tbl, "date")
	assert.Equal(t, dataset.KindString, col.Kind)
	assert.Equal(t, "January 1st", col.Str[0])
}

func TestDecodeCSVDuplicateHeaders(t *testing.T) {
	raw := "date,state,state\n01-01-2025,Delhi,DL\n"
	tbl, err := DecodeCSV(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "state", "state_1"}, tbl.ColumnNames())
}

func TestDecodeCSVEmptyInput(t *testing.T) {
	tbl, err := DecodeCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.NumRows())
	assert.Equal(t, 0, tbl.NumCols())
}

func TestDecodeCSVAllEmptyColumnStaysString(t *testing.T) {
	raw := "date,state,notes\n01-01-2025,Delhi,\n08-01-2025,Delhi,\n"
	tbl, err := DecodeCSV(strings.NewReader(raw))
	require.NoError(t, err)
	col := mustCol(t, tbl, "notes")
	assert.Equal(t, dataset.KindString, col.Kind)
	assert.True(t, col.IsNull(0))
	assert.True(t, col.IsNull(1))
}
