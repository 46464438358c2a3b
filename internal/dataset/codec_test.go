package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
	}

	in, err := New(
		NewStringCol("state", []string{"maharashtra", "kerala", ""}, []bool{true, true, false}),
		NewFloatCol("mvi", []float64{12.25, 0, 31.5}, []bool{true, false, true}),
		NewIntCol("count", []int64{100, -3, 0}, []bool{true, true, false}),
		NewTimeCol("date", []time.Time{day(1), {}, day(3)}, []bool{true, false, true}),
		NewBoolCol("flagged", []bool{true, false, true}, nil),
	)
	require.NoError(t, err)

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)

	require.Equal(t, in.NumRows(), out.NumRows())
	require.Equal(t, in.ColumnNames(), out.ColumnNames())

	state, _ := out.Col("state")
	s, ok := state.StringAt(1)
	assert.True(t, ok)
	assert.Equal(t, "kerala", s)
	assert.True(t, state.IsNull(2))

	mvi, _ := out.Col("mvi")
	v, ok := mvi.FloatAt(2)
	assert.True(t, ok)
	assert.Equal(t, 31.5, v)
	assert.True(t, mvi.IsNull(1))

	count, _ := out.Col("count")
	n, ok := count.IntAt(1)
	assert.True(t, ok)
	assert.Equal(t, int64(-3), n)

	date, _ := out.Col("date")
	d, ok := date.TimeAt(0)
	assert.True(t, ok)
	assert.True(t, d.Equal(day(1)))
	assert.True(t, date.IsNull(1))

	flagged, _ := out.Col("flagged")
	b, ok := flagged.BoolAt(0)
	assert.True(t, ok)
	assert.True(t, b)
}

func TestCodecEmptyTable(t *testing.T) {
	data, err := Encode(Empty())
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
	assert.Equal(t, 0, out.NumCols())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a snapshot"))
	require.Error(t, err)
}
