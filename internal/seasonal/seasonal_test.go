package seasonal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/domain"
	"fluxmap/pkg/testutil"
)

func point(year int, month time.Month, day int, v float64) domain.TimePoint {
	return domain.TimePoint{
		Key: "delhi_central delhi", State: "Delhi", District: "Central Delhi",
		Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), DailyMVI: v,
	}
}

func TestDetect(t *testing.T) {
	ts := domain.Timeseries{
		point(2025, time.January, 1, 10),
		point(2025, time.January, 15, 14),
		point(2025, time.February, 1, 20),
		point(2025, time.February, 15, 20),
		point(2025, time.June, 1, 2),
		point(2025, time.June, 15, 4),
	}

	months := NewEngine(WithLogger(testutil.Logger())).Detect(ts)
	require.Len(t, months, 3)

	jan := months[0]
	assert.Equal(t, 1, jan.Month)
	assert.Equal(t, "Jan", jan.MonthName)
	assert.InDelta(t, 12.0, jan.AvgValue, 1e-9)
	assert.InDelta(t, math.Sqrt(8), jan.StdValue, 1e-9)
	assert.Equal(t, 2, jan.Count)
	// Overall mean is 70/6; 12 against it gives 72/70.
	assert.InDelta(t, 72.0/70.0, jan.SeasonalIndex, 1e-9)

	feb := months[1]
	assert.Equal(t, "Feb", feb.MonthName)
	assert.Zero(t, feb.StdValue)
	assert.InDelta(t, 120.0/70.0, feb.SeasonalIndex, 1e-9)

	jun := months[2]
	assert.Equal(t, "Jun", jun.MonthName)
	assert.InDelta(t, 18.0/70.0, jun.SeasonalIndex, 1e-9)
}

func TestDetectFoldsAcrossYears(t *testing.T) {
	ts := domain.Timeseries{
		point(2025, time.January, 1, 10),
		point(2026, time.January, 1, 30),
		point(2025, time.February, 1, 20),
	}

	months := NewEngine(WithLogger(testutil.Logger())).Detect(ts)
	require.Len(t, months, 2)
	assert.Equal(t, 2, months[0].Count, "both Januaries land on one bucket")
	assert.InDelta(t, 20.0, months[0].AvgValue, 1e-9)
	assert.InDelta(t, 1.0, months[0].SeasonalIndex, 1e-9)
}

func TestDetectZeroMeanSeries(t *testing.T) {
	ts := domain.Timeseries{
		point(2025, time.January, 1, 0),
		point(2025, time.February, 1, 0),
	}

	months := NewEngine(WithLogger(testutil.Logger())).Detect(ts)
	require.Len(t, months, 2)
	assert.Zero(t, months[0].SeasonalIndex, "zero overall mean divides by one")
}

func TestDetectEmpty(t *testing.T) {
	assert.Nil(t, NewEngine(WithLogger(testutil.Logger())).Detect(nil))
}

func TestIndices(t *testing.T) {
	months := []MonthStat{
		{MonthName: "Jan", SeasonalIndex: 72.0 / 70.0},
		{MonthName: "Feb", SeasonalIndex: 120.0 / 70.0},
		{MonthName: "Jun", SeasonalIndex: 18.0 / 70.0},
	}
	assert.Equal(t, map[string]float64{
		"Jan": 1.029, "Feb": 1.714, "Jun": 0.257,
	}, Indices(months))
}

func TestPeaks(t *testing.T) {
	months := []MonthStat{
		{MonthName: "Jan", SeasonalIndex: 72.0 / 70.0},
		{MonthName: "Feb", SeasonalIndex: 120.0 / 70.0},
		{MonthName: "Jun", SeasonalIndex: 18.0 / 70.0},
	}

	info := Peaks(months)
	assert.Equal(t, []string{"Feb"}, info.PeakMonths)
	assert.Equal(t, []string{"Jun"}, info.TroughMonths)
	assert.InDelta(t, 1.457, info.Amplitude, 1e-9)
	assert.InDelta(t, 1.714, info.MaxIndex, 1e-9)
	assert.InDelta(t, 0.257, info.MinIndex, 1e-9)
}

func TestPeaksFlatSeries(t *testing.T) {
	months := []MonthStat{
		{MonthName: "Jan", SeasonalIndex: 1},
		{MonthName: "Feb", SeasonalIndex: 1},
	}

	info := Peaks(months)
	assert.Empty(t, info.PeakMonths)
	assert.Empty(t, info.TroughMonths)
	assert.Zero(t, info.Amplitude)
}

func TestPeaksEmpty(t *testing.T) {
	info := Peaks(nil)
	assert.NotNil(t, info.PeakMonths)
	assert.NotNil(t, info.TroughMonths)
	assert.Zero(t, info.Amplitude)
}

func TestSummarize(t *testing.T) {
	months := []MonthStat{
		{MonthName: "Jan", SeasonalIndex: 72.0 / 70.0},
		{MonthName: "Feb", SeasonalIndex: 120.0 / 70.0},
		{MonthName: "Jun", SeasonalIndex: 18.0 / 70.0},
	}

	s := Summarize(months)
	assert.True(t, s.HasSeasonality)
	assert.Equal(t, []string{"Feb"}, s.PeakMonths)
	assert.InDelta(t, 1.029, s.MonthlyIndices["Jan"], 1e-9)
}

func TestSummarizeFlatSeriesHasNoSeasonality(t *testing.T) {
	s := Summarize([]MonthStat{
		{MonthName: "Jan", SeasonalIndex: 1.05},
		{MonthName: "Feb", SeasonalIndex: 0.95},
	})
	assert.False(t, s.HasSeasonality, "amplitude 0.1 stays under the floor")
	assert.Empty(t, s.PeakMonths)
}
