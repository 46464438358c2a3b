package accel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/pkg/testutil"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		acceleration float64
		want         domain.AccelerationStatus
	}{
		{0.6, domain.AccelAccelerating},
		{0.5, domain.AccelStable},
		{0, domain.AccelStable},
		{-0.5, domain.AccelStable},
		{-0.6, domain.AccelDecelerating},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ClassifyStatus(tc.acceleration), "acceleration %v", tc.acceleration)
	}
}

func seriesFor(key domain.GeoKey, values ...float64) domain.Timeseries {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := make(domain.Timeseries, len(values))
	for i, v := range values {
		ts[i] = domain.TimePoint{Key: key, State: "Delhi", District: "Central Delhi",
			Date: start.AddDate(0, 0, i), DailyMVI: v}
	}
	return ts
}

func TestComputeBendingSeries(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	// Ten points split 7/3: flat historical prefix, then +4 per day.
	recs := e.Compute(seriesFor("delhi_central delhi", 1, 1, 1, 1, 1, 1, 1, 5, 9, 13))
	require.Len(t, recs, 1)
	assert.InDelta(t, 0.0, recs[0].HistoricalSlope, 1e-9)
	assert.InDelta(t, 4.0, recs[0].RecentSlope, 1e-9)
	assert.InDelta(t, 4.0, recs[0].Acceleration, 1e-9)
	assert.Equal(t, domain.AccelAccelerating, recs[0].Status)
	assert.Equal(t, "Delhi", recs[0].State)
}

func TestComputeSteadySeriesIsStable(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	recs := e.Compute(seriesFor("delhi_central delhi", 0, 1, 2, 3, 4, 5, 6, 7, 8, 9))
	require.Len(t, recs, 1)
	assert.InDelta(t, 1.0, recs[0].HistoricalSlope, 1e-9)
	assert.InDelta(t, 1.0, recs[0].RecentSlope, 1e-9)
	assert.Equal(t, domain.AccelStable, recs[0].Status)
}

func TestComputePlateauDecelerates(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	// Climb at +4 per day, then hold: recent slope 0 against historical 4.
	recs := e.Compute(seriesFor("delhi_central delhi", 1, 5, 9, 13, 17, 21, 25, 25, 25, 25))
	require.Len(t, recs, 1)
	assert.InDelta(t, 4.0, recs[0].HistoricalSlope, 1e-9)
	assert.InDelta(t, 0.0, recs[0].RecentSlope, 1e-9)
	assert.InDelta(t, -4.0, recs[0].Acceleration, 1e-9)
	assert.Equal(t, domain.AccelDecelerating, recs[0].Status)
}

func TestComputeBoundaryHalfPointIsStable(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	// Recent tail {0,0,1} regresses to slope 0.5, exactly on the band edge.
	recs := e.Compute(seriesFor("delhi_central delhi", 0, 0, 0, 0, 0, 0, 0, 0, 0, 1))
	require.Len(t, recs, 1)
	assert.InDelta(t, 0.5, recs[0].Acceleration, 1e-9)
	assert.Equal(t, domain.AccelStable, recs[0].Status)
}

func TestComputeRoundsToFourDecimals(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	// Twenty points split 14/6. The recent tail {0,0,0,0,0,1} regresses to
	// slope 1/7, which only survives as 0.1429 after rounding.
	values := make([]float64, 20)
	values[19] = 1
	recs := e.Compute(seriesFor("delhi_central delhi", values...))
	require.Len(t, recs, 1)
	assert.Equal(t, 0.1429, recs[0].RecentSlope)
	assert.Equal(t, 0.1429, recs[0].Acceleration)
	assert.Equal(t, 0.0, recs[0].HistoricalSlope)
}

func TestComputeSkipsShortSeries(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	ts := append(seriesFor("goa_north goa", 1, 2, 3),
		seriesFor("delhi_central delhi", 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)...)
	recs := e.Compute(ts)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.GeoKey("delhi_central delhi"), recs[0].Key)
}

func TestComputeEmpty(t *testing.T) {
	assert.Empty(t, NewEngine(WithLogger(testutil.Logger())).Compute(nil))
}

func TestEarlyWarnings(t *testing.T) {
	records := []Record{
		{Key: "delhi_central delhi", State: "Delhi", District: "Central Delhi",
			Acceleration: 2.5, Status: domain.AccelAccelerating},
		{Key: "goa_north goa", State: "Goa", District: "North Goa",
			Acceleration: 1.2, Status: domain.AccelAccelerating},
		{Key: "maharashtra_pune", State: "Maharashtra", District: "Pune",
			Acceleration: 0.9, Status: domain.AccelAccelerating},
		{Key: "maharashtra_mumbai", State: "Maharashtra", District: "Mumbai",
			Acceleration: 0.1, Status: domain.AccelStable},
		{Key: "tamil nadu_chennai", State: "Tamil Nadu", District: "Chennai",
			Acceleration: 3.0, Status: domain.AccelAccelerating},
		{Key: "unknown_nowhere", Status: domain.AccelAccelerating},
	}
	mviRecords := []mvi.Record{
		{Key: "delhi_central delhi", MVI: 42, ZoneType: domain.ZoneHighInflow},
		{Key: "goa_north goa", MVI: 20, ZoneType: domain.ZoneElevatedInflow},
		{Key: "maharashtra_pune", MVI: 25, ZoneType: domain.ZoneElevatedInflow},
		{Key: "maharashtra_mumbai", MVI: 50, ZoneType: domain.ZoneHighInflow},
		{Key: "tamil nadu_chennai", MVI: 8, ZoneType: domain.ZoneModerateInflow},
	}

	warnings := EarlyWarnings(records, mviRecords)
	require.Len(t, warnings, 3, "stable, moderate-zone and unmatched regions drop out")

	assert.Equal(t, domain.GeoKey("delhi_central delhi"), warnings[0].Key)
	assert.Equal(t, domain.SeverityCritical, warnings[0].WarningLevel)
	assert.Equal(t, 42.0, warnings[0].MVI)

	assert.Equal(t, domain.GeoKey("maharashtra_pune"), warnings[1].Key)
	assert.Equal(t, domain.SeverityHigh, warnings[1].WarningLevel)

	assert.Equal(t, domain.GeoKey("goa_north goa"), warnings[2].Key)
	assert.Equal(t, domain.SeverityHigh, warnings[2].WarningLevel)
}

func TestEarlyWarningsEmpty(t *testing.T) {
	assert.Empty(t, EarlyWarnings(nil, nil))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Record{
		{Acceleration: 1.0, Status: domain.AccelAccelerating},
		{Acceleration: 2.0, Status: domain.AccelAccelerating},
		{Acceleration: -1.0, Status: domain.AccelDecelerating},
		{Acceleration: 0.1, Status: domain.AccelStable},
	})
	assert.Equal(t, 2, s.Accelerating)
	assert.Equal(t, 1, s.Decelerating)
	assert.Equal(t, 1, s.Stable)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 0.525, s.AvgAcceleration)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AvgAcceleration)
}

func TestScatterJoinsPressure(t *testing.T) {
	records := []Record{
		{Key: "delhi_central delhi", State: "Delhi", District: "Central Delhi",
			Acceleration: 2.5, Status: domain.AccelAccelerating},
		{Key: "goa_north goa", State: "Goa", District: "North Goa",
			Acceleration: -0.2, Status: domain.AccelStable},
	}
	mviRecords := []mvi.Record{
		{Key: "delhi_central delhi", MVI: 42, ZoneType: domain.ZoneHighInflow},
	}

	points := Scatter(records, mviRecords)
	require.Len(t, points, 2)
	assert.Equal(t, 42.0, points[0].MVI)
	assert.Equal(t, domain.ZoneHighInflow, points[0].ZoneType)
	assert.Zero(t, points[1].MVI, "regions without pressure data keep zeros")
	assert.Empty(t, points[1].ZoneType)
}

func TestTableRoundTrip(t *testing.T) {
	in := []Record{{
		Key: "delhi_central delhi", State: "Delhi", District: "Central Delhi",
		RecentSlope: 4, HistoricalSlope: 0, Acceleration: 4,
		Status: domain.AccelAccelerating,
	}}
	assert.Equal(t, in, FromTable(Table(in)))
}
