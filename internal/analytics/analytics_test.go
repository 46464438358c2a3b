package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/pkg/testutil"
)

func newEngine() *Engine { return NewEngine(WithLogger(testutil.Logger())) }

func seriesFor(key domain.GeoKey, state string, start time.Time, values ...float64) domain.Timeseries {
	ts := make(domain.Timeseries, len(values))
	for i, v := range values {
		ts[i] = domain.TimePoint{Key: key, State: state, District: string(key),
			Date: start.AddDate(0, 0, i), DailyMVI: v}
	}
	return ts
}

func TestComparePeriods(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// 6 days: first 3 average 10, last 3 average 20.
	ts := seriesFor("delhi_central", "Delhi", start, 10, 10, 10, 20, 20, 20)

	out := newEngine().ComparePeriods(ts, 3)
	require.Len(t, out.Regions, 1)

	r := out.Regions[0]
	assert.InDelta(t, 20.0, r.Current, 1e-9)
	assert.InDelta(t, 10.0, r.Previous, 1e-9)
	assert.InDelta(t, 10.0, r.Delta, 1e-9)
	assert.InDelta(t, 100.0, r.PctChange, 1e-9)
	assert.Equal(t, "rising", r.Direction)
	assert.Equal(t, "rising", out.National.Direction)
}

func TestComparePeriodsZeroPrevious(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := seriesFor("delhi_central", "Delhi", start, 0, 0, 5, 5)

	out := newEngine().ComparePeriods(ts, 2)
	require.Len(t, out.Regions, 1)
	assert.Zero(t, out.Regions[0].PctChange, "zero previous means no pct change")
	assert.Equal(t, "rising", out.Regions[0].Direction)
}

func TestComparePeriodsEmpty(t *testing.T) {
	out := newEngine().ComparePeriods(nil, 30)
	assert.Empty(t, out.Regions)
	assert.Equal(t, "", out.National.Direction, "empty input computes nothing")
}

func TestForecastRegion(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// Perfect line: value = 10 + 2*index.
	ts := seriesFor("delhi_central", "Delhi", start, 10, 12, 14, 16, 18)

	f, ok := newEngine().ForecastRegion(ts, "delhi_central", 5)
	require.True(t, ok)
	assert.InDelta(t, 2.0, f.Slope, 1e-9)
	assert.InDelta(t, 18.0, f.CurrentMVI, 1e-9)
	assert.InDelta(t, 28.0, f.ProjectedMVI, 1e-9)
	assert.Equal(t, "rising", f.Direction)
	assert.Equal(t, domain.ZoneElevatedInflow, f.ZoneNow)
	assert.Equal(t, domain.ZoneElevatedInflow, f.ZoneProjected)
}

func TestForecastRegionClampsAtZero(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := seriesFor("delhi_central", "Delhi", start, 8, 6, 4, 2)

	f, ok := newEngine().ForecastRegion(ts, "delhi_central", 10)
	require.True(t, ok)
	assert.Zero(t, f.ProjectedMVI, "projection never goes negative")
	assert.Equal(t, "falling", f.Direction)
}

func TestForecastRegionTooShort(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := seriesFor("delhi_central", "Delhi", start, 1, 2, 3)

	_, ok := newEngine().ForecastRegion(ts, "delhi_central", 5)
	assert.False(t, ok)
}

func TestStateCorrelation(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var ts domain.Timeseries
	// Kerala rises with Delhi, Assam falls against it. Same dates throughout.
	ts = append(ts, seriesFor("delhi_central", "Delhi", start, 1, 2, 3, 4)...)
	ts = append(ts, seriesFor("kerala_kochi", "Kerala", start, 2, 4, 6, 8)...)
	ts = append(ts, seriesFor("assam_kamrup", "Assam", start, 8, 6, 4, 2)...)

	pairs := newEngine().StateCorrelation(ts)
	require.Len(t, pairs, 3)

	byPair := map[string]StatePair{}
	for _, p := range pairs {
		byPair[p.StateA+"|"+p.StateB] = p
	}
	assert.InDelta(t, 1.0, byPair["Delhi|Kerala"].Correlation, 1e-9)
	assert.InDelta(t, -1.0, byPair["Assam|Delhi"].Correlation, 1e-9)
	assert.Equal(t, 4, byPair["Delhi|Kerala"].SharedDays)
}

func TestStateCorrelationTooFewSharedDays(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var ts domain.Timeseries
	ts = append(ts, seriesFor("delhi_central", "Delhi", start, 1, 2)...)
	ts = append(ts, seriesFor("kerala_kochi", "Kerala", start, 2, 4)...)

	assert.Empty(t, newEngine().StateCorrelation(ts))
}

func mviRecord(key domain.GeoKey, value, pop, organic, raw float64) mvi.Record {
	state, district := key.Split()
	return mvi.Record{Key: key, State: state, District: district,
		MVI: value, PopulationBase: pop, OrganicSignal: organic, RawUpdates: raw}
}

func TestSeasonalNomads(t *testing.T) {
	records := []mvi.Record{
		mviRecord("delhi_central", 20, 100_000, 2000, 3000),
		mviRecord("kerala_kochi", 40, 50_000, 2000, 3000),
		mviRecord("assam_kamrup", 10, 100_000, 1000, 1500), // below the floor
	}

	out := newEngine().SeasonalNomads(records)
	require.Len(t, out, 2)
	// 100000 x 0.02 x 0.4 = 800; 50000 x 0.04 x 0.4 = 800. Ties break on key.
	assert.InDelta(t, 800.0, out[0].EstimatedCount, 1e-9)
	assert.Equal(t, domain.GeoKey("delhi_central"), out[0].Key)
}

func TestHiddenMigration(t *testing.T) {
	records := []mvi.Record{
		// disparity 0.8: index 80, estimate 100000 x 0.05 x 0.8 = 4000.
		mviRecord("delhi_central", 20, 100_000, 600, 3000),
		// disparity 0.5: under the floor.
		mviRecord("kerala_kochi", 40, 50_000, 1500, 3000),
		// raw 0 contributes nothing.
		mviRecord("assam_kamrup", 10, 100_000, 0, 0),
	}

	out := newEngine().HiddenMigration(records)
	require.Len(t, out, 1)
	assert.Equal(t, domain.GeoKey("delhi_central"), out[0].Key)
	assert.InDelta(t, 80.0, out[0].Index, 1e-9)
	assert.InDelta(t, 4000.0, out[0].EstimatedCount, 1e-9)
}
