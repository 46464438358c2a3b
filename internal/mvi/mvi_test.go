package mvi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/signal"
	"fluxmap/pkg/testutil"
)

func newTable(t *testing.T, cols ...*dataset.Column) *dataset.Table {
	t.Helper()
	tbl, err := dataset.New(cols...)
	require.NoError(t, err)
	return tbl
}

func TestClassifyZoneBoundaries(t *testing.T) {
	tests := []struct {
		mvi  float64
		want domain.ZoneType
	}{
		{0, domain.ZoneStable},
		{4.999, domain.ZoneStable},
		{5.0, domain.ZoneModerateInflow},
		{14.999, domain.ZoneModerateInflow},
		{15.0, domain.ZoneElevatedInflow},
		{29.999, domain.ZoneElevatedInflow},
		{30.0, domain.ZoneHighInflow},
		{250, domain.ZoneHighInflow},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ClassifyZone(tc.mvi), "mvi=%v", tc.mvi)
	}
}

func TestClassifyConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		pop  float64
		want domain.Confidence
	}{
		{100_001, domain.ConfidenceHigh},
		{100_000, domain.ConfidenceMedium},
		{50_001, domain.ConfidenceMedium},
		{50_000, domain.ConfidenceLow},
		{0, domain.ConfidenceLow},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ClassifyConfidence(tc.pop), "pop=%v", tc.pop)
	}
}

func TestComputeHighPressureRegion(t *testing.T) {
	signals := []signal.Record{{
		Key: domain.NewGeoKey("Delhi", "Central Delhi"),
		State: "Delhi", District: "Central Delhi",
		OrganicSignal: 6000, RawUpdates: 6000 / 0.65, NoiseRatio: 0.35,
	}}
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi"}, nil),
		dataset.NewFloatCol("age_18_greater", []float64{200_000}, nil),
	)

	records := NewEngine(WithLogger(testutil.Logger())).Compute(signals, enrolment)
	require.Len(t, records, 1)

	rec := records[0]
	assert.InDelta(t, 30.0, rec.MVI, 1e-9, "(6000/200000)*1000")
	assert.Equal(t, domain.ZoneHighInflow, rec.ZoneType)
	assert.Equal(t, domain.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, 200_000.0, rec.PopulationBase)
}

func TestComputePopulationSumsAllAgeBands(t *testing.T) {
	signals := []signal.Record{{Key: domain.NewGeoKey("Delhi", "Central Delhi"), State: "Delhi", District: "Central Delhi", OrganicSignal: 100}}
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi", "Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi", "Central Delhi"}, nil),
		dataset.NewFloatCol("age_0_5", []float64{100, 200}, nil),
		dataset.NewFloatCol("age_5_17", []float64{300, 400}, nil),
		dataset.NewFloatCol("age_18_greater", []float64{1000, 2000}, nil),
	)

	records := NewEngine(WithLogger(testutil.Logger())).Compute(signals, enrolment)
	require.Len(t, records, 1)
	assert.Equal(t, 4000.0, records[0].PopulationBase)
}

func TestComputeUnmatchedRegionGetsMedianPopulation(t *testing.T) {
	signals := []signal.Record{
		{Key: domain.NewGeoKey("Delhi", "Central Delhi"), State: "Delhi", District: "Central Delhi", OrganicSignal: 100},
		{Key: domain.NewGeoKey("Goa", "North Goa"), State: "Goa", District: "North Goa", OrganicSignal: 100},
	}
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi"}, nil),
		dataset.NewFloatCol("age_18_greater", []float64{40_000}, nil),
	)

	records := NewEngine(WithLogger(testutil.Logger())).Compute(signals, enrolment)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, 40_000.0, rec.PopulationBase)
	}
}

func TestComputeGlobalFallbackPopulation(t *testing.T) {
	signals := []signal.Record{{Key: domain.NewGeoKey("Goa", "North Goa"), State: "Goa", District: "North Goa", OrganicSignal: 50}}
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Kerala"}, nil),
		dataset.NewStringCol("district", []string{"Kochi"}, nil),
		dataset.NewFloatCol("age_18_greater", []float64{5000}, nil),
	)

	records := NewEngine(WithLogger(testutil.Logger())).Compute(signals, enrolment)
	require.Len(t, records, 1)
	assert.Equal(t, FallbackPopulation, records[0].PopulationBase)
	assert.InDelta(t, 5.0, records[0].MVI, 1e-9)
	assert.Equal(t, domain.ZoneModerateInflow, records[0].ZoneType)
}

func TestComputeClampsNonFiniteMVI(t *testing.T) {
	signals := []signal.Record{{Key: domain.NewGeoKey("Delhi", "Central Delhi"), State: "Delhi", District: "Central Delhi", OrganicSignal: 100}}
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi"}, nil),
		dataset.NewFloatCol("age_18_greater", []float64{0}, nil),
	)

	records := NewEngine(WithLogger(testutil.Logger())).Compute(signals, enrolment)
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].MVI, "division by zero clamps to 0")
	assert.Equal(t, domain.ZoneStable, records[0].ZoneType)
}

func TestComputeRowCountFallbackWithoutAgeColumns(t *testing.T) {
	signals := []signal.Record{{Key: domain.NewGeoKey("Delhi", "Central Delhi"), State: "Delhi", District: "Central Delhi", OrganicSignal: 1}}
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi", "Delhi", "Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi", "Central Delhi", "Central Delhi"}, nil),
		dataset.NewFloatCol("total", []float64{1, 1, 1}, nil),
	)

	records := NewEngine(WithLogger(testutil.Logger())).Compute(signals, enrolment)
	require.Len(t, records, 1)
	assert.Equal(t, 3.0, records[0].PopulationBase)
}

func TestComputeMissingEnrolmentYieldsNothing(t *testing.T) {
	signals := []signal.Record{{Key: "delhi_central delhi", OrganicSignal: 100}}
	assert.Nil(t, NewEngine(WithLogger(testutil.Logger())).Compute(signals, nil))
	assert.Nil(t, NewEngine(WithLogger(testutil.Logger())).Compute(nil, nil))
}

func TestTimeseries(t *testing.T) {
	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	demo := newTable(t,
		dataset.NewTimeCol("date", []time.Time{d2, d1, d1}, nil),
		dataset.NewStringCol("state", []string{"Delhi", "Delhi", "Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi", "Central Delhi", "Central Delhi"}, nil),
		dataset.NewFloatCol("pincode", []float64{110001, 110001, 110001}, nil),
		dataset.NewFloatCol("demo_age_18_greater", []float64{30, 10, 5}, nil),
	)
	enrolment := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi"}, nil),
		dataset.NewFloatCol("age_18_greater", []float64{1000}, nil),
	)

	series := NewEngine(WithLogger(testutil.Logger())).Timeseries(demo, enrolment)
	require.Len(t, series, 2, "same-day rows aggregate")

	assert.Equal(t, d1, series[0].Date, "sorted date ascending")
	assert.Equal(t, 15.0, series[0].Updates, "pincode excluded from the sum")
	assert.InDelta(t, 15.0, series[0].DailyMVI, 1e-9, "15/1000*1000")
	assert.Equal(t, d2, series[1].Date)
	assert.Equal(t, 30.0, series[1].Updates)
}

func TestTimeseriesUnknownRegionPopulation(t *testing.T) {
	d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	demo := newTable(t,
		dataset.NewTimeCol("date", []time.Time{d}, nil),
		dataset.NewStringCol("state", []string{"Goa"}, nil),
		dataset.NewStringCol("district", []string{"North Goa"}, nil),
		dataset.NewFloatCol("demo_age_18_greater", []float64{100}, nil),
	)

	series := NewEngine(WithLogger(testutil.Logger())).Timeseries(demo, nil)
	require.Len(t, series, 1)
	assert.InDelta(t, 10.0, series[0].DailyMVI, 1e-9, "100/10000*1000")
}

func TestTimeseriesRequiresDateColumn(t *testing.T) {
	demo := newTable(t,
		dataset.NewStringCol("state", []string{"Delhi"}, nil),
		dataset.NewStringCol("district", []string{"Central Delhi"}, nil),
		dataset.NewFloatCol("demo_age_18_greater", []float64{100}, nil),
	)
	assert.Nil(t, NewEngine(WithLogger(testutil.Logger())).Timeseries(demo, nil))
	assert.Nil(t, NewEngine(WithLogger(testutil.Logger())).Timeseries(nil, nil))
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{MVI: 2, ZoneType: domain.ZoneStable},
		{MVI: 10.456, ZoneType: domain.ZoneModerateInflow},
		{MVI: 31, ZoneType: domain.ZoneHighInflow},
	}

	s := Summarize(records)
	assert.Equal(t, 3, s.TotalRegions)
	assert.Equal(t, 14.49, s.AvgMVI)
	assert.Equal(t, 31.0, s.MaxMVI)
	assert.Equal(t, 2.0, s.MinMVI)
	assert.Equal(t, 1, s.ZoneDistribution[domain.ZoneHighInflow])
	assert.Equal(t, 1, s.ZoneDistribution[domain.ZoneStable])
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalRegions)
	assert.Zero(t, s.AvgMVI)
	assert.Empty(t, s.ZoneDistribution)
}

func TestTableRoundTrip(t *testing.T) {
	in := []Record{{
		Key: "delhi_central delhi", State: "Delhi", District: "Central Delhi",
		MVI: 30, ZoneType: domain.ZoneHighInflow, Confidence: domain.ConfidenceHigh,
		PopulationBase: 200_000, OrganicSignal: 6000, RawUpdates: 9230.76, NoiseRatio: 0.35,
	}}
	assert.Equal(t, in, FromTable(Table(in)))
}

func TestTimeseriesTableRoundTrip(t *testing.T) {
	in := domain.Timeseries{{
		Key: "delhi_central delhi", State: "Delhi", District: "Central Delhi",
		Date:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Updates: 15, DailyMVI: 15,
	}}
	assert.Equal(t, in, TimeseriesFromTable(TimeseriesTable(in)))
}
