package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/typology"
	"fluxmap/pkg/testutil"
)

func TestForZone(t *testing.T) {
	t.Run("high inflow overrides any trend", func(t *testing.T) {
		for _, trend := range []domain.TrendType{
			domain.TrendStable, domain.TrendVolatile, domain.TrendPersistentInflow, "",
		} {
			p := ForZone(domain.ZoneHighInflow, trend)
			assert.Equal(t, domain.PriorityCritical, p.Priority, "trend %q", trend)
			assert.Equal(t, "emergency", p.ActionType)
		}
	})

	t.Run("known trends map directly", func(t *testing.T) {
		cases := []struct {
			trend    domain.TrendType
			priority domain.Priority
			action   string
		}{
			{domain.TrendPersistentInflow, domain.PriorityHigh, "infrastructure"},
			{domain.TrendEmergingInflow, domain.PriorityHigh, "social_program"},
			{domain.TrendVolatile, domain.PriorityMedium, "governance"},
			{domain.TrendReversal, domain.PriorityMedium, "transport"},
			{domain.TrendStable, domain.PriorityLow, "maintenance"},
		}
		for _, tc := range cases {
			p := ForZone(domain.ZoneStable, tc.trend)
			assert.Equal(t, tc.priority, p.Priority, "trend %s", tc.trend)
			assert.Equal(t, tc.action, p.ActionType, "trend %s", tc.trend)
		}
	})

	t.Run("zone defaults when trend is unknown", func(t *testing.T) {
		assert.Equal(t, "maintenance", ForZone(domain.ZoneStable, "").ActionType)
		assert.Equal(t, "social_program", ForZone(domain.ZoneModerateInflow, "").ActionType)
		assert.Equal(t, "infrastructure", ForZone(domain.ZoneElevatedInflow, "").ActionType)
	})
}

func trendRecord(key domain.GeoKey, state, district string, m float64, zone domain.ZoneType, trend domain.TrendType) typology.Record {
	return typology.Record{
		Key: key, State: state, District: district,
		MVI: m, ZoneType: zone, TrendType: trend,
	}
}

func TestRecommendOrdering(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))

	records := []typology.Record{
		trendRecord("a_low", "A", "Low", 1.2, domain.ZoneStable, domain.TrendStable),
		trendRecord("b_high2", "B", "HighTwo", 33.0, domain.ZoneHighInflow, domain.TrendVolatile),
		trendRecord("c_med", "C", "Med", 9.9, domain.ZoneModerateInflow, domain.TrendVolatile),
		trendRecord("d_high1", "D", "HighOne", 41.5, domain.ZoneHighInflow, domain.TrendStable),
		trendRecord("e_inflow", "E", "Inflow", 22.0, domain.ZoneElevatedInflow, domain.TrendPersistentInflow),
	}

	out := e.Recommend(records)
	require.Len(t, out, 5)

	var keys []domain.GeoKey
	for _, r := range out {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []domain.GeoKey{
		"d_high1", "b_high2", "e_inflow", "c_med", "a_low",
	}, keys, "critical first, MVI descending within a tier")

	assert.Equal(t, domain.PriorityCritical, out[0].Priority)
	assert.Equal(t, "Initiate Emergency Planning Cell", out[0].PrimaryAction)
}

func TestTop(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	out := e.Recommend([]typology.Record{
		trendRecord("a_a", "A", "A", 5, domain.ZoneStable, domain.TrendStable),
		trendRecord("b_b", "B", "B", 6, domain.ZoneStable, domain.TrendStable),
	})

	assert.Len(t, Top(out, 1), 1)
	assert.Len(t, Top(out, 10), 2)
	assert.Empty(t, Top(out, 0))
	assert.Empty(t, Top(out, -3))
}

func TestSummarize(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	out := e.Recommend([]typology.Record{
		trendRecord("a_a", "A", "A", 40, domain.ZoneHighInflow, domain.TrendStable),
		trendRecord("b_b", "B", "B", 6, domain.ZoneModerateInflow, domain.TrendVolatile),
		trendRecord("c_c", "C", "C", 3, domain.ZoneStable, domain.TrendStable),
	})

	s := Summarize(out)
	assert.Equal(t, 3, s.TotalRecommendations)
	assert.Equal(t, 1, s.ByPriority[domain.PriorityCritical])
	assert.Equal(t, 1, s.ByPriority[domain.PriorityMedium])
	assert.Equal(t, 1, s.ByPriority[domain.PriorityLow])
	assert.Equal(t, 1, s.ByActionType["emergency"])
	assert.Equal(t, 1, s.ByActionType["governance"])
	assert.Equal(t, 1, s.ByActionType["maintenance"])
}

func simRecords() []mvi.Record {
	return []mvi.Record{
		{Key: "kerala_ernakulam", State: "Kerala", District: "Ernakulam", MVI: 20},
		{Key: "goa_panaji", State: "Goa", District: "Panaji", MVI: 4},
	}
}

func TestSimulate(t *testing.T) {
	t.Run("employment beats infrastructure per crore", func(t *testing.T) {
		emp, err := Simulate(simRecords(), "kerala_ernakulam", 100, "Employment")
		require.NoError(t, err)
		infra, err := Simulate(simRecords(), "kerala_ernakulam", 100, "Infrastructure")
		require.NoError(t, err)

		assert.Less(t, emp.ProjectedMVI, infra.ProjectedMVI)
		assert.Greater(t, emp.ReductionPercentage, infra.ReductionPercentage)
		assert.Equal(t, "Ernakulam", emp.District)
		assert.InDelta(t, 20.0, emp.CurrentMVI, 1e-9)
	})

	t.Run("reduction caps at sixty percent", func(t *testing.T) {
		out, err := Simulate(simRecords(), "kerala_ernakulam", 1e9, "Employment")
		require.NoError(t, err)
		assert.InDelta(t, 60.0, out.ReductionPercentage, 1e-9)
		assert.InDelta(t, 8.0, out.ProjectedMVI, 1e-9)
		assert.Equal(t, "High", out.ImpactLevel)
	})

	t.Run("zero investment changes nothing", func(t *testing.T) {
		out, err := Simulate(simRecords(), "goa_panaji", 0, "Housing")
		require.NoError(t, err)
		assert.InDelta(t, 4.0, out.ProjectedMVI, 1e-9)
		assert.Equal(t, "Low", out.ImpactLevel)
	})

	t.Run("unknown policy type falls back to infrastructure", func(t *testing.T) {
		unknown, err := Simulate(simRecords(), "kerala_ernakulam", 50, "Astrology")
		require.NoError(t, err)
		infra, err := Simulate(simRecords(), "kerala_ernakulam", 50, "Infrastructure")
		require.NoError(t, err)
		assert.Equal(t, infra.ProjectedMVI, unknown.ProjectedMVI)
	})

	t.Run("negative investment rejected", func(t *testing.T) {
		_, err := Simulate(simRecords(), "kerala_ernakulam", -1, "Employment")
		assert.ErrorIs(t, err, ErrInvalidInvestment)
	})

	t.Run("unknown region rejected", func(t *testing.T) {
		_, err := Simulate(simRecords(), "nowhere_at-all", 10, "Employment")
		assert.ErrorIs(t, err, ErrRegionNotFound)
	})
}

func TestTableRoundTrip(t *testing.T) {
	e := NewEngine(WithLogger(testutil.Logger()))
	out := e.Recommend([]typology.Record{
		trendRecord("a_a", "Alpha", "Aville", 40.25, domain.ZoneHighInflow, domain.TrendStable),
		trendRecord("b_b", "Beta", "Bville", 6.5, domain.ZoneModerateInflow, domain.TrendVolatile),
	})

	got := FromTable(Table(out))
	assert.Equal(t, out, got)
}
