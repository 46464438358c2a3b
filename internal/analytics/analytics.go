// Package analytics holds the secondary analyses layered over the MVI
// outputs: period-over-period comparison, short-horizon forecasting, state
// correlation, and the two derived migration estimates. Everything here
// reads persisted pipeline outputs and degrades to empty results on missing
// input.
package analytics

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/stats"
)

const (
	// nomadMVIFloor is the pressure above which a region contributes to the
	// seasonal-nomad estimate.
	nomadMVIFloor = 15.0
	// nomadFraction of the MVI-implied flow is assumed to be seasonal.
	nomadFraction = 0.4

	// hiddenDisparityFloor flags regions whose raw update volume dwarfs the
	// organic signal, suggesting undocumented movement.
	hiddenDisparityFloor = 0.7
	hiddenPopFraction    = 0.05

	// topEstimates caps both estimate lists.
	topEstimates = 50

	// forecastMinPoints is the shortest series worth projecting.
	forecastMinPoints = 4

	// correlationMinShared is the minimum overlapping dates for a state pair.
	correlationMinShared = 3
)

// Comparison is one region's trailing-window delta.
type Comparison struct {
	Key       domain.GeoKey `json:"geo_key"`
	State     string        `json:"state"`
	District  string        `json:"district"`
	Current   float64       `json:"current_avg_mvi"`
	Previous  float64       `json:"previous_avg_mvi"`
	Delta     float64       `json:"delta"`
	PctChange float64       `json:"pct_change"`
	Direction string        `json:"direction"`
}

// PeriodComparison is the national roll-up plus the per-region deltas.
type PeriodComparison struct {
	WindowDays int          `json:"window_days"`
	National   Comparison   `json:"national"`
	Regions    []Comparison `json:"regions"`
}

// Forecast projects one region's daily MVI forward.
type Forecast struct {
	Key           domain.GeoKey   `json:"geo_key"`
	HorizonDays   int             `json:"horizon_days"`
	CurrentMVI    float64         `json:"current_mvi"`
	ProjectedMVI  float64         `json:"projected_mvi"`
	Slope         float64         `json:"slope"`
	Direction     string          `json:"direction"`
	ZoneNow       domain.ZoneType `json:"zone_now"`
	ZoneProjected domain.ZoneType `json:"zone_projected"`
}

// StatePair is one cell of the correlation matrix.
type StatePair struct {
	StateA      string  `json:"state_a"`
	StateB      string  `json:"state_b"`
	Correlation float64 `json:"correlation"`
	SharedDays  int     `json:"shared_days"`
}

// Estimate is one region's derived migration figure.
type Estimate struct {
	Key            domain.GeoKey `json:"geo_key"`
	State          string        `json:"state"`
	District       string        `json:"district"`
	MVI            float64       `json:"mvi"`
	Index          float64       `json:"index,omitempty"`
	EstimatedCount float64       `json:"estimated_count"`
}

// Engine runs the supplementary analyses.
type Engine struct {
	log *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine builds an analytics engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComparePeriods averages each region's daily MVI over the trailing window
// against the window before it, anchored at the newest date in the series.
// Regions missing from either window read as 0 for that side.
func (e *Engine) ComparePeriods(ts domain.Timeseries, days int) PeriodComparison {
	out := PeriodComparison{WindowDays: days}
	if len(ts) == 0 || days < 1 {
		return out
	}

	var anchor time.Time
	for _, p := range ts {
		if p.Date.After(anchor) {
			anchor = p.Date
		}
	}
	currentFrom := anchor.AddDate(0, 0, -days)
	previousFrom := anchor.AddDate(0, 0, -2*days)

	type window struct {
		state, district string
		current, prev   []float64
	}
	byKey := map[domain.GeoKey]*window{}
	for _, p := range ts {
		w, ok := byKey[p.Key]
		if !ok {
			w = &window{state: p.State, district: p.District}
			byKey[p.Key] = w
		}
		switch {
		case p.Date.After(currentFrom):
			w.current = append(w.current, p.DailyMVI)
		case p.Date.After(previousFrom):
			w.prev = append(w.prev, p.DailyMVI)
		}
	}

	var natCurrent, natPrev []float64
	for key, w := range byKey {
		c := compare(stats.Mean(w.current), stats.Mean(w.prev))
		c.Key = key
		c.State = w.state
		c.District = w.district
		out.Regions = append(out.Regions, c)
		natCurrent = append(natCurrent, c.Current)
		natPrev = append(natPrev, c.Previous)
	}
	sort.Slice(out.Regions, func(i, j int) bool {
		if out.Regions[i].Delta != out.Regions[j].Delta {
			return out.Regions[i].Delta > out.Regions[j].Delta
		}
		return out.Regions[i].Key < out.Regions[j].Key
	})

	out.National = compare(stats.Mean(natCurrent), stats.Mean(natPrev))
	e.log.Info("period comparison computed", "regions", len(out.Regions), "window_days", days)
	return out
}

func compare(current, previous float64) Comparison {
	c := Comparison{
		Current:  round2(current),
		Previous: round2(previous),
		Delta:    round2(current - previous),
	}
	if previous != 0 {
		c.PctChange = round2((current - previous) / previous * 100)
	}
	switch {
	case c.Delta > 0:
		c.Direction = "rising"
	case c.Delta < 0:
		c.Direction = "falling"
	default:
		c.Direction = "flat"
	}
	return c
}

// ForecastRegion projects a region's daily MVI horizon days past the end of
// its series. Projections are clamped at zero; series shorter than four
// points return ok=false.
func (e *Engine) ForecastRegion(ts domain.Timeseries, key domain.GeoKey, horizon int) (Forecast, bool) {
	var values []float64
	for _, p := range ts {
		if p.Key == key {
			values = append(values, p.DailyMVI)
		}
	}
	if len(values) < forecastMinPoints || horizon < 1 {
		return Forecast{}, false
	}

	slope, intercept := stats.Line(values)
	projected := intercept + slope*float64(len(values)-1+horizon)
	if projected < 0 || math.IsNaN(projected) || math.IsInf(projected, 0) {
		projected = 0
	}
	current := values[len(values)-1]

	f := Forecast{
		Key:           key,
		HorizonDays:   horizon,
		CurrentMVI:    round2(current),
		ProjectedMVI:  round2(projected),
		Slope:         round4(slope),
		ZoneNow:       mvi.ClassifyZone(current),
		ZoneProjected: mvi.ClassifyZone(projected),
	}
	switch {
	case slope > 0:
		f.Direction = "rising"
	case slope < 0:
		f.Direction = "falling"
	default:
		f.Direction = "flat"
	}
	return f, true
}

// StateCorrelation computes pairwise Pearson correlation between state-level
// daily aggregates. Pairs with fewer than three shared dates, or with a flat
// series on either side, are omitted.
func (e *Engine) StateCorrelation(ts domain.Timeseries) []StatePair {
	byState := map[string]map[int64]float64{}
	for _, p := range ts {
		if p.State == "" {
			continue
		}
		m, ok := byState[p.State]
		if !ok {
			m = map[int64]float64{}
			byState[p.State] = m
		}
		m[p.Date.Unix()] += p.DailyMVI
	}

	states := make([]string, 0, len(byState))
	for s := range byState {
		states = append(states, s)
	}
	sort.Strings(states)

	var out []StatePair
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			a, b := byState[states[i]], byState[states[j]]
			var shared []int64
			for d := range a {
				if _, ok := b[d]; ok {
					shared = append(shared, d)
				}
			}
			if len(shared) < correlationMinShared {
				continue
			}
			sort.Slice(shared, func(x, y int) bool { return shared[x] < shared[y] })
			xs := make([]float64, len(shared))
			ys := make([]float64, len(shared))
			for k, d := range shared {
				xs[k], ys[k] = a[d], b[d]
			}
			r, ok := stats.Pearson(xs, ys)
			if !ok {
				continue
			}
			out = append(out, StatePair{
				StateA:      states[i],
				StateB:      states[j],
				Correlation: round3(r),
				SharedDays:  len(shared),
			})
		}
	}
	e.log.Info("state correlation computed", "pairs", len(out))
	return out
}

// SeasonalNomads estimates the seasonally mobile population per pressured
// region: population x implied flow rate x the assumed seasonal fraction.
func (e *Engine) SeasonalNomads(records []mvi.Record) []Estimate {
	var out []Estimate
	for _, r := range records {
		if r.MVI <= nomadMVIFloor {
			continue
		}
		out = append(out, Estimate{
			Key:            r.Key,
			State:          r.State,
			District:       r.District,
			MVI:            round2(r.MVI),
			EstimatedCount: math.Round(r.PopulationBase * (r.MVI / 1000) * nomadFraction),
		})
	}
	sortEstimates(out)
	if len(out) > topEstimates {
		out = out[:topEstimates]
	}
	return out
}

// HiddenMigration flags regions where raw update volume far exceeds the
// organic signal. The disparity scales both the index and the headcount
// estimate; raw counts of zero contribute nothing.
func (e *Engine) HiddenMigration(records []mvi.Record) []Estimate {
	var out []Estimate
	for _, r := range records {
		if r.RawUpdates == 0 {
			continue
		}
		disparity := (r.RawUpdates - r.OrganicSignal) / r.RawUpdates
		if disparity <= hiddenDisparityFloor {
			continue
		}
		out = append(out, Estimate{
			Key:            r.Key,
			State:          r.State,
			District:       r.District,
			MVI:            round2(r.MVI),
			Index:          round2(disparity * 100),
			EstimatedCount: math.Round(r.PopulationBase * hiddenPopFraction * disparity),
		})
	}
	sortEstimates(out)
	if len(out) > topEstimates {
		out = out[:topEstimates]
	}
	return out
}

func sortEstimates(out []Estimate) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].EstimatedCount != out[j].EstimatedCount {
			return out[i].EstimatedCount > out[j].EstimatedCount
		}
		return out[i].Key < out[j].Key
	})
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
