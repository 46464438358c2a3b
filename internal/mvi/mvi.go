// Package mvi computes the Migration Velocity Index: organic update signal
// per thousand residents, classified into zone and confidence tiers.
package mvi

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/signal"
	"fluxmap/internal/stats"
)

// Zone boundaries on the MVI scale and confidence boundaries on population.
// Zone bands are closed on the left, open on the right, except the top band.
const (
	ZoneStableMax   = 5.0
	ZoneModerateMax = 15.0
	ZoneElevatedMax = 30.0

	ConfidenceHighMin   = 100_000.0
	ConfidenceMediumMin = 50_000.0

	// FallbackPopulation stands in when no enrolment data matches anywhere.
	FallbackPopulation = 10_000.0
)

// Record is the full MVI analytics row for one region.
type Record struct {
	Key            domain.GeoKey
	State          string
	District       string
	MVI            float64
	ZoneType       domain.ZoneType
	Confidence     domain.Confidence
	PopulationBase float64
	OrganicSignal  float64
	RawUpdates     float64
	NoiseRatio     float64
}

// ClassifyZone buckets an MVI value into its zone type.
func ClassifyZone(mvi float64) domain.ZoneType {
	switch {
	case mvi < ZoneStableMax:
		return domain.ZoneStable
	case mvi < ZoneModerateMax:
		return domain.ZoneModerateInflow
	case mvi < ZoneElevatedMax:
		return domain.ZoneElevatedInflow
	default:
		return domain.ZoneHighInflow
	}
}

// ClassifyConfidence buckets a population base into a confidence tier. Both
// boundaries are exclusive: exactly 100,000 is medium, exactly 50,000 low.
func ClassifyConfidence(population float64) domain.Confidence {
	switch {
	case population > ConfidenceHighMin:
		return domain.ConfidenceHigh
	case population > ConfidenceMediumMin:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// Engine joins separated signal with enrolment population and scores it.
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

// NewEngine builds an MVI engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute scores every signal region: population joined from the enrolment
// snapshot, unmatched regions filled with the matched median (or the global
// fallback), mvi = organic/population x 1000 with non-finite results clamped
// to 0. A missing enrolment snapshot yields no records at all.
func (e *Engine) Compute(signals []signal.Record, enrolment *dataset.Table) []Record {
	if len(signals) == 0 || enrolment == nil {
		return nil
	}

	popByKey := populationByKey(enrolment)

	var matched []float64
	for _, s := range signals {
		if pop, ok := popByKey[s.Key]; ok {
			matched = append(matched, pop)
		}
	}
	fill := stats.Median(matched)
	if fill == 0 {
		fill = FallbackPopulation
	}

	out := make([]Record, 0, len(signals))
	for _, s := range signals {
		pop, ok := popByKey[s.Key]
		if !ok {
			pop = fill
		}

		value := s.OrganicSignal / pop * 1000
		if math.IsNaN(value) || math.IsInf(value, 0) {
			value = 0
		}

		out = append(out, Record{
			Key:            s.Key,
			State:          s.State,
			District:       s.District,
			MVI:            value,
			ZoneType:       ClassifyZone(value),
			Confidence:     ClassifyConfidence(pop),
			PopulationBase: pop,
			OrganicSignal:  s.OrganicSignal,
			RawUpdates:     s.RawUpdates,
			NoiseRatio:     s.NoiseRatio,
		})
	}

	e.log.Info("mvi computed", "regions", len(out))
	return out
}

// Timeseries builds the per-day update series the trend engines consume:
// demographic updates summed per (date, region), scaled by the region's
// enrolment population (10,000 when unknown).
func (e *Engine) Timeseries(demographic, enrolment *dataset.Table) domain.Timeseries {
	if demographic == nil || demographic.NumRows() == 0 {
		return nil
	}
	dateCol, ok := demographic.Col("date")
	if !ok || dateCol.Kind != dataset.KindTime {
		e.log.Warn("timeseries skipped, no usable date column")
		return nil
	}

	stateCol, _ := demographic.Col("state")
	districtCol, _ := demographic.Col("district")

	var updateCols []*dataset.Column
	for _, col := range demographic.Columns() {
		if col.Name == "pincode" {
			continue
		}
		if col.Kind == dataset.KindFloat || col.Kind == dataset.KindInt {
			updateCols = append(updateCols, col)
		}
	}

	type dayKey struct {
		key  domain.GeoKey
		date int64
	}
	points := map[dayKey]*domain.TimePoint{}
	for i := 0; i < demographic.NumRows(); i++ {
		date, ok := dateCol.TimeAt(i)
		if !ok {
			continue
		}
		state := cellString(stateCol, i)
		district := cellString(districtCol, i)
		if state == "" && district == "" {
			continue
		}
		key := domain.NewGeoKey(state, district)

		dk := dayKey{key: key, date: date.Unix()}
		p, ok := points[dk]
		if !ok {
			p = &domain.TimePoint{Key: key, State: state, District: district, Date: date}
			points[dk] = p
		}
		for _, col := range updateCols {
			if v, ok := col.AsFloat(i); ok {
				p.Updates += v
			}
		}
	}

	popByKey := populationByKey(enrolment)

	series := make(domain.Timeseries, 0, len(points))
	for _, p := range points {
		pop, ok := popByKey[p.Key]
		if !ok {
			pop = FallbackPopulation
		}
		p.DailyMVI = p.Updates / pop * 1000
		if math.IsNaN(p.DailyMVI) || math.IsInf(p.DailyMVI, 0) {
			p.DailyMVI = 0
		}
		series = append(series, *p)
	}
	series.Sort()

	e.log.Info("mvi timeseries built", "points", len(series))
	return series
}

// populationByKey sums every age-band column per region; a snapshot without
// age columns falls back to counting rows per region.
func populationByKey(enrolment *dataset.Table) map[domain.GeoKey]float64 {
	out := map[domain.GeoKey]float64{}
	if enrolment == nil {
		return out
	}

	stateCol, _ := enrolment.Col("state")
	districtCol, _ := enrolment.Col("district")

	var ageCols []*dataset.Column
	for _, col := range enrolment.Columns() {
		if col.Kind != dataset.KindFloat && col.Kind != dataset.KindInt {
			continue
		}
		if strings.Contains(strings.ToLower(col.Name), "age") {
			ageCols = append(ageCols, col)
		}
	}

	for i := 0; i < enrolment.NumRows(); i++ {
		state := cellString(stateCol, i)
		district := cellString(districtCol, i)
		if state == "" && district == "" {
			continue
		}
		key := domain.NewGeoKey(state, district)

		if len(ageCols) == 0 {
			out[key]++
			continue
		}
		for _, col := range ageCols {
			if v, ok := col.AsFloat(i); ok {
				out[key] += v
			}
		}
	}
	return out
}

func cellString(c *dataset.Column, i int) string {
	if c == nil {
		return ""
	}
	s, _ := c.StringAt(i)
	return strings.TrimSpace(s)
}

// Summary aggregates an MVI snapshot for the overview surfaces.
type Summary struct {
	TotalRegions     int                     `json:"total_regions"`
	AvgMVI           float64                 `json:"avg_mvi"`
	MaxMVI           float64                 `json:"max_mvi"`
	MinMVI           float64                 `json:"min_mvi"`
	ZoneDistribution map[domain.ZoneType]int `json:"zone_distribution"`
}

// Summarize reduces MVI records to headline numbers, rounded to 2 decimals.
func Summarize(records []Record) Summary {
	s := Summary{ZoneDistribution: map[domain.ZoneType]int{}}
	if len(records) == 0 {
		return s
	}

	s.TotalRegions = len(records)
	s.MaxMVI = math.Inf(-1)
	s.MinMVI = math.Inf(1)
	sum := 0.0
	for _, r := range records {
		sum += r.MVI
		s.MaxMVI = math.Max(s.MaxMVI, r.MVI)
		s.MinMVI = math.Min(s.MinMVI, r.MVI)
		s.ZoneDistribution[r.ZoneType]++
	}
	s.AvgMVI = round2(sum / float64(len(records)))
	s.MaxMVI = round2(s.MaxMVI)
	s.MinMVI = round2(s.MinMVI)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Table encodes MVI records as the mvi_analytics snapshot.
func Table(records []Record) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	values := make([]float64, n)
	zones := make([]string, n)
	confidences := make([]string, n)
	pops := make([]float64, n)
	organic := make([]float64, n)
	raw := make([]float64, n)
	noise := make([]float64, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		states[i] = r.State
		districts[i] = r.District
		values[i] = r.MVI
		zones[i] = string(r.ZoneType)
		confidences[i] = string(r.Confidence)
		pops[i] = r.PopulationBase
		organic[i] = r.OrganicSignal
		raw[i] = r.RawUpdates
		noise[i] = r.NoiseRatio
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewFloatCol("mvi", values, nil),
		dataset.NewStringCol("zone_type", zones, nil),
		dataset.NewStringCol("confidence", confidences, nil),
		dataset.NewFloatCol("population_base", pops, nil),
		dataset.NewFloatCol("organic_signal", organic, nil),
		dataset.NewFloatCol("raw_updates", raw, nil),
		dataset.NewFloatCol("noise_ratio", noise, nil),
	)
	return t
}

// FromTable decodes an mvi_analytics snapshot back into records.
func FromTable(t *dataset.Table) []Record {
	if t == nil {
		return nil
	}
	col := func(name string) *dataset.Column {
		c, _ := t.Col(name)
		return c
	}
	keyCol, stateCol, districtCol := col("geo_key"), col("state"), col("district")
	mviCol, zoneCol, confCol := col("mvi"), col("zone_type"), col("confidence")
	popCol, organicCol, rawCol, noiseCol := col("population_base"), col("organic_signal"), col("raw_updates"), col("noise_ratio")

	float := func(c *dataset.Column, i int) float64 {
		if c == nil {
			return 0
		}
		v, _ := c.AsFloat(i)
		return v
	}

	out := make([]Record, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, Record{
			Key:            domain.GeoKey(cellString(keyCol, i)),
			State:          cellString(stateCol, i),
			District:       cellString(districtCol, i),
			MVI:            float(mviCol, i),
			ZoneType:       domain.ZoneType(cellString(zoneCol, i)),
			Confidence:     domain.Confidence(cellString(confCol, i)),
			PopulationBase: float(popCol, i),
			OrganicSignal:  float(organicCol, i),
			RawUpdates:     float(rawCol, i),
			NoiseRatio:     float(noiseCol, i),
		})
	}
	return out
}

// TimeseriesTable encodes the timeseries as the mvi_timeseries snapshot.
func TimeseriesTable(ts domain.Timeseries) *dataset.Table {
	n := len(ts)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	dates := make([]time.Time, n)
	updates := make([]float64, n)
	daily := make([]float64, n)
	for i, p := range ts {
		keys[i] = string(p.Key)
		states[i] = p.State
		districts[i] = p.District
		dates[i] = p.Date
		updates[i] = p.Updates
		daily[i] = p.DailyMVI
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewTimeCol("date", dates, nil),
		dataset.NewFloatCol("daily_updates", updates, nil),
		dataset.NewFloatCol("daily_mvi", daily, nil),
	)
	return t
}

// TimeseriesFromTable decodes an mvi_timeseries snapshot.
func TimeseriesFromTable(t *dataset.Table) domain.Timeseries {
	if t == nil {
		return nil
	}
	keyCol, _ := t.Col("geo_key")
	stateCol, _ := t.Col("state")
	districtCol, _ := t.Col("district")
	dateCol, _ := t.Col("date")
	updatesCol, _ := t.Col("daily_updates")
	dailyCol, _ := t.Col("daily_mvi")

	out := make(domain.Timeseries, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		p := domain.TimePoint{
			Key:      domain.GeoKey(cellString(keyCol, i)),
			State:    cellString(stateCol, i),
			District: cellString(districtCol, i),
		}
		if dateCol != nil {
			p.Date, _ = dateCol.TimeAt(i)
		}
		if updatesCol != nil {
			p.Updates, _ = updatesCol.AsFloat(i)
		}
		if dailyCol != nil {
			p.DailyMVI, _ = dailyCol.AsFloat(i)
		}
		out = append(out, p)
	}
	return out
}
