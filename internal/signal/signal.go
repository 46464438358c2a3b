// Package signal separates genuine migration signal from administrative
// noise. Demographic updates (address changes) carry high weight; biometric
// updates are mostly mandatory renewals and carry low weight.
package signal

import (
	"log/slog"
	"sort"
	"strings"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
)

// Per-band update weights. Adult address changes are the strongest migration
// indicator; child biometric updates are almost entirely mandatory renewals.
const (
	DemographicAdultWeight = 1.0
	DemographicYouthWeight = 0.6
	BiometricAdultWeight   = 0.3
	BiometricMinorWeight   = 0.1
)

// avgAdultWeight reverses the weighting when estimating the implied raw
// update count from an organic signal value.
const avgAdultWeight = (DemographicAdultWeight + BiometricAdultWeight) / 2

// Record is the separated signal for one region.
type Record struct {
	Key           domain.GeoKey
	State         string
	District      string
	OrganicSignal float64
	RawUpdates    float64
	NoiseRatio    float64
}

// Engine computes organic signal per region from the clean update snapshots.
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

// NewEngine builds a signal separation engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Separate weights each update table's age bands, aggregates by region, and
// derives the implied raw update count and noise ratio. Either table may be
// nil or empty; a region appearing in both accumulates from both.
func (e *Engine) Separate(demographic, biometric *dataset.Table) []Record {
	acc := map[domain.GeoKey]*Record{}

	e.accumulate(acc, demographic, domain.KindDemographic)
	e.accumulate(acc, biometric, domain.KindBiometric)

	out := make([]Record, 0, len(acc))
	for _, rec := range acc {
		rec.RawUpdates = rec.OrganicSignal / avgAdultWeight
		div := rec.RawUpdates
		if div == 0 {
			div = 1
		}
		rec.NoiseRatio = 1 - rec.OrganicSignal/div
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	e.log.Info("signal separation complete", "regions", len(out))
	return out
}

// accumulate adds one table's weighted per-row signal into the accumulator.
func (e *Engine) accumulate(acc map[domain.GeoKey]*Record, t *dataset.Table, kind domain.RecordKind) {
	if t == nil || t.NumRows() == 0 {
		return
	}

	weighted, banded := weightedColumns(t, kind)
	if !banded {
		e.log.Warn("age-banded columns missing, using flat adult-weight approximation",
			"kind", kind, "columns", t.ColumnNames())
	}

	stateCol, _ := t.Col("state")
	districtCol, _ := t.Col("district")

	for i := 0; i < t.NumRows(); i++ {
		state := cellString(stateCol, i)
		district := cellString(districtCol, i)
		if state == "" && district == "" {
			continue
		}
		key := domain.NewGeoKey(state, district)

		rec, ok := acc[key]
		if !ok {
			rec = &Record{Key: key, State: state, District: district}
			acc[key] = rec
		}
		for _, wc := range weighted {
			if v, ok := wc.col.AsFloat(i); ok {
				rec.OrganicSignal += v * wc.weight
			}
		}
	}
}

type weightedColumn struct {
	col    *dataset.Column
	weight float64
}

// weightedColumns resolves each column's signal weight for the given kind.
// When no age-banded column exists, every numeric column except identifiers
// gets the kind's adult weight, a stated approximation rather than a failure.
func weightedColumns(t *dataset.Table, kind domain.RecordKind) ([]weightedColumn, bool) {
	var banded []weightedColumn
	for _, col := range t.Columns() {
		if col.Kind != dataset.KindFloat && col.Kind != dataset.KindInt {
			continue
		}
		if w, ok := bandWeight(col.Name, kind); ok {
			banded = append(banded, weightedColumn{col: col, weight: w})
		}
	}
	if len(banded) > 0 {
		return banded, true
	}

	adult := DemographicAdultWeight
	if kind == domain.KindBiometric {
		adult = BiometricAdultWeight
	}
	var flat []weightedColumn
	for _, col := range t.Columns() {
		if col.Kind != dataset.KindFloat && col.Kind != dataset.KindInt {
			continue
		}
		if col.Name == "pincode" {
			continue
		}
		flat = append(flat, weightedColumn{col: col, weight: adult})
	}
	return flat, false
}

// bandWeight maps an age-banded column name to its update weight. Column
// vocabularies differ across export vintages (demo_age_17_ vs
// demo_age_18_greater), so bands match on the age range substring.
func bandWeight(name string, kind domain.RecordKind) (float64, bool) {
	n := strings.ToLower(name)
	if !strings.Contains(n, "age") {
		return 0, false
	}

	var child, youth, adult bool
	switch {
	case strings.Contains(n, "0_5"):
		child = true
	case strings.Contains(n, "5_17"), strings.Contains(n, "5_18"):
		youth = true
	case strings.Contains(n, "18"), strings.Contains(n, "17_"):
		adult = true
	default:
		return 0, false
	}

	switch kind {
	case domain.KindDemographic:
		switch {
		case youth:
			return DemographicYouthWeight, true
		case adult:
			return DemographicAdultWeight, true
		}
		// Child demographic updates carry no migration signal.
		return 0, false
	case domain.KindBiometric:
		switch {
		case child, youth:
			return BiometricMinorWeight, true
		case adult:
			return BiometricAdultWeight, true
		}
	}
	return 0, false
}

func cellString(c *dataset.Column, i int) string {
	if c == nil {
		return ""
	}
	s, _ := c.StringAt(i)
	return strings.TrimSpace(s)
}

// Table encodes signal records as the signal_separated snapshot.
func Table(records []Record) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	organic := make([]float64, n)
	raw := make([]float64, n)
	noise := make([]float64, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		states[i] = r.State
		districts[i] = r.District
		organic[i] = r.OrganicSignal
		raw[i] = r.RawUpdates
		noise[i] = r.NoiseRatio
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewFloatCol("organic_signal", organic, nil),
		dataset.NewFloatCol("raw_updates", raw, nil),
		dataset.NewFloatCol("noise_ratio", noise, nil),
	)
	return t
}

// FromTable decodes a signal_separated snapshot back into records.
func FromTable(t *dataset.Table) []Record {
	if t == nil {
		return nil
	}
	keyCol, _ := t.Col("geo_key")
	stateCol, _ := t.Col("state")
	districtCol, _ := t.Col("district")
	organicCol, _ := t.Col("organic_signal")
	rawCol, _ := t.Col("raw_updates")
	noiseCol, _ := t.Col("noise_ratio")

	out := make([]Record, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		rec := Record{
			Key:      domain.GeoKey(cellString(keyCol, i)),
			State:    cellString(stateCol, i),
			District: cellString(districtCol, i),
		}
		if organicCol != nil {
			rec.OrganicSignal, _ = organicCol.AsFloat(i)
		}
		if rawCol != nil {
			rec.RawUpdates, _ = rawCol.AsFloat(i)
		}
		if noiseCol != nil {
			rec.NoiseRatio, _ = noiseCol.AsFloat(i)
		}
		out = append(out, rec)
	}
	return out
}
