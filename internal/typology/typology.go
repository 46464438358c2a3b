// Package typology classifies each region into a behavioral archetype from
// the slope, variance and acceleration of its update timeseries.
package typology

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/stats"
)

// Classification thresholds. Variance is checked before any slope rule.
const (
	SlopeHigh             = 2.0
	SlopeModerate         = 1.0
	SlopeDecline          = -0.5
	VarianceHigh          = 10.0
	VarianceLow           = 2.0
	AccelerationThreshold = 0.5
)

// Metrics are the regression statistics for one region's series.
type Metrics struct {
	Key          domain.GeoKey
	State        string
	District     string
	Slope        float64
	Variance     float64
	Acceleration float64
}

// Record is one region's typology row: its MVI analytics joined with trend
// metrics and the resulting classification.
type Record struct {
	Key          domain.GeoKey
	State        string
	District     string
	MVI          float64
	ZoneType     domain.ZoneType
	Confidence   domain.Confidence
	Slope        float64
	Variance     float64
	Acceleration float64
	TrendType    domain.TrendType
	Explanation  string
}

// Classify applies the archetype rules in precedence order: volatility
// dominates, then sustained growth, then accelerating growth, then decline,
// then flatness, with moderate growth as the catch-all.
func Classify(slope, variance, acceleration float64) domain.TrendType {
	if variance > VarianceHigh {
		return domain.TrendVolatile
	}
	if slope > SlopeHigh && variance < VarianceLow {
		return domain.TrendPersistentInflow
	}
	if slope > SlopeModerate && acceleration > AccelerationThreshold {
		return domain.TrendEmergingInflow
	}
	if slope < SlopeDecline {
		return domain.TrendReversal
	}
	if math.Abs(slope) < 0.5 && variance < VarianceLow {
		return domain.TrendStable
	}
	if slope > 0.5 {
		return domain.TrendEmergingInflow
	}
	return domain.TrendStable
}

// Explain renders the operator-facing reason for a classification.
func Explain(trend domain.TrendType, slope, variance float64) string {
	switch trend {
	case domain.TrendPersistentInflow:
		return fmt.Sprintf("Steady growth pattern with slope %.2f and low variance %.2f", slope, variance)
	case domain.TrendEmergingInflow:
		return fmt.Sprintf("Accelerating growth detected with slope %.2f", slope)
	case domain.TrendVolatile:
		return fmt.Sprintf("High variance (%.2f) indicates unpredictable patterns", variance)
	case domain.TrendReversal:
		return fmt.Sprintf("Negative trend slope (%.2f) suggests declining activity", slope)
	case domain.TrendStable:
		return fmt.Sprintf("Minimal change with low slope (%.2f) and variance (%.2f)", slope, variance)
	default:
		return "Pattern under analysis"
	}
}

// Engine derives trend metrics and merges them onto the MVI analytics.
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

// NewEngine builds a typology engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeMetrics fits each region's series: OLS slope, population variance,
// and acceleration as the slope difference across a midpoint split (series
// shorter than 4 points report 0 acceleration; shorter than 2 are skipped).
func (e *Engine) ComputeMetrics(ts domain.Timeseries) []Metrics {
	byKey := ts.ByKey()
	keys := ts.Keys()

	out := make([]Metrics, 0, len(keys))
	for _, key := range keys {
		points := byKey[key]
		if len(points) < 2 {
			continue
		}
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.DailyMVI
		}

		acceleration := 0.0
		if len(values) >= 4 {
			mid := len(values) / 2
			acceleration = stats.Slope(values[mid:]) - stats.Slope(values[:mid])
		}

		out = append(out, Metrics{
			Key:          key,
			State:        points[0].State,
			District:     points[0].District,
			Slope:        stats.Slope(values),
			Variance:     stats.Variance(values),
			Acceleration: acceleration,
		})
	}
	return out
}

// Analyze joins trend metrics onto the MVI rows and classifies each region.
// Without any timeseries at all, synthetic metrics are derived from the MVI
// value itself so classification still produces a coarse answer; regions
// merely missing from the series get zero metrics.
func (e *Engine) Analyze(mviRecords []mvi.Record, ts domain.Timeseries) []Record {
	if len(mviRecords) == 0 {
		return nil
	}

	metrics := e.ComputeMetrics(ts)
	byKey := make(map[domain.GeoKey]Metrics, len(metrics))
	for _, m := range metrics {
		byKey[m.Key] = m
	}
	synthetic := len(metrics) == 0
	if synthetic {
		e.log.Warn("no trend metrics available, deriving synthetic metrics from mvi")
	}

	out := make([]Record, 0, len(mviRecords))
	for _, r := range mviRecords {
		var slope, variance, acceleration float64
		if m, ok := byKey[r.Key]; ok {
			slope, variance, acceleration = m.Slope, m.Variance, m.Acceleration
		} else if synthetic {
			slope = r.MVI * 0.1
			variance = r.MVI * 0.5
		}

		trend := Classify(slope, variance, acceleration)
		out = append(out, Record{
			Key:          r.Key,
			State:        r.State,
			District:     r.District,
			MVI:          r.MVI,
			ZoneType:     r.ZoneType,
			Confidence:   r.Confidence,
			Slope:        slope,
			Variance:     variance,
			Acceleration: acceleration,
			TrendType:    trend,
			Explanation:  Explain(trend, slope, variance),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	e.log.Info("trend typology complete", "regions", len(out))
	return out
}

// Distribution counts regions per trend type.
func Distribution(records []Record) map[domain.TrendType]int {
	out := map[domain.TrendType]int{}
	for _, r := range records {
		out[r.TrendType]++
	}
	return out
}
