// Package accel measures whether each region's migration velocity is itself
// speeding up or slowing down. A region's MVI series is split into a
// historical prefix and a recent tail; the difference between the two trend
// slopes is the acceleration.
package accel

import (
	"log/slog"
	"math"
	"sort"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/stats"
)

const (
	// AccelerationDelta is the band around zero inside which a region's
	// rate of change counts as stable.
	AccelerationDelta = 0.5

	// minPoints is the shortest series the split comparison works on.
	minPoints = 4

	// recentFraction places the historical/recent split at 70% of the
	// series, so the tail 30% is compared against the established trend.
	recentFraction = 0.7
)

// Record is one region's acceleration measurement. Slopes and acceleration
// are rounded to four decimals.
type Record struct {
	Key             domain.GeoKey
	State           string
	District        string
	RecentSlope     float64
	HistoricalSlope float64
	Acceleration    float64
	Status          domain.AccelerationStatus
}

// Warning marks a region that is both under pressure and getting worse.
type Warning struct {
	Key             domain.GeoKey             `json:"geo_key"`
	State           string                    `json:"state"`
	District        string                    `json:"district"`
	MVI             float64                   `json:"mvi"`
	ZoneType        domain.ZoneType           `json:"zone_type"`
	RecentSlope     float64                   `json:"recent_slope"`
	HistoricalSlope float64                   `json:"historical_slope"`
	Acceleration    float64                   `json:"acceleration"`
	Status          domain.AccelerationStatus `json:"acceleration_status"`
	WarningLevel    domain.Severity           `json:"warning_level"`
}

// Summary aggregates acceleration statuses across all regions.
type Summary struct {
	Accelerating    int     `json:"accelerating"`
	Stable          int     `json:"stable"`
	Decelerating    int     `json:"decelerating"`
	Total           int     `json:"total"`
	AvgAcceleration float64 `json:"avg_acceleration"`
}

// ScatterPoint pairs a region's pressure with its rate of change for
// visualization.
type ScatterPoint struct {
	Key          domain.GeoKey             `json:"geo_key"`
	State        string                    `json:"state"`
	District     string                    `json:"district"`
	MVI          float64                   `json:"mvi"`
	Acceleration float64                   `json:"acceleration"`
	Status       domain.AccelerationStatus `json:"acceleration_status"`
	ZoneType     domain.ZoneType           `json:"zone_type"`
}

// ClassifyStatus bands an acceleration value.
func ClassifyStatus(acceleration float64) domain.AccelerationStatus {
	switch {
	case acceleration > AccelerationDelta:
		return domain.AccelAccelerating
	case acceleration < -AccelerationDelta:
		return domain.AccelDecelerating
	default:
		return domain.AccelStable
	}
}

// Engine computes acceleration analytics from MVI time series.
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

// NewEngine builds an acceleration engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute derives one acceleration record per region. Series shorter than
// four points are skipped: a split of anything less cannot carry two slopes.
func (e *Engine) Compute(ts domain.Timeseries) []Record {
	byKey := ts.ByKey()
	keys := ts.Keys()

	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		series := byKey[key]
		if len(series) < minPoints {
			continue
		}

		values := make([]float64, len(series))
		for i, p := range series {
			values[i] = p.DailyMVI
		}

		split := int(float64(len(values)) * recentFraction)
		if split < 2 {
			split = len(values) / 2
		}
		historical := stats.Slope(values[:split])
		recent := stats.Slope(values[split:])
		acceleration := recent - historical

		out = append(out, Record{
			Key:             key,
			State:           series[0].State,
			District:        series[0].District,
			RecentSlope:     round4(recent),
			HistoricalSlope: round4(historical),
			Acceleration:    round4(acceleration),
			Status:          ClassifyStatus(acceleration),
		})
	}

	e.log.Info("acceleration computed", "regions", len(out), "skipped", len(keys)-len(out))
	return out
}

// EarlyWarnings surfaces regions that are accelerating while already in an
// elevated or high inflow zone. High-zone regions are CRITICAL, elevated HIGH;
// results are ordered by MVI descending so the most pressured region leads.
func EarlyWarnings(records []Record, mviRecords []mvi.Record) []Warning {
	pressure := make(map[domain.GeoKey]mvi.Record, len(mviRecords))
	for _, m := range mviRecords {
		pressure[m.Key] = m
	}

	var out []Warning
	for _, r := range records {
		if r.Status != domain.AccelAccelerating {
			continue
		}
		m, ok := pressure[r.Key]
		if !ok {
			continue
		}
		var level domain.Severity
		switch m.ZoneType {
		case domain.ZoneHighInflow:
			level = domain.SeverityCritical
		case domain.ZoneElevatedInflow:
			level = domain.SeverityHigh
		default:
			continue
		}
		out = append(out, Warning{
			Key:             r.Key,
			State:           r.State,
			District:        r.District,
			MVI:             m.MVI,
			ZoneType:        m.ZoneType,
			RecentSlope:     r.RecentSlope,
			HistoricalSlope: r.HistoricalSlope,
			Acceleration:    r.Acceleration,
			Status:          r.Status,
			WarningLevel:    level,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MVI != out[j].MVI {
			return out[i].MVI > out[j].MVI
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Summarize counts records per status and averages their acceleration.
func Summarize(records []Record) Summary {
	s := Summary{}
	var sum float64
	for _, r := range records {
		switch r.Status {
		case domain.AccelAccelerating:
			s.Accelerating++
		case domain.AccelDecelerating:
			s.Decelerating++
		default:
			s.Stable++
		}
		sum += r.Acceleration
	}
	s.Total = len(records)
	if s.Total > 0 {
		s.AvgAcceleration = round4(sum / float64(s.Total))
	}
	return s
}

// Scatter joins acceleration records with MVI pressure for plotting. Regions
// without an MVI record keep zero pressure and an empty zone.
func Scatter(records []Record, mviRecords []mvi.Record) []ScatterPoint {
	pressure := make(map[domain.GeoKey]mvi.Record, len(mviRecords))
	for _, m := range mviRecords {
		pressure[m.Key] = m
	}

	out := make([]ScatterPoint, 0, len(records))
	for _, r := range records {
		p := ScatterPoint{
			Key:          r.Key,
			State:        r.State,
			District:     r.District,
			Acceleration: r.Acceleration,
			Status:       r.Status,
		}
		if m, ok := pressure[r.Key]; ok {
			p.MVI = m.MVI
			p.ZoneType = m.ZoneType
		}
		out = append(out, p)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
