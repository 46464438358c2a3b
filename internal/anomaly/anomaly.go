// Package anomaly flags statistical deviations on the update timeseries
// using rolling z-scores, and rolls flagged rows up into operator alerts.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"fluxmap/internal/domain"
	"fluxmap/internal/stats"
)

// Z-score severity boundaries and flagging threshold.
const (
	ZCritical = 4.0
	ZHigh     = 3.0
	ZMedium   = 2.0
	ZLow      = 1.5

	// DefaultWindow is the configured rolling window. Detection caps the
	// effective window at maxWindow days for responsiveness; the cap is a
	// deliberate fixed choice, kept and asserted in tests.
	DefaultWindow = 30
	maxWindow     = 7

	// Runs strictly longer than structuralRun consecutive flagged days are
	// structural shifts rather than isolated events.
	structuralRun = 3

	// Alerts name at most this many example regions per group.
	alertRegionCap = 10
)

// Record is one scored region-day.
type Record struct {
	Key         domain.GeoKey
	State       string
	District    string
	Date        time.Time
	Value       float64
	RollingMean float64
	RollingStd  float64
	ZScore      float64
	IsAnomaly   bool
	Type        domain.AnomalyType
	Severity    domain.Severity
}

// Alert is one grouped finding over the anomaly rows.
type Alert struct {
	Type            domain.AnomalyType `json:"type"`
	Severity        domain.Severity    `json:"severity"`
	AffectedRegions []domain.GeoKey    `json:"affected_regions"`
	Count           int                `json:"count"`
	MaxZScore       float64            `json:"max_z_score"`
	MinZScore       float64            `json:"min_z_score"`
	Message         string             `json:"message"`
	Recommendation  string             `json:"recommendation"`
}

// ClassifySeverity buckets an absolute z-score.
func ClassifySeverity(z float64) domain.Severity {
	abs := math.Abs(z)
	switch {
	case abs >= ZCritical:
		return domain.SeverityCritical
	case abs >= ZHigh:
		return domain.SeverityHigh
	case abs >= ZMedium:
		return domain.SeverityMedium
	case abs >= ZLow:
		return domain.SeverityLow
	default:
		return domain.SeverityNormal
	}
}

// Engine scores timeseries points against their rolling baseline.
type Engine struct {
	window int
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWindow sets the configured rolling window in days.
func WithWindow(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.window = days
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine builds an anomaly engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{window: DefaultWindow, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect computes rolling statistics per region over the capped window
// (minimum one period) and flags |z| >= 1.5. The z denominator is the
// rolling standard deviation floored at 1, so an all-but-constant series
// reports the raw deviation instead of exploding.
func (e *Engine) Detect(ts domain.Timeseries) []Record {
	if len(ts) == 0 {
		return nil
	}

	window := e.window
	if window > maxWindow {
		window = maxWindow
	}

	byKey := ts.ByKey()
	keys := ts.Keys()

	var out []Record
	for _, key := range keys {
		points := byKey[key]
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.DailyMVI
		}

		records := make([]Record, len(points))
		for i, p := range points {
			start := i - window + 1
			if start < 0 {
				start = 0
			}
			frame := values[start : i+1]

			mean := stats.Mean(frame)
			std := math.Sqrt(stats.SampleVariance(frame))
			z := (p.DailyMVI - mean) / math.Max(std, 1)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				z = 0
			}

			records[i] = Record{
				Key:         key,
				State:       p.State,
				District:    p.District,
				Date:        p.Date,
				Value:       p.DailyMVI,
				RollingMean: mean,
				RollingStd:  std,
				ZScore:      z,
				IsAnomaly:   math.Abs(z) >= ZLow,
				Severity:    ClassifySeverity(z),
			}
		}

		classifyTypes(records)
		out = append(out, records...)
	}

	flagged := 0
	for _, r := range out {
		if r.IsAnomaly {
			flagged++
		}
	}
	e.log.Info("anomaly detection complete", "rows", len(out), "flagged", flagged)
	return out
}

// classifyTypes assigns anomaly types over one region's date-ordered rows.
// Every row inside a flagged run longer than structuralRun days is
// STRUCTURAL; the rest classify by z-score direction.
func classifyTypes(records []Record) {
	i := 0
	for i < len(records) {
		if !records[i].IsAnomaly {
			records[i].Type = typeForZ(records[i].ZScore)
			i++
			continue
		}

		end := i
		for end < len(records) && records[end].IsAnomaly {
			end++
		}
		structural := end-i > structuralRun
		for j := i; j < end; j++ {
			if structural {
				records[j].Type = domain.AnomalyStructural
			} else {
				records[j].Type = typeForZ(records[j].ZScore)
			}
		}
		i = end
	}
}

func typeForZ(z float64) domain.AnomalyType {
	switch {
	case z > ZHigh:
		return domain.AnomalySpike
	case z < -ZHigh:
		return domain.AnomalyDrop
	default:
		return domain.AnomalyTransient
	}
}

// alertTexts maps anomaly types to operator-facing copy.
func alertTexts(t domain.AnomalyType, regions int) (message, recommendation string) {
	switch t {
	case domain.AnomalySpike:
		return fmt.Sprintf("Sudden increase in migration activity detected in %d region(s)", regions),
			"Investigate cause of sudden influx; prepare additional resources"
	case domain.AnomalyDrop:
		return fmt.Sprintf("Sudden decrease in migration activity detected in %d region(s)", regions),
			"Investigate potential data quality issues or external factors"
	case domain.AnomalyStructural:
		return fmt.Sprintf("Sustained deviation from baseline in %d region(s)", regions),
			"Long-term planning required; structural change detected"
	default:
		return fmt.Sprintf("Transient anomaly detected in %d region(s)", regions),
			"Monitor for recurrence; may be isolated event"
	}
}

// GenerateAlerts groups flagged rows by (severity, type) into alerts sorted
// severity-first, each naming up to ten distinct affected regions.
func GenerateAlerts(records []Record) []Alert {
	type groupKey struct {
		severity domain.Severity
		typ      domain.AnomalyType
	}
	type group struct {
		regions []domain.GeoKey
		seen    map[domain.GeoKey]struct{}
		count   int
		maxZ    float64
		minZ    float64
	}

	groups := map[groupKey]*group{}
	for _, r := range records {
		if !r.IsAnomaly {
			continue
		}
		gk := groupKey{severity: r.Severity, typ: r.Type}
		g, ok := groups[gk]
		if !ok {
			g = &group{seen: map[domain.GeoKey]struct{}{}, maxZ: math.Inf(-1), minZ: math.Inf(1)}
			groups[gk] = g
		}
		if _, dup := g.seen[r.Key]; !dup {
			g.seen[r.Key] = struct{}{}
			g.regions = append(g.regions, r.Key)
		}
		g.count++
		g.maxZ = math.Max(g.maxZ, r.ZScore)
		g.minZ = math.Min(g.minZ, r.ZScore)
	}

	alerts := make([]Alert, 0, len(groups))
	for gk, g := range groups {
		regions := g.regions
		sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
		if len(regions) > alertRegionCap {
			regions = regions[:alertRegionCap]
		}
		message, recommendation := alertTexts(gk.typ, len(regions))
		alerts = append(alerts, Alert{
			Type:            gk.typ,
			Severity:        gk.severity,
			AffectedRegions: regions,
			Count:           g.count,
			MaxZScore:       round2(g.maxZ),
			MinZScore:       round2(g.minZ),
			Message:         message,
			Recommendation:  recommendation,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
		}
		return alerts[i].Type < alerts[j].Type
	})
	return alerts
}

// AlertSummary counts alerts per severity for the overview surfaces.
type AlertSummary struct {
	TotalAlerts int     `json:"total_alerts"`
	Critical    int     `json:"critical"`
	High        int     `json:"high"`
	Medium      int     `json:"medium"`
	Low         int     `json:"low"`
	Alerts      []Alert `json:"alerts"`
}

// SummarizeAlerts bundles alerts with their per-severity counts.
func SummarizeAlerts(alerts []Alert) AlertSummary {
	s := AlertSummary{TotalAlerts: len(alerts), Alerts: alerts}
	if s.Alerts == nil {
		s.Alerts = []Alert{}
	}
	for _, a := range alerts {
		switch a.Severity {
		case domain.SeverityCritical:
			s.Critical++
		case domain.SeverityHigh:
			s.High++
		case domain.SeverityMedium:
			s.Medium++
		case domain.SeverityLow:
			s.Low++
		}
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
