// Package spatial detects geographic concentrations of migration pressure.
// States are the clustering unit: several pressured districts inside one
// state read as a hotspot, and the spread of MVI within states versus across
// the whole country gives a cheap autocorrelation proxy.
package spatial

import (
	"log/slog"
	"math"
	"sort"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/stats"
)

const (
	// hotspotThreshold is the MVI floor a district must cross to count
	// toward its state's cluster.
	hotspotThreshold = mvi.ZoneModerateMax

	criticalClusterSize = 5
	highClusterSize     = 3

	// clusteredScoreMin is the autocorrelation score above which pressure
	// is considered geographically clustered rather than dispersed.
	clusteredScoreMin = 0.5
)

// ClusterSeverity grades a hotspot cluster by how many districts it spans.
type ClusterSeverity string

const (
	ClusterCritical ClusterSeverity = "critical"
	ClusterHigh     ClusterSeverity = "high"
	ClusterModerate ClusterSeverity = "moderate"
)

// Hotspot is a state with at least one district over the pressure floor.
type Hotspot struct {
	State         string          `json:"state"`
	ClusterCenter string          `json:"cluster_center"`
	HighMVICount  int             `json:"high_mvi_count"`
	AvgMVI        float64         `json:"avg_mvi"`
	MaxMVI        float64         `json:"max_mvi"`
	Severity      ClusterSeverity `json:"severity"`
}

// Autocorrelation is a variance-based proxy for Moran's I. Scores above the
// clustering threshold mean pressure concentrates within states instead of
// spreading across them.
type Autocorrelation struct {
	ClusteringScore     float64 `json:"clustering_score"`
	IsClustered         bool    `json:"is_clustered"`
	OverallVariance     float64 `json:"overall_variance"`
	WithinStateVariance float64 `json:"within_state_variance"`
}

// ZoneDistribution counts regions per zone type.
type ZoneDistribution struct {
	Stable         int `json:"stable"`
	ModerateInflow int `json:"moderate_inflow"`
	ElevatedInflow int `json:"elevated_inflow"`
	HighInflow     int `json:"high_inflow"`
	Total          int `json:"total"`
}

// StateStat compares states by aggregate pressure.
type StateStat struct {
	State           string  `json:"state"`
	AvgMVI          float64 `json:"avg_mvi"`
	MaxMVI          float64 `json:"max_mvi"`
	MinMVI          float64 `json:"min_mvi"`
	DistrictCount   int     `json:"district_count"`
	TotalPopulation float64 `json:"total_population"`
	TotalSignal     float64 `json:"total_signal"`
}

// HeatmapCell is one region's row in the choropleth feed.
type HeatmapCell struct {
	State          string          `json:"state"`
	District       string          `json:"district"`
	Key            domain.GeoKey   `json:"geo_key"`
	MVI            float64         `json:"mvi"`
	ZoneType       domain.ZoneType `json:"zone_type"`
	PopulationBase float64         `json:"population_base"`
}

// ClassifyCluster grades a cluster by district count.
func ClassifyCluster(count int) ClusterSeverity {
	switch {
	case count >= criticalClusterSize:
		return ClusterCritical
	case count >= highClusterSize:
		return ClusterHigh
	default:
		return ClusterModerate
	}
}

// Engine runs spatial analytics over MVI records.
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

// NewEngine builds a spatial engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectHotspots groups districts at or above the pressure floor by state.
// The first qualifying district in record order names the cluster center.
// Results are ordered by cluster size, largest first.
func (e *Engine) DetectHotspots(records []mvi.Record) []Hotspot {
	byState := map[string]*Hotspot{}
	var order []string
	for _, r := range records {
		if r.MVI < hotspotThreshold {
			continue
		}
		h, ok := byState[r.State]
		if !ok {
			h = &Hotspot{State: r.State, ClusterCenter: r.District, MaxMVI: r.MVI}
			byState[r.State] = h
			order = append(order, r.State)
		}
		h.HighMVICount++
		h.AvgMVI += r.MVI
		if r.MVI > h.MaxMVI {
			h.MaxMVI = r.MVI
		}
	}

	out := make([]Hotspot, 0, len(order))
	for _, state := range order {
		h := byState[state]
		h.AvgMVI /= float64(h.HighMVICount)
		h.Severity = ClassifyCluster(h.HighMVICount)
		out = append(out, *h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HighMVICount != out[j].HighMVICount {
			return out[i].HighMVICount > out[j].HighMVICount
		}
		return out[i].State < out[j].State
	})

	e.log.Info("hotspot clusters detected", "clusters", len(out))
	return out
}

// ComputeAutocorrelation compares country-wide MVI variance against the mean
// variance inside states. States with a single district carry no variance and
// are left out of the within-state mean.
func (e *Engine) ComputeAutocorrelation(records []mvi.Record) Autocorrelation {
	if len(records) == 0 {
		return Autocorrelation{}
	}

	all := make([]float64, 0, len(records))
	byState := map[string][]float64{}
	for _, r := range records {
		all = append(all, r.MVI)
		byState[r.State] = append(byState[r.State], r.MVI)
	}

	overall := stats.SampleVariance(all)

	var within, n float64
	for _, values := range byState {
		if len(values) < 2 {
			continue
		}
		within += stats.SampleVariance(values)
		n++
	}
	if n > 0 {
		within /= n
	}

	var score float64
	if within > 0 {
		score = (overall - within) / within
	}

	return Autocorrelation{
		ClusteringScore:     round3(score),
		IsClustered:         score > clusteredScoreMin,
		OverallVariance:     round3(overall),
		WithinStateVariance: round3(within),
	}
}

// CountZones tallies regions per zone type.
func CountZones(records []mvi.Record) ZoneDistribution {
	d := ZoneDistribution{}
	for _, r := range records {
		switch r.ZoneType {
		case domain.ZoneStable:
			d.Stable++
		case domain.ZoneModerateInflow:
			d.ModerateInflow++
		case domain.ZoneElevatedInflow:
			d.ElevatedInflow++
		case domain.ZoneHighInflow:
			d.HighInflow++
		}
	}
	d.Total = d.Stable + d.ModerateInflow + d.ElevatedInflow + d.HighInflow
	return d
}

// CompareStates aggregates MVI, population and signal per state, ordered by
// average pressure descending.
func CompareStates(records []mvi.Record) []StateStat {
	byState := map[string]*StateStat{}
	var order []string
	for _, r := range records {
		s, ok := byState[r.State]
		if !ok {
			s = &StateStat{State: r.State, MaxMVI: r.MVI, MinMVI: r.MVI}
			byState[r.State] = s
			order = append(order, r.State)
		}
		s.AvgMVI += r.MVI
		if r.MVI > s.MaxMVI {
			s.MaxMVI = r.MVI
		}
		if r.MVI < s.MinMVI {
			s.MinMVI = r.MVI
		}
		s.DistrictCount++
		s.TotalPopulation += r.PopulationBase
		s.TotalSignal += r.OrganicSignal
	}

	out := make([]StateStat, 0, len(order))
	for _, state := range order {
		s := byState[state]
		s.AvgMVI /= float64(s.DistrictCount)
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgMVI != out[j].AvgMVI {
			return out[i].AvgMVI > out[j].AvgMVI
		}
		return out[i].State < out[j].State
	})
	return out
}

// Heatmap flattens MVI records into choropleth rows.
func Heatmap(records []mvi.Record) []HeatmapCell {
	out := make([]HeatmapCell, 0, len(records))
	for _, r := range records {
		out = append(out, HeatmapCell{
			State:          r.State,
			District:       r.District,
			Key:            r.Key,
			MVI:            r.MVI,
			ZoneType:       r.ZoneType,
			PopulationBase: r.PopulationBase,
		})
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
