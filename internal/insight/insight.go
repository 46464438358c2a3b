// Package insight renders analytics into plain-language briefings. Every
// sentence is templated from computed values; nothing here calls a language
// model, so the output is deterministic and safe to persist.
package insight

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/typology"
)

// trendDescriptions is the one-line gloss for each trajectory.
var trendDescriptions = map[domain.TrendType]string{
	domain.TrendPersistentInflow: "Steady, predictable growth pattern",
	domain.TrendEmergingInflow:   "Accelerating growth pattern",
	domain.TrendVolatile:         "Erratic, unpredictable changes",
	domain.TrendReversal:         "Trend reversal detected",
	domain.TrendStable:           "Minimal demographic change",
}

// topConcernMVI is the pressure floor for the executive summary's watch list.
const topConcernMVI = 30.0

const maxTopConcerns = 5

// Record is one region's briefing, persisted as the decision_insights
// snapshot.
type Record struct {
	Key                 domain.GeoKey
	Summary             string
	KeyFindings         string
	RecommendedAction   string
	ConfidenceStatement string
}

// KeyMetrics carries the executive summary's headline numbers.
type KeyMetrics struct {
	TotalRegions     int     `json:"total_regions"`
	AvgMVI           float64 `json:"avg_mvi"`
	MaxMVI           float64 `json:"max_mvi"`
	HighConcernCount int     `json:"high_concern_count"`
}

// Concern is one watch-list entry.
type Concern struct {
	District string  `json:"district"`
	State    string  `json:"state"`
	MVI      float64 `json:"mvi"`
}

// ExecutiveSummary is the national-level briefing.
type ExecutiveSummary struct {
	Summary          string                  `json:"summary"`
	KeyMetrics       KeyMetrics              `json:"key_metrics"`
	ZoneDistribution map[domain.ZoneType]int `json:"zone_distribution"`
	TopConcerns      []Concern               `json:"top_concerns"`
	Recommendations  []string                `json:"recommendations"`
}

// Engine renders insights.
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

// NewEngine builds an insight engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate writes one briefing per MVI record. Regions without a trend
// record read as stable.
func (e *Engine) Generate(mviRecords []mvi.Record, trends []typology.Record) []Record {
	if len(mviRecords) == 0 {
		return nil
	}

	trendByKey := make(map[domain.GeoKey]domain.TrendType, len(trends))
	for _, t := range trends {
		trendByKey[t.Key] = t.TrendType
	}

	out := make([]Record, 0, len(mviRecords))
	for _, m := range mviRecords {
		trend, ok := trendByKey[m.Key]
		if !ok || trend == "" {
			trend = domain.TrendStable
		}
		out = append(out, format(m, trend))
	}

	e.log.Info("insights generated", "regions", len(out))
	return out
}

func format(m mvi.Record, trend domain.TrendType) Record {
	var summary string
	switch m.ZoneType {
	case domain.ZoneHighInflow:
		summary = fmt.Sprintf("%s, %s is experiencing extremely high migration pressure with MVI of %.1f",
			m.District, m.State, m.MVI)
	case domain.ZoneElevatedInflow:
		summary = fmt.Sprintf("%s, %s shows elevated migration activity with MVI of %.1f",
			m.District, m.State, m.MVI)
	case domain.ZoneModerateInflow:
		summary = fmt.Sprintf("%s, %s has moderate migration patterns with MVI of %.1f",
			m.District, m.State, m.MVI)
	default:
		summary = fmt.Sprintf("%s, %s maintains stable demographic patterns with MVI of %.1f",
			m.District, m.State, m.MVI)
	}

	findings := []string{
		fmt.Sprintf("MVI of %.1f indicates %s zone", m.MVI,
			strings.ReplaceAll(string(m.ZoneType), "_", " ")),
	}
	if desc, ok := trendDescriptions[trend]; ok {
		findings = append(findings, "Trend pattern: "+desc)
	}
	findings = append(findings, "Population base: "+groupThousands(int64(m.PopulationBase)))

	var action string
	switch {
	case m.ZoneType == domain.ZoneHighInflow:
		action = "Immediate capacity expansion and resource allocation required"
	case m.ZoneType == domain.ZoneElevatedInflow:
		action = "Plan for infrastructure upgrades and service expansion"
	case trend == domain.TrendVolatile:
		action = "Deploy monitoring systems and investigate volatility causes"
	case trend == domain.TrendEmergingInflow:
		action = "Early intervention and proactive planning recommended"
	default:
		action = "Continue standard operations with periodic review"
	}

	var confidence string
	switch m.Confidence {
	case domain.ConfidenceHigh:
		confidence = fmt.Sprintf("High confidence based on %s population sample",
			groupThousands(int64(m.PopulationBase)))
	case domain.ConfidenceMedium:
		confidence = "Medium confidence - additional data collection recommended"
	default:
		confidence = "Low confidence due to limited data - interpret with caution"
	}

	return Record{
		Key:                 m.Key,
		Summary:             summary,
		KeyFindings:         strings.Join(findings, "; "),
		RecommendedAction:   action,
		ConfidenceStatement: confidence,
	}
}

// Executive condenses the national picture into a few sentences plus the
// watch list of regions past the concern floor.
func (e *Engine) Executive(mviRecords []mvi.Record) ExecutiveSummary {
	if len(mviRecords) == 0 {
		return ExecutiveSummary{
			Summary:          "No data available for analysis",
			ZoneDistribution: map[domain.ZoneType]int{},
			TopConcerns:      []Concern{},
			Recommendations:  []string{},
		}
	}

	zones := map[domain.ZoneType]int{}
	var sum, max float64
	for _, m := range mviRecords {
		zones[m.ZoneType]++
		sum += m.MVI
		if m.MVI > max {
			max = m.MVI
		}
	}
	avg := sum / float64(len(mviRecords))
	highConcern := zones[domain.ZoneHighInflow] + zones[domain.ZoneElevatedInflow]

	concerns := []Concern{}
	for _, m := range mviRecords {
		if m.MVI >= topConcernMVI {
			concerns = append(concerns, Concern{District: m.District, State: m.State, MVI: round2(m.MVI)})
		}
	}
	sort.SliceStable(concerns, func(i, j int) bool { return concerns[i].MVI > concerns[j].MVI })
	if len(concerns) > maxTopConcerns {
		concerns = concerns[:maxTopConcerns]
	}

	summary := fmt.Sprintf(
		"Analysis of %d regions reveals an average MVI of %.1f with peak values reaching %.1f.\n"+
			"%d regions are classified as elevated or high inflow zones requiring attention.\n"+
			"%d regions maintain stable demographic patterns.",
		len(mviRecords), avg, max, highConcern, zones[domain.ZoneStable])

	recommendations := []string{}
	if zones[domain.ZoneHighInflow] > 0 {
		recommendations = append(recommendations, "Deploy emergency planning cells in high-inflow zones")
	}
	if zones[domain.ZoneElevatedInflow] > 0 {
		recommendations = append(recommendations, "Initiate infrastructure capacity assessments")
	}
	if zones[domain.ZoneModerateInflow] > 0 {
		recommendations = append(recommendations, "Continue monitoring moderate inflow regions")
	}
	recommendations = append(recommendations, "Maintain regular data refresh cycles")

	return ExecutiveSummary{
		Summary: summary,
		KeyMetrics: KeyMetrics{
			TotalRegions:     len(mviRecords),
			AvgMVI:           round2(avg),
			MaxMVI:           round2(max),
			HighConcernCount: highConcern,
		},
		ZoneDistribution: zones,
		TopConcerns:      concerns,
		Recommendations:  recommendations,
	}
}

// Regional finds one region's briefing.
func Regional(records []Record, key domain.GeoKey) (Record, bool) {
	for _, r := range records {
		if r.Key == key {
			return r, true
		}
	}
	return Record{}, false
}

// groupThousands renders n with comma separators, e.g. 1250000 → "1,250,000".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
