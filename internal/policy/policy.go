// Package policy maps each region's zone and trend classification onto a
// concrete administrative action. The mapping is a fixed table; a high_inflow
// zone overrides whatever the trend suggests, because extreme pressure needs
// an emergency response regardless of trajectory.
package policy

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/typology"
)

// ErrInvalidInvestment rejects negative simulation budgets.
var ErrInvalidInvestment = errors.New("policy: investment must be non-negative")

// ErrRegionNotFound marks a simulation against an unknown region.
var ErrRegionNotFound = errors.New("policy: region not found")

// Policy is one row of the static action table.
type Policy struct {
	Priority      domain.Priority `json:"priority"`
	ActionType    string          `json:"action_type"`
	PrimaryAction string          `json:"primary_action"`
	Reasoning     string          `json:"reasoning"`
}

var mappings = map[string]Policy{
	"persistent_inflow": {
		Priority:      domain.PriorityHigh,
		ActionType:    "infrastructure",
		PrimaryAction: "Augment Urban Infrastructure",
		Reasoning:     "Sustained population growth requires expanded public services",
	},
	"emerging_inflow": {
		Priority:      domain.PriorityHigh,
		ActionType:    "social_program",
		PrimaryAction: "Expand Healthcare & Social Services",
		Reasoning:     "Growing population putting strain on local health systems",
	},
	"moderate_inflow": {
		Priority:      domain.PriorityMedium,
		ActionType:    "education",
		PrimaryAction: "Increase School Capacity",
		Reasoning:     "Moderate growth requires long-term educational planning",
	},
	"volatile": {
		Priority:      domain.PriorityMedium,
		ActionType:    "governance",
		PrimaryAction: "Employment & Labor Monitoring",
		Reasoning:     "Erratic migration patterns affect local labor markets",
	},
	"reversal": {
		Priority:      domain.PriorityMedium,
		ActionType:    "transport",
		PrimaryAction: "Optimize Transport Networks",
		Reasoning:     "Shift in migration flow requires transport logistic review",
	},
	"stable": {
		Priority:      domain.PriorityLow,
		ActionType:    "maintenance",
		PrimaryAction: "Continue Standard Operations",
		Reasoning:     "Stable zone requires no immediate intervention",
	},
	"high_inflow": {
		Priority:      domain.PriorityCritical,
		ActionType:    "emergency",
		PrimaryAction: "Initiate Emergency Planning Cell",
		Reasoning:     "Extreme demographic pressure detected",
	},
}

// ForZone resolves the action for a zone and trend pairing. Known trends map
// directly; unknown trends fall back to a zone-appropriate default.
func ForZone(zone domain.ZoneType, trend domain.TrendType) Policy {
	if zone == domain.ZoneHighInflow {
		return mappings["high_inflow"]
	}
	if p, ok := mappings[string(trend)]; ok {
		return p
	}
	switch zone {
	case domain.ZoneModerateInflow:
		return mappings["emerging_inflow"]
	case domain.ZoneElevatedInflow:
		return mappings["persistent_inflow"]
	default:
		return mappings["stable"]
	}
}

// Recommendation binds a region to its resolved action.
type Recommendation struct {
	Key           domain.GeoKey
	State         string
	District      string
	MVI           float64
	ZoneType      domain.ZoneType
	TrendType     domain.TrendType
	Priority      domain.Priority
	ActionType    string
	PrimaryAction string
	Reasoning     string
}

// Summary counts recommendations by priority and action type.
type Summary struct {
	TotalRecommendations int                     `json:"total_recommendations"`
	ByPriority           map[domain.Priority]int `json:"by_priority"`
	ByActionType         map[string]int          `json:"by_action_type"`
}

// Engine maps typology records to recommendations.
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

// NewEngine builds a policy engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend resolves one action per typology record and orders the result by
// priority rank, then MVI descending so the hardest-pressed region of a tier
// leads.
func (e *Engine) Recommend(records []typology.Record) []Recommendation {
	out := make([]Recommendation, 0, len(records))
	var critical int
	for _, r := range records {
		p := ForZone(r.ZoneType, r.TrendType)
		if p.Priority == domain.PriorityCritical {
			critical++
		}
		out = append(out, Recommendation{
			Key:           r.Key,
			State:         r.State,
			District:      r.District,
			MVI:           r.MVI,
			ZoneType:      r.ZoneType,
			TrendType:     r.TrendType,
			Priority:      p.Priority,
			ActionType:    p.ActionType,
			PrimaryAction: p.PrimaryAction,
			Reasoning:     p.Reasoning,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].MVI > out[j].MVI
	})

	e.log.Info("policy recommendations generated", "total", len(out), "critical", critical)
	return out
}

// Top returns the first limit recommendations of an already prioritized list.
func Top(records []Recommendation, limit int) []Recommendation {
	if limit < 0 {
		limit = 0
	}
	if limit > len(records) {
		limit = len(records)
	}
	return records[:limit]
}

// Summarize counts recommendations per priority and action type.
func Summarize(records []Recommendation) Summary {
	s := Summary{
		TotalRecommendations: len(records),
		ByPriority:           map[domain.Priority]int{},
		ByActionType:         map[string]int{},
	}
	for _, r := range records {
		s.ByPriority[r.Priority]++
		s.ByActionType[r.ActionType]++
	}
	return s
}

// Impact factors per simulated intervention, in MVI reduction per log-crore
// invested.
var impactFactors = map[string]float64{
	"Infrastructure": 0.05,
	"Employment":     0.12,
	"Housing":        0.08,
}

const maxReduction = 0.60

// SimulationResult projects a region's MVI after a policy intervention.
type SimulationResult struct {
	District            string  `json:"district"`
	State               string  `json:"state"`
	CurrentMVI          float64 `json:"current_mvi"`
	InvestmentCr        float64 `json:"investment_cr"`
	PolicyType          string  `json:"policy_type"`
	ProjectedMVI        float64 `json:"projected_mvi"`
	ReductionPercentage float64 `json:"reduction_percentage"`
	ImpactLevel         string  `json:"impact_level"`
}

// Simulate projects the MVI reduction from investing investmentCr crores into
// one policy lever. Returns follow a diminishing log curve and cap at a 60%
// reduction. Unknown policy types fall back to the infrastructure factor.
func Simulate(records []mvi.Record, key domain.GeoKey, investmentCr float64, policyType string) (SimulationResult, error) {
	if investmentCr < 0 {
		return SimulationResult{}, ErrInvalidInvestment
	}

	var target *mvi.Record
	for i := range records {
		if records[i].Key == key {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return SimulationResult{}, ErrRegionNotFound
	}

	factor, ok := impactFactors[policyType]
	if !ok {
		factor = impactFactors["Infrastructure"]
	}

	reduction := math.Min(math.Log1p(investmentCr)*factor, maxReduction)
	projected := target.MVI * (1 - reduction)

	level := "Low"
	switch {
	case reduction > 0.2:
		level = "High"
	case reduction > 0.05:
		level = "Moderate"
	}

	return SimulationResult{
		District:            target.District,
		State:               target.State,
		CurrentMVI:          round2(target.MVI),
		InvestmentCr:        investmentCr,
		PolicyType:          policyType,
		ProjectedMVI:        round2(projected),
		ReductionPercentage: round1(reduction * 100),
		ImpactLevel:         level,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
