package domain

import "strings"

// GeoKey identifies a geographic unit as "{state}_{district}". It is the
// primary join key across every derived table; all engines group by it.
type GeoKey string

// NewGeoKey builds the canonical key. Values are trimmed and lowercased so
// differently-cased source files land on the same unit.
func NewGeoKey(state, district string) GeoKey {
	s := strings.ToLower(strings.TrimSpace(state))
	d := strings.ToLower(strings.TrimSpace(district))
	return GeoKey(s + "_" + d)
}

// Split returns the state and district parts of the key.
func (g GeoKey) Split() (state, district string) {
	state, district, _ = strings.Cut(string(g), "_")
	return state, district
}

// RecordKind enumerates the three classes of ingested files.
type RecordKind string

const (
	KindEnrolment   RecordKind = "enrolment"
	KindDemographic RecordKind = "demographic"
	KindBiometric   RecordKind = "biometric"
)

// Kinds lists all record kinds in ingestion order.
func Kinds() []RecordKind {
	return []RecordKind{KindEnrolment, KindDemographic, KindBiometric}
}

// ZoneType is the coarse MVI-derived severity bucket for a region.
type ZoneType string

const (
	ZoneStable         ZoneType = "stable"
	ZoneModerateInflow ZoneType = "moderate_inflow"
	ZoneElevatedInflow ZoneType = "elevated_inflow"
	ZoneHighInflow     ZoneType = "high_inflow"
)

// Confidence grades how much population evidence backs an MVI value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TrendType is the behavioral archetype derived from slope, variance and
// acceleration over a region's time series.
type TrendType string

const (
	TrendPersistentInflow TrendType = "persistent_inflow"
	TrendEmergingInflow   TrendType = "emerging_inflow"
	TrendVolatile         TrendType = "volatile"
	TrendReversal         TrendType = "reversal"
	TrendStable           TrendType = "stable"
)

// AccelerationStatus describes whether a region's inflow rate is itself
// changing.
type AccelerationStatus string

const (
	AccelAccelerating AccelerationStatus = "accelerating"
	AccelStable       AccelerationStatus = "stable"
	AccelDecelerating AccelerationStatus = "decelerating"
)

// Severity bands an anomaly by |z-score|.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityNormal   Severity = "NORMAL"
)

// Rank orders severities for sorting; CRITICAL sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// AnomalyType classifies a flagged deviation.
type AnomalyType string

const (
	AnomalySpike      AnomalyType = "SPIKE"
	AnomalyDrop       AnomalyType = "DROP"
	AnomalyStructural AnomalyType = "STRUCTURAL"
	AnomalyTransient  AnomalyType = "TRANSIENT"
)

// Priority grades policy recommendations.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank orders priorities for sorting; CRITICAL sorts first. Unknown values
// sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	default:
		return 5
	}
}
