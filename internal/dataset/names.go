package dataset

import "fluxmap/internal/domain"

// Well-known snapshot names. Each is owned and fully overwritten by exactly
// one pipeline stage per run.
const (
	SnapshotEnrolment    = "enrolment_clean"
	SnapshotDemographic  = "demographic_clean"
	SnapshotBiometric    = "biometric_clean"
	SnapshotSignal       = "signal_separated"
	SnapshotMVI          = "mvi_analytics"
	SnapshotTimeseries   = "mvi_timeseries"
	SnapshotAnomalies    = "anomalies"
	SnapshotTypology     = "trend_typology"
	SnapshotAcceleration = "acceleration"
	SnapshotPolicy       = "policy_recommendations"
	SnapshotInsights     = "decision_insights"
)

// CleanSnapshot returns the post-ingestion snapshot name for a record kind.
func CleanSnapshot(kind domain.RecordKind) string {
	switch kind {
	case domain.KindEnrolment:
		return SnapshotEnrolment
	case domain.KindDemographic:
		return SnapshotDemographic
	case domain.KindBiometric:
		return SnapshotBiometric
	default:
		return string(kind) + "_clean"
	}
}

// DerivedSnapshots lists every snapshot produced downstream of ingestion, in
// pipeline order. Reset deletes these plus the clean snapshots.
func DerivedSnapshots() []string {
	return []string{
		SnapshotSignal,
		SnapshotMVI,
		SnapshotTimeseries,
		SnapshotAnomalies,
		SnapshotTypology,
		SnapshotAcceleration,
		SnapshotPolicy,
		SnapshotInsights,
	}
}
