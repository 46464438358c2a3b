package pipeline

import "math"

// LineageStage documents one stage for the trust endpoints.
type LineageStage struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

// Lineage is the static description of what each stage consumes and
// produces. It changes only when the pipeline itself does.
func Lineage() []LineageStage {
	return []LineageStage{
		{StageDiscovery, "Walk the upload tree, expand archives, classify unique files by header", []string{"uploads/"}, []string{"classified file list"}},
		{StageIngestion, "Merge the union of all known files per kind into clean snapshots", []string{"classified file list", "content-hash ledger"}, []string{"enrolment_clean", "demographic_clean", "biometric_clean"}},
		{StageSignal, "Weight update counts to separate organic migration signal from administrative noise", []string{"demographic_clean", "biometric_clean"}, []string{"signal_separated"}},
		{StageMVI, "Scale organic signal by enrolment population into the Migration Velocity Index", []string{"signal_separated", "enrolment_clean"}, []string{"mvi_analytics", "mvi_timeseries"}},
		{StageSpatial, "Cluster pressured districts by state and test for spatial concentration", []string{"mvi_analytics"}, []string{"hotspot clusters"}},
		{StageAnomaly, "Score each region-day against its rolling baseline and group alerts", []string{"mvi_timeseries"}, []string{"anomalies"}},
		{StageTypology, "Classify each region's trend archetype from slope, variance and acceleration", []string{"mvi_analytics", "mvi_timeseries"}, []string{"trend_typology"}},
		{StageAcceleration, "Compare recent against historical slope for early warnings", []string{"mvi_timeseries", "mvi_analytics"}, []string{"acceleration"}},
		{StageSeasonality, "Fold the timeseries onto the calendar and index each month", []string{"mvi_timeseries"}, []string{"seasonal profile"}},
		{StagePolicy, "Map zone and trend to administrative actions", []string{"trend_typology"}, []string{"policy_recommendations"}},
		{StageInsight, "Render deterministic briefings per region and nationally", []string{"mvi_analytics", "trend_typology"}, []string{"decision_insights"}},
		{StageFinalize, "Persist the run manifest", []string{"stage records"}, []string{"metadata.json"}},
	}
}

// StageQuality is one stage's retention figure in the quality report.
type StageQuality struct {
	Stage     string  `json:"stage"`
	RowsIn    int     `json:"rows_in"`
	RowsOut   int     `json:"rows_out"`
	Retention float64 `json:"retention_pct"`
}

// QualityReport summarizes how much data survived each stage of a run.
type QualityReport struct {
	RunID        string         `json:"run_id"`
	Status       string         `json:"status"`
	OverallScore float64        `json:"overall_score"`
	Stages       []StageQuality `json:"stages"`
	Warnings     []string       `json:"warnings,omitempty"`
	Errors       []string       `json:"errors,omitempty"`
}

// Quality derives the per-stage quality report from a manifest. Stages with
// no input count as full retention.
func Quality(m *Manifest) QualityReport {
	report := QualityReport{
		RunID:        m.RunID,
		Status:       m.Status,
		OverallScore: m.Summary.DataQualityScore,
		Warnings:     m.Warnings,
		Errors:       m.Errors,
	}
	for _, name := range m.StageOrder {
		s := m.Stages[name]
		retention := 100.0
		if s.RowsIn > 0 {
			retention = math.Round(float64(s.RowsOut)/float64(s.RowsIn)*100*100) / 100
		}
		report.Stages = append(report.Stages, StageQuality{
			Stage:     name,
			RowsIn:    s.RowsIn,
			RowsOut:   s.RowsOut,
			Retention: retention,
		})
	}
	return report
}
