package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Version stamps every manifest.
const Version = "2.0.0"

// manifestFile is the single persisted run record under the data directory.
// Each run fully overwrites it; only the last run is retained.
const manifestFile = "metadata.json"

// Run statuses.
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// Stage names, in execution order. These are the manifest keys.
const (
	StageDiscovery    = "data_discovery"
	StageIngestion    = "data_ingestion"
	StageSignal       = "signal_separation"
	StageMVI          = "mvi_calculation"
	StageSpatial      = "spatial_analysis"
	StageAnomaly      = "anomaly_detection"
	StageTypology     = "trend_typology"
	StageAcceleration = "acceleration_analysis"
	StageSeasonality  = "seasonality_detection"
	StagePolicy       = "policy_mapping"
	StageInsight      = "insight_generation"
	StageFinalize     = "metadata_finalization"
)

// StageOrder lists every stage in dependency order.
func StageOrder() []string {
	return []string{
		StageDiscovery, StageIngestion, StageSignal, StageMVI,
		StageSpatial, StageAnomaly, StageTypology, StageAcceleration,
		StageSeasonality, StagePolicy, StageInsight, StageFinalize,
	}
}

// StageRecord is one stage's accounting within a run.
type StageRecord struct {
	RowsIn      int            `json:"rows_in"`
	RowsOut     int            `json:"rows_out"`
	RowsDropped int            `json:"rows_dropped"`
	DropReasons map[string]int `json:"drop_reasons,omitempty"`
	Duration    float64        `json:"duration_seconds"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Summary carries the run's headline totals.
type Summary struct {
	TotalRowsProcessed int     `json:"total_rows_processed"`
	TotalRowsOutput    int     `json:"total_rows_output"`
	DataQualityScore   float64 `json:"data_quality_score"`
}

// Manifest is the persisted record of one pipeline run.
type Manifest struct {
	Status          string                 `json:"status"`
	RunID           string                 `json:"run_id"`
	RunTimestamp    time.Time              `json:"run_timestamp"`
	PipelineVersion string                 `json:"pipeline_version"`
	StageOrder      []string               `json:"stage_order"`
	Stages          map[string]StageRecord `json:"stages"`
	Summary         Summary                `json:"summary"`
	Errors          []string               `json:"errors,omitempty"`
	Warnings        []string               `json:"warnings,omitempty"`
	CompletedAt     time.Time              `json:"completed_at,omitzero"`
}

// tracker accumulates a run's manifest as stages execute.
type tracker struct {
	manifest Manifest
	now      func() time.Time
}

func newTracker(runID string, now func() time.Time) *tracker {
	return &tracker{
		manifest: Manifest{
			Status:          StatusRunning,
			RunID:           runID,
			RunTimestamp:    now().UTC(),
			PipelineVersion: Version,
			Stages:          map[string]StageRecord{},
		},
		now: now,
	}
}

// recordStage appends one stage's accounting and keeps order of first record.
func (t *tracker) recordStage(name string, rowsIn, rowsOut int, dropReasons map[string]int, elapsed time.Duration) {
	dropped := rowsIn - rowsOut
	if dropped < 0 {
		dropped = 0
	}
	if _, seen := t.manifest.Stages[name]; !seen {
		t.manifest.StageOrder = append(t.manifest.StageOrder, name)
	}
	t.manifest.Stages[name] = StageRecord{
		RowsIn:      rowsIn,
		RowsOut:     rowsOut,
		RowsDropped: dropped,
		DropReasons: dropReasons,
		Duration:    math.Round(elapsed.Seconds()*1000) / 1000,
		Timestamp:   t.now().UTC(),
	}
}

func (t *tracker) recordError(stage string, err error) {
	t.manifest.Errors = append(t.manifest.Errors, fmt.Sprintf("%s: %v", stage, err))
}

func (t *tracker) recordWarning(stage, msg string) {
	t.manifest.Warnings = append(t.manifest.Warnings, fmt.Sprintf("%s: %s", stage, msg))
}

// complete finalizes status and the summary. Fatal runs call fail instead.
func (t *tracker) complete() {
	if len(t.manifest.Errors) > 0 {
		t.manifest.Status = StatusCompletedWithErrors
	} else {
		t.manifest.Status = StatusCompleted
	}
	t.finalize()
}

func (t *tracker) fail() {
	t.manifest.Status = StatusFailed
	t.finalize()
}

func (t *tracker) finalize() {
	var in, out int
	for _, s := range t.manifest.Stages {
		in += s.RowsIn
		out += s.RowsOut
	}
	score := 100.0
	if in > 0 {
		score = math.Round(float64(out)/float64(in)*100*100) / 100
	}
	t.manifest.Summary = Summary{
		TotalRowsProcessed: in,
		TotalRowsOutput:    out,
		DataQualityScore:   score,
	}
	t.manifest.CompletedAt = t.now().UTC()
}

// saveManifest writes the manifest atomically under dir.
func saveManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal manifest: %w", err)
	}
	path := filepath.Join(dir, manifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("pipeline: write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pipeline: replace manifest: %w", err)
	}
	return nil
}

// loadManifest reads the last persisted run, ErrNotRun when none exists.
func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotRun
		}
		return nil, fmt.Errorf("pipeline: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pipeline: parse manifest: %w", err)
	}
	return &m, nil
}
