package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerComplete(t *testing.T) {
	tr := newTracker("run-1", fixedNow)
	tr.recordStage(StageIngestion, 100, 90, map[string]int{"unparseable": 10}, 250*time.Millisecond)
	tr.recordStage(StageMVI, 90, 90, nil, 50*time.Millisecond)
	tr.complete()

	m := tr.manifest
	assert.Equal(t, StatusCompleted, m.Status)
	assert.Equal(t, []string{StageIngestion, StageMVI}, m.StageOrder)
	assert.Equal(t, 190, m.Summary.TotalRowsProcessed)
	assert.Equal(t, 180, m.Summary.TotalRowsOutput)
	// 180/190 = 94.7368... rounded to 2dp.
	assert.InDelta(t, 94.74, m.Summary.DataQualityScore, 1e-9)

	stage := m.Stages[StageIngestion]
	assert.Equal(t, 10, stage.RowsDropped)
	assert.Equal(t, 0.25, stage.Duration)
}

func TestTrackerCompleteWithErrors(t *testing.T) {
	tr := newTracker("run-1", fixedNow)
	tr.recordStage(StageIngestion, 0, 0, nil, 0)
	tr.recordError(StageIngestion, errors.New("partial extract"))
	tr.complete()

	assert.Equal(t, StatusCompletedWithErrors, tr.manifest.Status)
	assert.InDelta(t, 100.0, tr.manifest.Summary.DataQualityScore, 1e-9,
		"zero input still scores full quality")
}

func TestTrackerFail(t *testing.T) {
	tr := newTracker("run-1", fixedNow)
	tr.recordStage(StageSignal, 10, 0, nil, 0)
	tr.recordError(StageSignal, errors.New("disk full"))
	tr.fail()

	assert.Equal(t, StatusFailed, tr.manifest.Status)
	assert.Contains(t, tr.manifest.Errors[0], "disk full")
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	tr := newTracker("run-42", fixedNow)
	tr.recordStage(StageIngestion, 5, 5, nil, time.Second)
	tr.recordWarning(StageIngestion, "one file skipped")
	tr.complete()

	require.NoError(t, saveManifest(dir, &tr.manifest))

	loaded, err := loadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, tr.manifest.RunID, loaded.RunID)
	assert.Equal(t, tr.manifest.Status, loaded.Status)
	assert.Equal(t, tr.manifest.Stages, loaded.Stages)
	assert.Equal(t, tr.manifest.Warnings, loaded.Warnings)
	assert.True(t, tr.manifest.RunTimestamp.Equal(loaded.RunTimestamp))
}

func TestLoadManifestAbsent(t *testing.T) {
	_, err := loadManifest(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRun)
}

func TestQualityReport(t *testing.T) {
	tr := newTracker("run-7", fixedNow)
	tr.recordStage(StageIngestion, 200, 150, nil, 0)
	tr.recordStage(StageMVI, 0, 0, nil, 0)
	tr.complete()

	report := Quality(&tr.manifest)
	assert.Equal(t, "run-7", report.RunID)
	require.Len(t, report.Stages, 2)
	assert.InDelta(t, 75.0, report.Stages[0].Retention, 1e-9)
	assert.InDelta(t, 100.0, report.Stages[1].Retention, 1e-9, "no input means nothing lost")
}

func TestLineageCoversEveryStage(t *testing.T) {
	stages := Lineage()
	require.Len(t, stages, len(StageOrder()))
	for i, name := range StageOrder() {
		assert.Equal(t, name, stages[i].Name)
	}
}
