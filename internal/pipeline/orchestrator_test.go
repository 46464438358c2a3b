package pipeline

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"fluxmap/internal/dataset"
	"fluxmap/internal/events"
	"fluxmap/internal/ingest"
	"fluxmap/internal/ledger"
	"fluxmap/internal/mvi"
	"fluxmap/internal/signal"
	mockdataset "fluxmap/mocks/dataset"
	mockevents "fluxmap/mocks/events"
	"fluxmap/pkg/testutil"
)

func fixedNow() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func newTestOrchestrator(t *testing.T, store dataset.Store, publisher events.Publisher) *Orchestrator {
	t.Helper()

	lg := ledger.NewMemoryLedger()
	ing, err := ingest.NewIngestor(store, lg,
		filepath.Join(t.TempDir(), "uploads"), filepath.Join(t.TempDir(), "archive"),
		ingest.WithLogger(testutil.Logger()))
	require.NoError(t, err)

	o, err := New(Deps{
		Store:     store,
		Ledger:    lg,
		Ingestor:  ing,
		DataDir:   t.TempDir(),
		Publisher: publisher,
	}, WithLogger(testutil.Logger()), WithClock(fixedNow))
	require.NoError(t, err)
	return o
}

func TestRunZeroInput(t *testing.T) {
	o := newTestOrchestrator(t, dataset.NewMemStore(), nil)
	ctx := testutil.Context(t)

	m, err := o.Run(ctx, RunOptions{})
	require.NoError(t, err, "an empty upload directory is not a failure")

	assert.Equal(t, StatusCompleted, m.Status)
	assert.Equal(t, Version, m.PipelineVersion)
	assert.Equal(t, StageOrder(), m.StageOrder, "every stage runs even with no data")
	for _, name := range m.StageOrder {
		assert.Zero(t, m.Stages[name].RowsOut, "stage %s should output nothing", name)
	}
	assert.InDelta(t, 100.0, m.Summary.DataQualityScore, 1e-9, "no input scores full quality")

	loaded, err := o.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, loaded.RunID)
}

func TestRunDemoEndToEnd(t *testing.T) {
	store := dataset.NewMemStore()
	o := newTestOrchestrator(t, store, nil)
	ctx := testutil.Context(t)

	m, err := o.Run(ctx, RunOptions{InitializeDemo: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, m.Status)
	assert.Positive(t, m.Stages[StageIngestion].RowsOut)
	assert.Positive(t, m.Stages[StageMVI].RowsOut)

	mviTable, err := store.Load(ctx, dataset.SnapshotMVI)
	require.NoError(t, err)
	records := mvi.FromTable(mviTable)
	require.NotEmpty(t, records)
	for _, r := range records {
		assert.NotEmpty(t, r.ZoneType)
		assert.NotEmpty(t, r.Confidence)
	}

	signalTable, err := store.Load(ctx, dataset.SnapshotSignal)
	require.NoError(t, err)
	before := signal.FromTable(signalTable)
	require.NotEmpty(t, before)

	// Re-running against the same demo files is a no-op for the snapshots:
	// every hash is already in the ledger.
	m2, err := o.Run(ctx, RunOptions{InitializeDemo: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, m2.Status)
	assert.Zero(t, m2.Stages[StageIngestion].RowsIn, "no new files on the second scan")

	signalTable, err = store.Load(ctx, dataset.SnapshotSignal)
	require.NoError(t, err)
	after := signal.FromTable(signalTable)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.InDelta(t, before[i].OrganicSignal, after[i].OrganicSignal, 1e-9,
			"organic signal for %s must be unchanged by a no-op rescan", before[i].Key)
	}
}

func TestRunGate(t *testing.T) {
	o := newTestOrchestrator(t, dataset.NewMemStore(), nil)

	o.running.Store(true)
	_, err := o.Run(testutil.Context(t), RunOptions{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	o.running.Store(false)
	_, err = o.Run(testutil.Context(t), RunOptions{})
	assert.NoError(t, err, "gate releases after the run finishes")
}

func TestRunStageFailurePersistsManifest(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockdataset.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, dataset.ErrNotFound).AnyTimes()
	store.EXPECT().Save(gomock.Any(), dataset.SnapshotSignal, gomock.Any()).
		Return(errors.New("disk full"))

	o := newTestOrchestrator(t, store, nil)
	ctx := testutil.Context(t)

	m, err := o.Run(ctx, RunOptions{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "signal_separation")
	assert.Equal(t, StatusFailed, m.Status)
	require.NotEmpty(t, m.Errors)
	assert.Contains(t, m.Errors[0], "disk full")

	// The failure was persisted before Run returned.
	loaded, err := o.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, m.RunID, loaded.RunID)
}

func TestRunPublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mockevents.NewMockPublisher(ctrl)

	var started, completed events.RunEvent
	publisher.EXPECT().PublishRun(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, ev events.RunEvent) error {
			started = ev
			return nil
		})
	publisher.EXPECT().PublishRun(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, ev events.RunEvent) error {
			completed = ev
			return nil
		})

	o := newTestOrchestrator(t, dataset.NewMemStore(), publisher)
	m, err := o.Run(testutil.Context(t), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "run_started", started.Type)
	assert.Equal(t, "run_completed", completed.Type)
	assert.Equal(t, m.RunID, started.RunID)
	assert.Equal(t, StatusCompleted, completed.Status)
}

func TestStatusNotRun(t *testing.T) {
	o := newTestOrchestrator(t, dataset.NewMemStore(), nil)
	_, err := o.Status(testutil.Context(t))
	assert.ErrorIs(t, err, ErrNotRun)
}

func TestReset(t *testing.T) {
	store := dataset.NewMemStore()
	o := newTestOrchestrator(t, store, nil)
	ctx := testutil.Context(t)

	_, err := o.Run(ctx, RunOptions{InitializeDemo: true})
	require.NoError(t, err)

	require.NoError(t, o.Reset(ctx))

	_, err = store.Load(ctx, dataset.SnapshotMVI)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = store.Load(ctx, dataset.SnapshotEnrolment)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	_, err = o.Status(ctx)
	assert.ErrorIs(t, err, ErrNotRun, "reset removes the manifest")

	hashes, err := o.deps.Ledger.Hashes(ctx)
	require.NoError(t, err)
	assert.Empty(t, hashes, "reset clears the content ledger")
}

func TestResetWhileRunning(t *testing.T) {
	o := newTestOrchestrator(t, dataset.NewMemStore(), nil)
	o.running.Store(true)
	assert.ErrorIs(t, o.Reset(testutil.Context(t)), ErrAlreadyRunning)
}
