// Package pipeline coordinates the analytics engines into one ordered batch
// run, accounts for every stage in a persisted manifest, and guards against
// concurrent invocations. A run either finishes (possibly degraded to empty
// outputs) or fails atomically with the failure recorded first.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fluxmap/internal/accel"
	"fluxmap/internal/anomaly"
	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/events"
	"fluxmap/internal/ingest"
	"fluxmap/internal/insight"
	"fluxmap/internal/ledger"
	"fluxmap/internal/mvi"
	"fluxmap/internal/pipeline/metrics"
	"fluxmap/internal/policy"
	"fluxmap/internal/seasonal"
	"fluxmap/internal/signal"
	"fluxmap/internal/spatial"
	"fluxmap/internal/typology"
)

// RunOptions tune one pipeline run.
type RunOptions struct {
	// InitializeDemo seeds deterministic synthetic CSVs into an empty upload
	// directory before scanning.
	InitializeDemo bool
}

// Deps are the orchestrator's collaborators. Store, Ledger, Ingestor and
// DataDir are required; nil engines are default-constructed and a nil
// Publisher becomes a noop.
type Deps struct {
	Store    dataset.Store
	Ledger   ledger.Ledger
	Ingestor *ingest.Ingestor
	DataDir  string

	Signal   *signal.Engine
	MVI      *mvi.Engine
	Spatial  *spatial.Engine
	Anomaly  *anomaly.Engine
	Typology *typology.Engine
	Accel    *accel.Engine
	Seasonal *seasonal.Engine
	Policy   *policy.Engine
	Insight  *insight.Engine

	Publisher events.Publisher
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	deps    Deps
	metrics *metrics.Pipeline
	tracer  trace.Tracer
	now     func() time.Time
	log     *slog.Logger
	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics wires Prometheus instruments.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the manifest time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New validates dependencies and builds an orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("pipeline: ledger is required")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("pipeline: ingestor is required")
	}
	if deps.DataDir == "" {
		return nil, fmt.Errorf("pipeline: data dir is required")
	}
	if err := os.MkdirAll(deps.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create data dir: %w", err)
	}

	o := &Orchestrator{
		deps:   deps,
		tracer: otel.Tracer("fluxmap/pipeline"),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.deps.Signal == nil {
		o.deps.Signal = signal.NewEngine(signal.WithLogger(o.log))
	}
	if o.deps.MVI == nil {
		o.deps.MVI = mvi.NewEngine(mvi.WithLogger(o.log))
	}
	if o.deps.Spatial == nil {
		o.deps.Spatial = spatial.NewEngine(spatial.WithLogger(o.log))
	}
	if o.deps.Anomaly == nil {
		o.deps.Anomaly = anomaly.NewEngine(anomaly.WithLogger(o.log))
	}
	if o.deps.Typology == nil {
		o.deps.Typology = typology.NewEngine(typology.WithLogger(o.log))
	}
	if o.deps.Accel == nil {
		o.deps.Accel = accel.NewEngine(accel.WithLogger(o.log))
	}
	if o.deps.Seasonal == nil {
		o.deps.Seasonal = seasonal.NewEngine(seasonal.WithLogger(o.log))
	}
	if o.deps.Policy == nil {
		o.deps.Policy = policy.NewEngine(policy.WithLogger(o.log))
	}
	if o.deps.Insight == nil {
		o.deps.Insight = insight.NewEngine(insight.WithLogger(o.log))
	}
	if o.deps.Publisher == nil {
		o.deps.Publisher = events.NoopPublisher{}
	}
	return o, nil
}

// Running reports whether a run is currently in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Run executes all stages in dependency order. A second call while one is in
// flight returns ErrAlreadyRunning immediately. The manifest, including any
// fatal error, is persisted before Run returns.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Manifest, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	runID := uuid.NewString()
	tr := newTracker(runID, o.now)

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	o.log.Info("pipeline run started", "run_id", runID, "demo", opts.InitializeDemo)
	o.publishRun(ctx, events.RunEvent{
		RunID: runID, Type: "run_started", Status: StatusRunning, Timestamp: o.now().UTC(),
	})

	if err := o.execute(ctx, tr, opts); err != nil {
		tr.fail()
		if perr := saveManifest(o.deps.DataDir, &tr.manifest); perr != nil {
			o.log.Error("persist failed manifest", "run_id", runID, "error", perr)
		}
		o.metrics.ObserveRun(StatusFailed)
		span.SetAttributes(attribute.String("status", StatusFailed))
		o.publishRun(ctx, events.RunEvent{
			RunID: runID, Type: "run_failed", Status: StatusFailed,
			Timestamp: o.now().UTC(), Error: err.Error(),
		})
		o.log.Error("pipeline run failed", "run_id", runID, "error", err)
		return &tr.manifest, fmt.Errorf("pipeline: run %s: %w", runID, err)
	}

	finalizeStart := time.Now()
	tr.recordStage(StageFinalize, 0, 0, nil, time.Since(finalizeStart))
	tr.complete()
	if err := saveManifest(o.deps.DataDir, &tr.manifest); err != nil {
		return &tr.manifest, err
	}

	o.metrics.ObserveRun(tr.manifest.Status)
	span.SetAttributes(attribute.String("status", tr.manifest.Status))
	o.publishRun(ctx, events.RunEvent{
		RunID: runID, Type: "run_completed", Status: tr.manifest.Status, Timestamp: o.now().UTC(),
	})
	o.log.Info("pipeline run finished",
		"run_id", runID,
		"status", tr.manifest.Status,
		"rows_processed", tr.manifest.Summary.TotalRowsProcessed,
		"rows_output", tr.manifest.Summary.TotalRowsOutput)
	return &tr.manifest, nil
}

// execute runs every stage. Any returned error is fatal for the run.
func (o *Orchestrator) execute(ctx context.Context, tr *tracker, opts RunOptions) error {
	if opts.InitializeDemo {
		seeded, err := ingest.SeedDemo(o.deps.Ingestor.UploadDir(), o.log)
		if err != nil {
			tr.recordWarning(StageDiscovery, fmt.Sprintf("demo seed failed: %v", err))
		} else if seeded {
			o.log.Info("seeded demo data", "dir", o.deps.Ingestor.UploadDir())
		}
	}

	err := o.stage(ctx, tr, StageDiscovery, func(ctx context.Context) (int, int, map[string]int, error) {
		discovered, skipped, err := o.deps.Ingestor.Discover(ctx)
		if err != nil {
			return 0, 0, nil, err
		}
		classified := 0
		for kind, files := range discovered {
			classified += len(files)
			for range files {
				o.metrics.ObserveIngestFile(string(kind), "classified")
			}
		}
		drops := map[string]int{}
		for _, s := range skipped {
			drops[s.Reason]++
			o.metrics.ObserveIngestFile("unknown", "skipped")
		}
		if len(drops) == 0 {
			drops = nil
		}
		return classified + len(skipped), classified, drops, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, tr, StageIngestion, func(ctx context.Context) (int, int, map[string]int, error) {
		res, err := o.deps.Ingestor.Rescan(ctx)
		if err != nil {
			return 0, 0, nil, err
		}
		rows := 0
		for _, n := range res.RowsByKind {
			rows += n
		}
		if res.NoNewContent {
			o.log.Info("no new content; snapshots untouched")
		}
		return res.NewFiles, rows, nil, nil
	})
	if err != nil {
		return err
	}

	enrolment := o.loadSnapshot(ctx, tr, dataset.SnapshotEnrolment)
	demographic := o.loadSnapshot(ctx, tr, dataset.SnapshotDemographic)
	biometric := o.loadSnapshot(ctx, tr, dataset.SnapshotBiometric)

	var signals []signal.Record
	err = o.stage(ctx, tr, StageSignal, func(ctx context.Context) (int, int, map[string]int, error) {
		signals = o.deps.Signal.Separate(demographic, biometric)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotSignal, signal.Table(signals)); err != nil {
			return 0, 0, nil, err
		}
		return numRows(demographic) + numRows(biometric), len(signals), nil, nil
	})
	if err != nil {
		return err
	}

	var mviRecords []mvi.Record
	var series domain.Timeseries
	err = o.stage(ctx, tr, StageMVI, func(ctx context.Context) (int, int, map[string]int, error) {
		mviRecords = o.deps.MVI.Compute(signals, enrolment)
		series = o.deps.MVI.Timeseries(demographic, enrolment)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotMVI, mvi.Table(mviRecords)); err != nil {
			return 0, 0, nil, err
		}
		if err := o.deps.Store.Save(ctx, dataset.SnapshotTimeseries, mvi.TimeseriesTable(series)); err != nil {
			return 0, 0, nil, err
		}
		return len(signals), len(mviRecords), nil, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, tr, StageSpatial, func(ctx context.Context) (int, int, map[string]int, error) {
		hotspots := o.deps.Spatial.DetectHotspots(mviRecords)
		o.deps.Spatial.ComputeAutocorrelation(mviRecords)
		return len(mviRecords), len(hotspots), nil, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, tr, StageAnomaly, func(ctx context.Context) (int, int, map[string]int, error) {
		points := o.deps.Anomaly.Detect(series)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotAnomalies, anomaly.Table(points)); err != nil {
			return 0, 0, nil, err
		}
		for _, p := range points {
			if p.IsAnomaly {
				o.metrics.ObserveAnomaly(string(p.Severity))
			}
		}
		o.publishAlerts(ctx, tr.manifest.RunID, anomaly.GenerateAlerts(points))
		return len(series), len(points), nil, nil
	})
	if err != nil {
		return err
	}

	var trends []typology.Record
	err = o.stage(ctx, tr, StageTypology, func(ctx context.Context) (int, int, map[string]int, error) {
		trends = o.deps.Typology.Analyze(mviRecords, series)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotTypology, typology.Table(trends)); err != nil {
			return 0, 0, nil, err
		}
		return len(mviRecords), len(trends), nil, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, tr, StageAcceleration, func(ctx context.Context) (int, int, map[string]int, error) {
		records := o.deps.Accel.Compute(series)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotAcceleration, accel.Table(records)); err != nil {
			return 0, 0, nil, err
		}
		return len(series), len(records), nil, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, tr, StageSeasonality, func(ctx context.Context) (int, int, map[string]int, error) {
		months := o.deps.Seasonal.Detect(series)
		return len(series), len(months), nil, nil
	})
	if err != nil {
		return err
	}

	var recommendations []policy.Recommendation
	err = o.stage(ctx, tr, StagePolicy, func(ctx context.Context) (int, int, map[string]int, error) {
		recommendations = o.deps.Policy.Recommend(trends)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotPolicy, policy.Table(recommendations)); err != nil {
			return 0, 0, nil, err
		}
		return len(trends), len(recommendations), nil, nil
	})
	if err != nil {
		return err
	}

	return o.stage(ctx, tr, StageInsight, func(ctx context.Context) (int, int, map[string]int, error) {
		insights := o.deps.Insight.Generate(mviRecords, trends)
		if err := o.deps.Store.Save(ctx, dataset.SnapshotInsights, insight.Table(insights)); err != nil {
			return 0, 0, nil, err
		}
		return len(mviRecords), len(insights), nil, nil
	})
}

// stage wraps one stage function with timing, tracing, metrics and manifest
// accounting. A returned error is recorded against the stage and aborts the
// run.
func (o *Orchestrator) stage(ctx context.Context, tr *tracker, name string,
	fn func(ctx context.Context) (rowsIn, rowsOut int, drops map[string]int, err error)) error {

	ctx, span := o.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	start := time.Now()
	rowsIn, rowsOut, drops, err := fn(ctx)
	elapsed := time.Since(start)

	tr.recordStage(name, rowsIn, rowsOut, drops, elapsed)
	o.metrics.ObserveStage(name, rowsIn, rowsOut, elapsed)
	span.SetAttributes(attribute.Int("rows_in", rowsIn), attribute.Int("rows_out", rowsOut))

	if err != nil {
		tr.recordError(name, err)
		span.RecordError(err)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	o.log.Info("stage completed", "stage", name, "rows_in", rowsIn, "rows_out", rowsOut,
		"duration", elapsed.Round(time.Millisecond))
	return nil
}

// loadSnapshot fetches a named snapshot, degrading a missing one to nil with
// a manifest warning rather than failing the run.
func (o *Orchestrator) loadSnapshot(ctx context.Context, tr *tracker, name string) *dataset.Table {
	t, err := o.deps.Store.Load(ctx, name)
	if err != nil {
		if !errors.Is(err, dataset.ErrNotFound) {
			tr.recordWarning(StageIngestion, fmt.Sprintf("load %s: %v", name, err))
		}
		return nil
	}
	return t
}

func (o *Orchestrator) publishRun(ctx context.Context, ev events.RunEvent) {
	if err := o.deps.Publisher.PublishRun(ctx, ev); err != nil {
		o.log.Warn("run event not published", "type", ev.Type, "error", err)
	}
}

// publishAlerts emits the CRITICAL and HIGH alert groups.
func (o *Orchestrator) publishAlerts(ctx context.Context, runID string, alerts []anomaly.Alert) {
	for _, a := range alerts {
		if a.Severity != domain.SeverityCritical && a.Severity != domain.SeverityHigh {
			continue
		}
		ev := events.AlertEvent{
			RunID:           runID,
			Severity:        a.Severity,
			AnomalyType:     a.Type,
			AffectedRegions: a.AffectedRegions,
			Count:           a.Count,
			Message:         a.Message,
			Timestamp:       o.now().UTC(),
		}
		if err := o.deps.Publisher.PublishAlert(ctx, ev); err != nil {
			o.log.Warn("alert event not published", "severity", a.Severity, "error", err)
		}
	}
}

// Status returns the last persisted manifest, ErrNotRun when none exists.
func (o *Orchestrator) Status(ctx context.Context) (*Manifest, error) {
	return loadManifest(o.deps.DataDir)
}

// Reset clears all pipeline state: the hash ledger, every snapshot, the
// archived raw copies, and the run manifest.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if o.running.Load() {
		return ErrAlreadyRunning
	}
	if err := o.deps.Ledger.Clear(ctx); err != nil {
		return fmt.Errorf("pipeline: clear ledger: %w", err)
	}

	names := make([]string, 0, len(domain.Kinds())+len(dataset.DerivedSnapshots()))
	for _, kind := range domain.Kinds() {
		names = append(names, dataset.CleanSnapshot(kind))
	}
	names = append(names, dataset.DerivedSnapshots()...)
	for _, name := range names {
		if err := o.deps.Store.Delete(ctx, name); err != nil && !errors.Is(err, dataset.ErrNotFound) {
			return fmt.Errorf("pipeline: delete snapshot %s: %w", name, err)
		}
	}

	if err := o.deps.Ingestor.ClearArchive(ctx); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(o.deps.DataDir, manifestFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pipeline: remove manifest: %w", err)
	}
	o.log.Info("system reset complete")
	return nil
}

func numRows(t *dataset.Table) int {
	if t == nil {
		return 0
	}
	return t.NumRows()
}
