// Command server runs the fluxmap analytics service: the batch pipeline, its
// schedulers, and the HTTP API in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fluxmap/internal/anomaly"
	"fluxmap/internal/auth"
	"fluxmap/internal/dataset"
	"fluxmap/internal/events"
	"fluxmap/internal/fetch"
	"fluxmap/internal/ingest"
	"fluxmap/internal/ledger"
	"fluxmap/internal/pipeline"
	pipelinemetrics "fluxmap/internal/pipeline/metrics"
	"fluxmap/internal/platform/config"
	"fluxmap/internal/platform/httpserver"
	"fluxmap/internal/platform/logger"
	"fluxmap/internal/platform/metrics"
	"fluxmap/internal/platform/postgres"
	platformredis "fluxmap/internal/platform/redis"
	httptransport "fluxmap/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dataset.NewFileStore(filepath.Join(cfg.DataDir, "snapshots"),
		dataset.WithFileStoreLogger(log))
	if err != nil {
		return err
	}

	lg, cleanup, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ingestor, err := ingest.NewIngestor(store, lg,
		cfg.UploadDir, filepath.Join(cfg.DataDir, "archive"),
		ingest.WithLogger(log))
	if err != nil {
		return err
	}

	publisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	orchestrator, err := pipeline.New(pipeline.Deps{
		Store:     store,
		Ledger:    lg,
		Ingestor:  ingestor,
		DataDir:   cfg.DataDir,
		Anomaly:   anomaly.NewEngine(anomaly.WithWindow(cfg.AnomalyWindow), anomaly.WithLogger(log)),
		Publisher: publisher,
	}, pipeline.WithLogger(log), pipeline.WithMetrics(pipelinemetrics.New()))
	if err != nil {
		return err
	}

	var fetcher *fetch.Client
	if cfg.FetchURL != "" {
		fetcher, err = fetch.NewClient(cfg.FetchURL, cfg.FetchClientID, cfg.UploadDir,
			fetch.WithLogger(log))
		if err != nil {
			return err
		}
	}

	guard, err := buildGuard(cfg, log)
	if err != nil {
		return err
	}

	handlers, err := httptransport.NewHandlers(httptransport.Deps{
		Orchestrator: orchestrator,
		Store:        store,
		Ledger:       lg,
		Ingestor:     ingestor,
		Fetcher:      fetcher,
		Guard:        guard,
	}, httptransport.WithLogger(log), httptransport.WithHTTPMetrics(metrics.NewHTTP()))
	if err != nil {
		return err
	}

	schedulers := startSchedulers(ctx, cfg, orchestrator, fetcher, log)

	srv := httpserver.New(cfg.HTTPAddr, httptransport.NewRouter(handlers))
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr, "ledger_backend", cfg.LedgerBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if schedulers != nil {
		if err := schedulers.Wait(); err != nil {
			return fmt.Errorf("schedulers: %w", err)
		}
	}
	return nil
}

// openLedger builds the configured ledger backend plus its close function.
func openLedger(ctx context.Context, cfg config.Config) (ledger.Ledger, func(), error) {
	noop := func() {}
	switch cfg.LedgerBackend {
	case "memory":
		return ledger.NewMemoryLedger(), noop, nil
	case "file":
		l, err := ledger.NewFileLedger(filepath.Join(cfg.DataDir, "ledger.json"))
		return l, noop, err
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		l := ledger.NewPostgresLedger(db)
		if err := l.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return l, func() { _ = db.Close() }, nil
	case "redis":
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return ledger.NewRedisLedger(client.Client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// openPublisher connects the Kafka publisher when brokers are configured.
func openPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NoopPublisher{}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix,
		events.WithKafkaLogger(log))
	if err != nil {
		return nil, err
	}
	if err := p.EnsureTopics(ctx); err != nil {
		log.Warn("ensure event topics", "error", err)
	}
	return p, nil
}

// buildGuard assembles the admin guard, or nil when no credentials are
// configured so local development stays frictionless.
func buildGuard(cfg config.Config, log *slog.Logger) (*auth.Guard, error) {
	if !cfg.AdminEnabled() {
		log.Warn("no jwt secret or api key hashes configured; admin endpoints are open")
		return nil, nil
	}
	var manager *auth.Manager
	if cfg.JWTSecret != "" {
		m, err := auth.NewManager(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		manager = m
	}
	return auth.NewGuard(manager, cfg.APIKeyHashes, auth.WithGuardLogger(log)), nil
}

// startSchedulers launches the periodic rescan and fetch tickers when
// configured. Returns nil when both are disabled.
func startSchedulers(ctx context.Context, cfg config.Config, orchestrator *pipeline.Orchestrator, fetcher *fetch.Client, log *slog.Logger) *pipeline.Schedulers {
	if cfg.RescanInterval <= 0 && (cfg.FetchInterval <= 0 || fetcher == nil) {
		return nil
	}
	opts := []pipeline.SchedulerOption{pipeline.WithSchedulerLogger(log)}
	if cfg.RescanInterval > 0 {
		opts = append(opts, pipeline.WithRescan(cfg.RescanInterval))
	}
	if cfg.FetchInterval > 0 && fetcher != nil {
		opts = append(opts, pipeline.WithFetch(fetcher, cfg.FetchInterval))
	}
	s := pipeline.NewSchedulers(orchestrator, opts...)
	s.Start(ctx)
	return s
}
