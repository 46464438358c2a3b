package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fluxmap/internal/fetch"
)

// Schedulers drive the background cadence: a periodic rescan of the upload
// directory and a periodic upstream fetch. A tick that lands while a run is
// in flight is dropped for that cycle, never queued.
type Schedulers struct {
	orchestrator   *Orchestrator
	fetcher        *fetch.Client
	rescanInterval time.Duration
	fetchInterval  time.Duration
	log            *slog.Logger
	group          *errgroup.Group
}

// SchedulerOption configures Schedulers.
type SchedulerOption func(*Schedulers)

// WithSchedulerLogger overrides the default logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Schedulers) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRescan enables the periodic rescan. Zero disables it.
func WithRescan(interval time.Duration) SchedulerOption {
	return func(s *Schedulers) { s.rescanInterval = interval }
}

// WithFetch enables the periodic upstream fetch. Zero or a nil client
// disables it.
func WithFetch(client *fetch.Client, interval time.Duration) SchedulerOption {
	return func(s *Schedulers) {
		s.fetcher = client
		s.fetchInterval = interval
	}
}

// NewSchedulers builds the background schedulers around an orchestrator.
func NewSchedulers(orchestrator *Orchestrator, opts ...SchedulerOption) *Schedulers {
	s := &Schedulers{orchestrator: orchestrator, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the enabled tickers. They stop when ctx is cancelled; call
// Wait to drain.
func (s *Schedulers) Start(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	s.group = g

	if s.rescanInterval > 0 {
		g.Go(func() error {
			s.log.Info("rescan scheduler started", "interval", s.rescanInterval)
			return s.tick(ctx, s.rescanInterval, s.runOnce)
		})
	}
	if s.fetchInterval > 0 && s.fetcher != nil {
		g.Go(func() error {
			s.log.Info("fetch scheduler started", "interval", s.fetchInterval)
			return s.tick(ctx, s.fetchInterval, s.fetchOnce)
		})
	}
}

// Wait blocks until every scheduler has stopped. Context cancellation is the
// normal shutdown path, not an error.
func (s *Schedulers) Wait() error {
	if s.group == nil {
		return nil
	}
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Schedulers) tick(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Schedulers) runOnce(ctx context.Context) {
	if _, err := s.orchestrator.Run(ctx, RunOptions{}); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.log.Debug("scheduled run dropped, pipeline busy")
			return
		}
		s.log.Error("scheduled run failed", "error", err)
	}
}

func (s *Schedulers) fetchOnce(ctx context.Context) {
	path, err := s.fetcher.FetchLatest(ctx)
	if err != nil {
		if errors.Is(err, fetch.ErrRateLimited) {
			s.log.Warn("upstream rate limited, skipping cycle")
			return
		}
		s.log.Error("scheduled fetch failed", "error", err)
		return
	}
	s.log.Info("scheduled fetch saved", "path", path)
	s.runOnce(ctx)
}
