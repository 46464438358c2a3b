// Package httptransport is the thin HTTP layer over the pipeline and its
// persisted snapshots. Handlers decode, delegate, and encode; all analytics
// endpoints read the snapshots written by the last completed run, never live
// engine state, so responses stay mutually consistent.
package httptransport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fluxmap/internal/analytics"
	"fluxmap/internal/auth"
	"fluxmap/internal/dataset"
	"fluxmap/internal/fetch"
	"fluxmap/internal/ingest"
	"fluxmap/internal/insight"
	"fluxmap/internal/ledger"
	"fluxmap/internal/pipeline"
	"fluxmap/internal/platform/metrics"
	"fluxmap/internal/seasonal"
	"fluxmap/internal/spatial"
)

// Deps are the transport layer's collaborators. Orchestrator, Store, Ledger
// and Ingestor are required. Fetcher nil disables the fetch endpoint; Guard
// nil leaves the admin endpoints unauthenticated, which Validate-time config
// checks reserve for local development.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Store        dataset.Store
	Ledger       ledger.Ledger
	Ingestor     *ingest.Ingestor
	Fetcher      *fetch.Client
	Guard        *auth.Guard
}

// Handlers serves the API. Derived analyses that are not persisted as
// snapshots (spatial, seasonality, supplements) are recomputed per request
// from the persisted inputs.
type Handlers struct {
	deps Deps

	analytics *analytics.Engine
	spatial   *spatial.Engine
	seasonal  *seasonal.Engine
	insight   *insight.Engine

	log         *slog.Logger
	httpMetrics *metrics.HTTP
}

// Option configures Handlers.
type Option func(*Handlers)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handlers) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHTTPMetrics wires request-level Prometheus instruments.
func WithHTTPMetrics(m *metrics.HTTP) Option {
	return func(h *Handlers) { h.httpMetrics = m }
}

// NewHandlers validates dependencies and builds the handler set.
func NewHandlers(deps Deps, opts ...Option) (*Handlers, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("httptransport: orchestrator is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("httptransport: store is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("httptransport: ledger is required")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("httptransport: ingestor is required")
	}

	h := &Handlers{
		deps: deps,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.analytics = analytics.NewEngine(analytics.WithLogger(h.log))
	h.spatial = spatial.NewEngine(spatial.WithLogger(h.log))
	h.seasonal = seasonal.NewEngine(seasonal.WithLogger(h.log))
	h.insight = insight.NewEngine(insight.WithLogger(h.log))
	return h, nil
}

// NewRouter mounts every endpoint with the shared middleware chain.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestID)
	r.Use(h.clientMetadata)
	r.Use(h.recoverer)
	r.Use(h.observe)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/pipeline/run", h.handlePipelineRun)
		r.Get("/pipeline/status", h.handlePipelineStatus)

		r.Get("/data/status", h.handleDataStatus)
		r.Method(http.MethodPost, "/data/upload", h.adminOrKey(h.handleDataUpload))
		r.Method(http.MethodPost, "/data/fetch", h.admin(h.handleDataFetch))

		r.Method(http.MethodPost, "/system/reset", h.admin(h.handleSystemReset))

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/mvi", h.handleMVI)
			r.Get("/mvi/summary", h.handleMVISummary)
			r.Get("/timeseries", h.handleTimeseries)
			r.Get("/anomalies", h.handleAnomalies)
			r.Get("/alerts", h.handleAlerts)
			r.Get("/typology", h.handleTypology)
			r.Get("/acceleration", h.handleAcceleration)
			r.Get("/spatial", h.handleSpatial)
			r.Get("/seasonality", h.handleSeasonality)
			r.Get("/compare", h.handleCompare)
			r.Get("/forecast", h.handleForecast)
			r.Get("/correlation", h.handleCorrelation)
			r.Get("/nomads", h.handleNomads)
			r.Get("/hidden", h.handleHidden)
		})

		r.Get("/policy/recommendations", h.handlePolicyRecommendations)
		r.Post("/policy/simulate", h.handlePolicySimulate)

		r.Get("/insights/zones", h.handleInsightZones)
		r.Get("/insights/executive", h.handleInsightExecutive)

		r.Get("/trust/lineage", h.handleTrustLineage)
		r.Get("/trust/quality", h.handleTrustQuality)
	})

	return r
}

// admin wraps a handler with the bearer-token guard when one is configured.
func (h *Handlers) admin(next http.HandlerFunc) http.Handler {
	if h.deps.Guard == nil {
		return next
	}
	return h.deps.Guard.RequireAdmin(next)
}

func (h *Handlers) adminOrKey(next http.HandlerFunc) http.Handler {
	if h.deps.Guard == nil {
		return next
	}
	return h.deps.Guard.RequireAdminOrKey(next)
}
