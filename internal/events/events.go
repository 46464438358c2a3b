// Package events publishes pipeline run transitions and high-severity alert
// groups to Kafka. Publishing is strictly best-effort: the pipeline never
// fails because a broker is down, and deployments without brokers get a noop
// publisher.
package events

import (
	"context"
	"time"

	"fluxmap/internal/domain"
)

// RunEvent marks a pipeline run transition.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"` // run_started | run_completed | run_failed
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// AlertEvent carries one grouped anomaly finding.
type AlertEvent struct {
	RunID           string             `json:"run_id"`
	Severity        domain.Severity    `json:"severity"`
	AnomalyType     domain.AnomalyType `json:"anomaly_type"`
	AffectedRegions []domain.GeoKey    `json:"affected_regions"`
	Count           int                `json:"count"`
	Message         string             `json:"message"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Publisher emits run and alert events. Implementations log and swallow
// broker failures; callers treat a returned error as diagnostic only.
type Publisher interface {
	PublishRun(ctx context.Context, ev RunEvent) error
	PublishAlert(ctx context.Context, ev AlertEvent) error
	Close()
}

// NoopPublisher drops every event; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishRun(context.Context, RunEvent) error     { return nil }
func (NoopPublisher) PublishAlert(context.Context, AlertEvent) error { return nil }
func (NoopPublisher) Close()                                         {}
