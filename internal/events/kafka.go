package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic suffixes under the configured prefix.
const (
	topicRuns   = "pipeline.runs"
	topicAlerts = "alerts"
)

// KafkaPublisher produces JSON events via franz-go. Run events key on the
// run ID so one run's transitions stay ordered; alerts key on severity so a
// consumer can partition by urgency.
type KafkaPublisher struct {
	client *kgo.Client
	prefix string
	log    *slog.Logger
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithKafkaLogger overrides the default logger.
func WithKafkaLogger(log *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		if log != nil {
			p.log = log
		}
	}
}

// NewKafkaPublisher connects to the brokers. The prefix namespaces topics so
// several environments can share a cluster.
func NewKafkaPublisher(brokers []string, prefix string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: at least one broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect kafka: %w", err)
	}

	p := &KafkaPublisher{client: client, prefix: prefix, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopics creates the run and alert topics when missing. Best-effort:
// clusters with auto-create or locked-down admin APIs both keep working.
func (p *KafkaPublisher) EnsureTopics(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	_, err := adm.CreateTopics(ctx, 1, 1, nil, p.topic(topicRuns), p.topic(topicAlerts))
	if err != nil {
		p.log.Warn("ensure topics failed", "error", err)
		return fmt.Errorf("events: ensure topics: %w", err)
	}
	return nil
}

// PublishRun emits one run transition.
func (p *KafkaPublisher) PublishRun(ctx context.Context, ev RunEvent) error {
	return p.produce(ctx, p.topic(topicRuns), ev.RunID, ev)
}

// PublishAlert emits one grouped alert.
func (p *KafkaPublisher) PublishAlert(ctx context.Context, ev AlertEvent) error {
	return p.produce(ctx, p.topic(topicAlerts), string(ev.Severity), ev)
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func (p *KafkaPublisher) produce(ctx context.Context, topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.log.Warn("event publish failed", "topic", topic, "error", err)
		return fmt.Errorf("events: produce %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}
