// Package kafka publishes analytics records to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"

	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	DefaultEventsTopic   = "analytics_events"
	DefaultSessionsTopic = "streaming_sessions"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

type Config struct {
	Brokers       []string
	ClientID      string
	EventsTopic   string
	SessionsTopic string
}

// NewProducer builds a franz-go client tuned for small, frequent records.
func NewProducer(cfg Config) (*kgo.Client, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "splitstream"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// AnalyticsSink keys every record by session id so one session's records
// stay on one partition and keep their order. A redelivered event carries the
// same event_id header; summaries are unique per session_id.
type AnalyticsSink struct {
	producer      Producer
	eventsTopic   string
	sessionsTopic string
}

var _ ports.AnalyticsSink = (*AnalyticsSink)(nil)

func NewAnalyticsSink(producer Producer, cfg Config) *AnalyticsSink {
	s := &AnalyticsSink{
		producer:      producer,
		eventsTopic:   cfg.EventsTopic,
		sessionsTopic: cfg.SessionsTopic,
	}
	if s.eventsTopic == "" {
		s.eventsTopic = DefaultEventsTopic
	}
	if s.sessionsTopic == "" {
		s.sessionsTopic = DefaultSessionsTopic
	}
	return s
}

func (s *AnalyticsSink) AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return s.produce(ctx, &kgo.Record{
		Topic: s.eventsTopic,
		Key:   []byte(event.SessionID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "session_id", Value: []byte(event.SessionID)},
		},
		Timestamp: event.EmittedAt,
	})
}

func (s *AnalyticsSink) AppendSummary(ctx context.Context, summary domain.SessionSummary) error {
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}

	return s.produce(ctx, &kgo.Record{
		Topic: s.sessionsTopic,
		Key:   []byte(summary.SessionID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "session_id", Value: []byte(summary.SessionID)},
		},
		Timestamp: summary.EndedAt,
	})
}

func (s *AnalyticsSink) HealthCheck(ctx context.Context) error {
	if err := s.producer.Ping(ctx); err != nil {
		return fmt.Errorf("kafka health check failed: %w", err)
	}
	return nil
}

func (s *AnalyticsSink) Close() {
	s.producer.Close()
}

func (s *AnalyticsSink) produce(ctx context.Context, record *kgo.Record) error {
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", record.Topic, err)
	}
	return nil
}
