// Package events publishes dependency scan results to Kafka.
package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/ortelius/pdvd-depscan/model"
)

// DefaultTopic is used when no topic is configured
const DefaultTopic = "dependency-scan-events"

// ScanCompletedEventType is the event_type of every scan event
const ScanCompletedEventType = "dependency.scan.completed"

// Publisher sends scan results somewhere
type Publisher interface {
	PublishScanCompleted(ctx context.Context, summary model.ScanSummary, outcomes []model.DependencyOutcome) error
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

// PublishScanCompleted does nothing
func (NopPublisher) PublishScanCompleted(context.Context, model.ScanSummary, []model.DependencyOutcome) error {
	return nil
}

// Close does nothing
func (NopPublisher) Close() error { return nil }

// Config holds the Kafka producer settings. SASL/TLS is enabled when both credentials are set.
type Config struct {
	Brokers   []string
	Topic     string
	APIKey    string
	APISecret string
}

// MessageWriter is the subset of kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles sending scan events to Kafka
type Producer struct {
	Writer MessageWriter
	now    func() time.Time
}

// Ensure compile-time interface check
var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = NopPublisher{}
)

// NewProducer initializes a new Kafka writer for scan events
func NewProducer(cfg Config) *Producer {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
	}

	// Only configure SASL/TLS if credentials are provided
	if cfg.APIKey != "" && cfg.APISecret != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.APIKey, Password: cfg.APISecret},
			TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	return &Producer{Writer: writer, now: time.Now}
}

// NewPublisher returns a Producer when brokers are configured and a NopPublisher otherwise
func NewPublisher(cfg Config) Publisher {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewProducer(cfg)
}

// PublishScanCompleted sends one event describing a finished scan
func (p *Producer) PublishScanCompleted(ctx context.Context, summary model.ScanSummary, outcomes []model.DependencyOutcome) error {
	event := model.ScanCompletedEvent{
		EventType:     ScanCompletedEventType,
		EventID:       uuid.New().String(),
		EventTime:     p.now().UTC(),
		SchemaVersion: "v1",
		Summary:       summary,
		Dependencies:  outcomes,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal scan event: %w", err)
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish scan event: %w", err)
	}
	return nil
}

// Close cleans up the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}
