// Package events publishes analysis lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/domain"
)

// EventTypeAnalysisCompleted is emitted after a batch has been interpreted.
const EventTypeAnalysisCompleted = "genotype.analysis.completed"

// AnalysisCompleted summarises a finished batch. Report content is not included; consumers
// fetch it from the history API by AnalysisID.
type AnalysisCompleted struct {
	AnalysisID      string            `json:"analysis_id,omitempty"`
	Source          string            `json:"source"`
	CorrelationID   string            `json:"correlation_id,omitempty"`
	Fingerprint     string            `json:"reference_fingerprint"`
	Stats           domain.BatchStats `json:"stats"`
	HighRiskDomains []string          `json:"high_risk_domains,omitempty"`
}

// NewAnalysisCompleted builds the event for result.
func NewAnalysisCompleted(analysisID, source, fingerprint string, result *domain.BatchResult) AnalysisCompleted {
	evt := AnalysisCompleted{
		AnalysisID:  analysisID,
		Source:      source,
		Fingerprint: fingerprint,
		Stats:       result.Stats,
	}
	seen := map[string]bool{}
	for _, r := range result.Reports {
		if r.HealthRisk != nil && r.HealthRisk.Level == domain.RISK_HIGH && !seen[r.HealthRisk.Domain] {
			seen[r.HealthRisk.Domain] = true
			evt.HighRiskDomains = append(evt.HighRiskDomains, r.HealthRisk.Domain)
		}
	}
	return evt
}

// Envelope is the JSON message written to the topic.
type Envelope struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Data      AnalysisCompleted `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher emits analysis events.
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, evt AnalysisCompleted) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishAnalysisCompleted(context.Context, AnalysisCompleted) error { return nil }
func (NopPublisher) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewKafkaPublisher creates a synchronous publisher for cfg.Topic.
func NewKafkaPublisher(cfg domain.EventsConfig, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, cfg.Topic, cfg.WriteTimeout, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, timeout time.Duration, logger *logrus.Logger) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaPublisher{writer: w, topic: topic, timeout: timeout, logger: logger}
}

// PublishAnalysisCompleted implements Publisher.
func (p *KafkaPublisher) PublishAnalysisCompleted(ctx context.Context, evt AnalysisCompleted) error {
	envelope := Envelope{
		ID:        uuid.New().String(),
		Type:      EventTypeAnalysisCompleted,
		Source:    evt.Source,
		Data:      evt,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(envelope.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(envelope.Type)},
			{Key: "source", Value: []byte(evt.Source)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":   envelope.ID,
			"event_type": envelope.Type,
		}).Error("Failed to publish event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id":    envelope.ID,
		"event_type":  envelope.Type,
		"topic":       p.topic,
		"analysis_id": evt.AnalysisID,
	}).Debug("Event published")
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
