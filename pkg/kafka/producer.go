package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes engine events to a single topic.
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// AuditEvent is the wire form of an audit entry.
type AuditEvent struct {
	EventID    string         `json:"event_id"`
	Action     string         `json:"action"`
	TenantID   string         `json:"tenant_id"`
	UserID     string         `json:"user_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewAuditEvent(entry *models.AuditEntry) *AuditEvent {
	return &AuditEvent{
		EventID:    entry.ID,
		Action:     string(entry.Action),
		TenantID:   entry.TenantID,
		UserID:     entry.UserID,
		EntityType: string(entry.EntityType),
		EntityID:   entry.EntityID,
		Before:     entry.Before,
		After:      entry.After,
		Timestamp:  entry.CreatedAt,
	}
}

// Log publishes entry to the audit topic.
func (p *Producer) Log(ctx context.Context, entry *models.AuditEntry) error {
	return p.PublishAuditEvent(ctx, NewAuditEvent(entry))
}

// PublishAuditEvent publishes event keyed by the entity id so one entity's history stays ordered.
func (p *Producer) PublishAuditEvent(ctx context.Context, event *AuditEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishAuditEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
			{Key: "entity_type", Value: []byte(event.EntityType)},
		},
	}
	if traceParent := tracing.GetTraceParent(ctx); traceParent != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "traceparent", Value: []byte(traceParent)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		tracing.RecordError(span, err)
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish audit event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"action":      event.Action,
		"entity_id":   event.EntityID,
		"entity_type": event.EntityType,
	}).Debug("Published audit event")

	return nil
}
