package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vms-inventory/internal/config"
	"vms-inventory/internal/domain"
)

// OrderStatusChanged is published after a transition commits
type OrderStatusChanged struct {
	EventID    uuid.UUID          `json:"eventID"`
	OrderID    int64              `json:"orderID"`
	FromStatus domain.OrderStatus `json:"fromStatus"`
	ToStatus   domain.OrderStatus `json:"toStatus"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// Publisher announces committed order status changes
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event OrderStatusChanged) error
	Close() error
}

// MessageProducer is the subset of a Kafka writer the publisher needs
type MessageProducer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id so one order's events stay ordered
type KafkaPublisher struct {
	producer MessageProducer
	logger   *zap.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured and a no-op one otherwise
func NewPublisher(cfg config.KafkaConfig, serviceName string, tp trace.TracerProvider, logger *zap.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, order events disabled")
		return NopPublisher{}, nil
	}

	baseWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(cfg.Topic),
				attribute.String("messaging.kafka.client_id", serviceName),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}

	return NewKafkaPublisher(writer, logger), nil
}

// NewKafkaPublisher wraps an existing producer
func NewKafkaPublisher(producer MessageProducer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, event OrderStatusChanged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.EventID.String())},
			{Key: "event-type", Value: []byte("OrderStatusChanged")},
		},
	}

	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	p.logger.Debug("Published order event",
		zap.Int64("order_id", event.OrderID),
		zap.String("to_status", string(event.ToStatus)),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishStatusChanged(context.Context, OrderStatusChanged) error { return nil }

func (NopPublisher) Close() error { return nil }
