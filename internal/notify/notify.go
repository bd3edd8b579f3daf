package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
)

const (
	DefaultTopic      = "order_item_events"
	EventStatusChange = "item_status_changed"
)

// Notifier receives committed status changes. Implementations must not
// block the caller for long; failures are reported, never retried here.
type Notifier interface {
	StatusChanged(ctx context.Context, ev models.StatusChange) error
}

// Writer is the part of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type message struct {
	Type string `json:"type"`
	models.StatusChange
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// StatusChanged publishes ev keyed by order id so one order's events stay
// on one partition.
func (p *KafkaPublisher) StatusChanged(ctx context.Context, ev models.StatusChange) error {
	b, err := json.Marshal(message{Type: EventStatusChange, StatusChange: ev})
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.OrderID.String()),
		Value: b,
		Time:  ev.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type Nop struct{}

func (Nop) StatusChanged(context.Context, models.StatusChange) error { return nil }
