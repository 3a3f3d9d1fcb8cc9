package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// messageWriter is the part of *kafka.Writer the producers use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func writeJSON(ctx context.Context, w messageWriter, key string, headers []kafka.Header, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
	})
}

// EmailProducer hands email requests to the notification service.
type EmailProducer struct {
	writer messageWriter
}

func NewEmailProducer(brokers []string, topic string) *EmailProducer {
	return &EmailProducer{writer: newWriter(brokers, topic)}
}

type EmailMessage struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

func (p *EmailProducer) SendEmail(ctx context.Context, key string, msg EmailMessage) error {
	return writeJSON(ctx, p.writer, key, nil, msg)
}

func (p *EmailProducer) Close() error {
	return p.writer.Close()
}

// OrderEventProducer publishes order lifecycle events keyed by order number,
// so all events of one order land in the same partition in commit order.
type OrderEventProducer struct {
	writer messageWriter
}

func NewOrderEventProducer(brokers []string, topic string) *OrderEventProducer {
	return &OrderEventProducer{writer: newWriter(brokers, topic)}
}

func (p *OrderEventProducer) PublishOrderCreated(ctx context.Context, e OrderCreatedEvent) error {
	return writeJSON(ctx, p.writer, e.OrderNumber, eventHeaders(EventOrderCreated), e)
}

func (p *OrderEventProducer) PublishOrderStatusChanged(ctx context.Context, e OrderStatusChangedEvent) error {
	return writeJSON(ctx, p.writer, e.OrderNumber, eventHeaders(EventOrderStatusChanged), e)
}

func (p *OrderEventProducer) PublishPaymentStatusChanged(ctx context.Context, e PaymentStatusChangedEvent) error {
	return writeJSON(ctx, p.writer, e.OrderNumber, eventHeaders(EventPaymentStatusChanged), e)
}

func (p *OrderEventProducer) Close() error {
	return p.writer.Close()
}

func eventHeaders(eventType string) []kafka.Header {
	return []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
}
