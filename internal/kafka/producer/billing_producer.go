package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

const (
	TopicSubscriptionActivated = "subscription.activated"
	TopicPaymentStatusChanged  = "payment.status_changed"
	TopicScanRecorded          = "scan.recorded"
	TopicKeyIssuanceFailed     = "apikey.issuance_failed"
)

// BillingEvent is the envelope for every billing topic
type BillingEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BillingProducer publishes billing events. It doubles as the observable
// side channel for soft failures: paths that log-and-continue also emit
// an event here so they can be asserted on in tests.
type BillingProducer interface {
	PublishSubscriptionActivated(ctx context.Context, userID, orderID string, expiresAt time.Time) error
	PublishPaymentStatusChanged(ctx context.Context, orderID, userID string, status domain.PaymentStatus) error
	PublishScanRecorded(ctx context.Context, userID string, newCount int) error
	PublishKeyIssuanceFailed(ctx context.Context, userID, detail string) error
	Close() error
}

type kafkaBillingProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaBillingProducer creates a new billing event producer
func NewKafkaBillingProducer(producer sarama.SyncProducer, log *logger.Logger) BillingProducer {
	return &kafkaBillingProducer{
		producer: producer,
		log:      log,
	}
}

// PublishSubscriptionActivated publishes a subscription activation event
func (p *kafkaBillingProducer) PublishSubscriptionActivated(ctx context.Context, userID, orderID string, expiresAt time.Time) error {
	return p.publishEvent(TopicSubscriptionActivated, userID, BillingEvent{
		UserID:  userID,
		OrderID: orderID,
		Tier:    string(domain.TierPro),
		Detail:  expiresAt.Format(time.RFC3339),
	})
}

// PublishPaymentStatusChanged publishes a payment status transition event
func (p *kafkaBillingProducer) PublishPaymentStatusChanged(ctx context.Context, orderID, userID string, status domain.PaymentStatus) error {
	return p.publishEvent(TopicPaymentStatusChanged, orderID, BillingEvent{
		UserID:  userID,
		OrderID: orderID,
		Status:  string(status),
	})
}

// PublishScanRecorded publishes a scan usage event
func (p *kafkaBillingProducer) PublishScanRecorded(ctx context.Context, userID string, newCount int) error {
	return p.publishEvent(TopicScanRecorded, userID, BillingEvent{
		UserID: userID,
		Detail: fmt.Sprintf("count=%d", newCount),
	})
}

// PublishKeyIssuanceFailed publishes a soft-failure event for a key
// issuance that did not complete
func (p *kafkaBillingProducer) PublishKeyIssuanceFailed(ctx context.Context, userID, detail string) error {
	return p.publishEvent(TopicKeyIssuanceFailed, userID, BillingEvent{
		UserID: userID,
		Detail: detail,
	})
}

// publishEvent marshals and sends one event. The key keeps events for one
// user or order in a single partition, preserving their order.
func (p *kafkaBillingProducer) publishEvent(topic, key string, event BillingEvent) error {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal billing event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish billing event: %w", err)
	}

	p.log.Debugw("Published billing event", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

// Close closes the underlying producer
func (p *kafkaBillingProducer) Close() error {
	return p.producer.Close()
}

// NoOpBillingProducer discards events; used when Kafka is disabled or
// unreachable so event publishing never blocks the request path.
type NoOpBillingProducer struct{}

func (NoOpBillingProducer) PublishSubscriptionActivated(context.Context, string, string, time.Time) error {
	return nil
}

func (NoOpBillingProducer) PublishPaymentStatusChanged(context.Context, string, string, domain.PaymentStatus) error {
	return nil
}

func (NoOpBillingProducer) PublishScanRecorded(context.Context, string, int) error { return nil }

func (NoOpBillingProducer) PublishKeyIssuanceFailed(context.Context, string, string) error {
	return nil
}

func (NoOpBillingProducer) Close() error { return nil }
