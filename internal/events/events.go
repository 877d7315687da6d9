// Package events publishes ledger events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"treasurer/internal/logger"
)

// TopicPaymentAllocated is the default topic for allocation results.
const TopicPaymentAllocated = "payment.allocated"

// PaymentAllocated describes a completed allocation.
type PaymentAllocated struct {
	TransactionID string    `json:"transaction_id"`
	CorrelationID string    `json:"correlation_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	Periods       []string  `json:"periods"`
	DebtID        string    `json:"debt_id,omitempty"`
	DebtAmount    int64     `json:"debt_amount,omitempty"`
	Remainder     int64     `json:"remainder"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Encode returns the JSON wire form of the event.
func (e PaymentAllocated) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends one keyed message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// KafkaPublisher publishes through a sarama SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaPublisher connects a synchronous producer that waits for all
// in-sync replicas.
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisherWithProducer(producer), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish implements Publisher. Messages with the same key (the user id)
// land on the same partition, keeping a member's events ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return err
	}
	logger.Get().Debugw("published event", "topic", topic, "key", key, "partition", partition, "offset", offset)
	return nil
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher logs events instead of sending them; used when no brokers are
// configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	logger.Get().Infow("event (kafka disabled)", "topic", topic, "key", key, "payload", string(payload))
	return nil
}

// Close implements Publisher.
func (LogPublisher) Close() error { return nil }
