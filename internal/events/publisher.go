package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	TopicTransactionSubmitted = "fees.transaction.submitted"
	TopicTransactionDecided   = "fees.transaction.decided"
	TopicComplaintSubmitted   = "fees.complaint.submitted"
	TopicComplaintResponded   = "fees.complaint.responded"
)

type TransactionSubmitted struct {
	TransactionRef string    `json:"transaction_ref"`
	RollNumber     string    `json:"roll_number"`
	Amount         string    `json:"amount"`
	FeeType        string    `json:"fee_type"`
	AcademicYear   string    `json:"academic_year"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type TransactionDecided struct {
	TransactionRef string    `json:"transaction_ref"`
	RollNumber     string    `json:"roll_number"`
	Status         string    `json:"status"`
	Amount         string    `json:"amount"`
	ReviewerID     string    `json:"reviewer_id"`
	PaidAmount     string    `json:"paid_amount,omitempty"`
	PendingAmount  string    `json:"pending_amount,omitempty"`
	DecidedAt      time.Time `json:"decided_at"`
}

type ComplaintEvent struct {
	ComplaintRef string    `json:"complaint_ref"`
	RollNumber   string    `json:"roll_number"`
	Status       string    `json:"status"`
	At           time.Time `json:"at"`
}

// Publisher delivers domain events after the change they describe has
// been committed.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	log      *zap.Logger
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string, log *zap.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, log), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s event: %w", topic, err)
	}

	p.log.Debug("event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
