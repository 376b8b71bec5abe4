package stream

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-pix/app/factory"
)

const (
	EventPaymentCreated = "payment_created"
	EventPaymentPaid    = "payment_paid"
	EventPaymentExpired = "payment_expired"
)

// Event is the message published for downstream collaborators (email
// notification, analytics warehouse) on payment lifecycle transitions.
type Event struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	TotalCents int64     `json:"total_cents"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   logrus.FieldLogger
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   factory.NewModuleLogger("pix-stream"),
	}, nil
}

// Publish emits one lifecycle event keyed by payment id, so all events for a
// payment land on the same partition in order.
func (p *Producer) Publish(event Event) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PaymentID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"payment_id": event.PaymentID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("payment event published")

	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
