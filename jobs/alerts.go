package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

// EventTrialBalanceImbalanced is the event type carried by imbalance alerts.
const EventTrialBalanceImbalanced = "books.trial_balance.imbalanced"

// ImbalanceAlert is published when an integrity check finds the books out of balance.
type ImbalanceAlert struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	TotalDebit     string    `json:"total_debit"`
	TotalCredit    string    `json:"total_credit"`
	Difference     string    `json:"difference"`
	UnknownLedgers []int64   `json:"unknown_ledgers,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// NewImbalanceAlert builds the alert event for a trial balance result.
func NewImbalanceAlert(result books.TrialBalanceResult, unknown []int64, at time.Time) ImbalanceAlert {
	return ImbalanceAlert{
		ID:             uuid.NewString(),
		Type:           EventTrialBalanceImbalanced,
		TotalDebit:     result.TotalDebit.StringFixed(2),
		TotalCredit:    result.TotalCredit.StringFixed(2),
		Difference:     result.Difference.StringFixed(2),
		UnknownLedgers: unknown,
		CheckedAt:      at.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alerts to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher constructs a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka publisher: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: topic required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// PublishImbalance serialises the alert and writes it keyed by alert id.
func (p *KafkaPublisher) PublishImbalance(ctx context.Context, alert ImbalanceAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(alert.Type)},
		},
		Time: alert.CheckedAt,
	})
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
