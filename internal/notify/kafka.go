package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events keyed by user id so one user's events keep
// their order within a partition.
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaWriter builds an async writer: WriteMessages returns without
// waiting for broker acks and failures are reported through Completion.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(msgs)).Msg("notify: kafka delivery failed")
			}
		},
	}
}

func NewKafkaNotifier(w MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func (k *KafkaNotifier) Notify(ctx context.Context, userID uuid.UUID, e Event) error {
	payload, err := json.Marshal(struct {
		UserID uuid.UUID `json:"user_id"`
		Event
	}{UserID: userID, Event: e})
	if err != nil {
		return fmt.Errorf("notify: failed to encode event %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(userID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: failed to publish event %s: %w", e.Type, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
