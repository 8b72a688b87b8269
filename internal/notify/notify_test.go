package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifier_Notify(t *testing.T) {
	writer := &fakeWriter{}
	n := notify.NewKafkaNotifier(writer)
	userID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	err := n.Notify(context.Background(), userID, notify.Event{
		Type:       notify.EventOrderStatusChanged,
		OrderID:    orderID,
		From:       "pending",
		To:         "shipping",
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, userID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "order.status_changed", string(msg.Headers[0].Value))

	var decoded struct {
		UserID uuid.UUID `json:"user_id"`
		notify.Event
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, userID, decoded.UserID)
	assert.Equal(t, orderID, decoded.OrderID)
	assert.Equal(t, "shipping", decoded.To)
	assert.True(t, at.Equal(decoded.OccurredAt))

	require.NoError(t, n.Close())
	assert.True(t, writer.closed)
}

func TestKafkaNotifier_WriteFailure(t *testing.T) {
	n := notify.NewKafkaNotifier(&fakeWriter{err: kafka.LeaderNotAvailable})
	err := n.Notify(context.Background(), uuid.Must(uuid.NewV4()), notify.Event{Type: notify.EventRefundIssued})
	assert.ErrorIs(t, err, kafka.LeaderNotAvailable)
}

func TestMulti_JoinsErrors(t *testing.T) {
	var delivered []notify.EventType
	ok := notify.NotifierFunc(func(_ context.Context, _ uuid.UUID, e notify.Event) error {
		delivered = append(delivered, e.Type)
		return nil
	})
	boom := errors.New("boom")
	failing := notify.NotifierFunc(func(context.Context, uuid.UUID, notify.Event) error { return boom })

	m := notify.Multi{failing, ok, notify.LogNotifier{}}
	err := m.Notify(context.Background(), uuid.Must(uuid.NewV4()), notify.Event{Type: notify.EventComplaintFiled})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []notify.EventType{notify.EventComplaintFiled}, delivered, "a failing notifier must not stop the others")

	assert.NoError(t, notify.Multi{}.Notify(context.Background(), uuid.Nil, notify.Event{}))
}
