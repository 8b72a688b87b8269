// Package notify delivers settlement events to users. Delivery is best
// effort: callers log failures and never roll anything back because of them.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventOrderCreated           EventType = "order.created"
	EventOrderStatusChanged     EventType = "order.status_changed"
	EventComplaintFiled         EventType = "complaint.filed"
	EventComplaintStatusChanged EventType = "complaint.status_changed"
	EventIncomeAccrued          EventType = "wallet.income_accrued"
	EventPendingReleased        EventType = "wallet.pending_released"
	EventRefundIssued           EventType = "wallet.refund_issued"
	EventWithdrawProcessed      EventType = "wallet.withdraw_processed"
)

type Event struct {
	Type        EventType `json:"type"`
	OrderID     uuid.UUID `json:"order_id,omitempty"`
	ComplaintID uuid.UUID `json:"complaint_id,omitempty"`
	RequestID   uuid.UUID `json:"request_id,omitempty"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Message     string    `json:"message,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, e Event) error
}

// LogNotifier writes events to the service log. It is the default transport
// when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID uuid.UUID, e Event) error {
	log.Info().
		Stringer("user_id", userID).
		Str("event", string(e.Type)).
		Stringer("order_id", e.OrderID).
		Str("from", e.From).
		Str("to", e.To).
		Msg("notify: event")
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID uuid.UUID, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID uuid.UUID, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, userID uuid.UUID, e Event) error {
	return f(ctx, userID, e)
}
