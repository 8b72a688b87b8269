// Package settlement sequences the inventory, order, complaint and wallet
// components inside one transaction per command.
package settlement

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/rewards"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

type Service interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error)
	ApproveOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)
	ConfirmReceived(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)
	CompleteOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)

	FileComplaint(ctx context.Context, in FileComplaintInput) (*complaint.Complaint, error)
	RespondComplaint(ctx context.Context, in RespondComplaintInput) (*complaint.Complaint, error)
	SubmitReturnShipment(ctx context.Context, complaintID uuid.UUID, by actor.Actor, shipment complaint.ReturnShipment) (*complaint.Complaint, error)
	ConfirmReturnReceived(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error)
	EscalateComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error)
	CancelComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error)
	ResolveComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor, resolution complaint.Resolution, notes string) (*complaint.Complaint, error)

	RequestWithdraw(ctx context.Context, sellerID uuid.UUID, amount money.Money, by actor.Actor) (*wallet.WithdrawRequest, error)
	ApproveWithdraw(ctx context.Context, requestID uuid.UUID, by actor.Actor) (*wallet.WithdrawRequest, error)
	RejectWithdraw(ctx context.Context, requestID uuid.UUID, by actor.Actor, note string) (*wallet.WithdrawRequest, error)
	ReleasePending(ctx context.Context, sellerID uuid.UUID, amount money.Money, by actor.Actor) (*wallet.Wallet, error)
	Deposit(ctx context.Context, sellerID uuid.UUID, amount money.Money, by actor.Actor, note string) (*wallet.Wallet, error)

	// Reads admit an admin or a party to the record, and fail with
	// apperr.ErrPermissionDenied otherwise.
	GetOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)
	ListComplaints(ctx context.Context, orderID uuid.UUID, by actor.Actor) ([]complaint.Complaint, error)
	GetComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error)
	GetWallet(ctx context.Context, sellerID uuid.UUID, by actor.Actor) (*wallet.Wallet, error)
	GetWithdrawRequest(ctx context.Context, requestID uuid.UUID, by actor.Actor) (*wallet.WithdrawRequest, error)
	BuyerBalance(ctx context.Context, buyerID uuid.UUID) (money.Money, error)

	// AutoApprovePending is the timer-driven sweep over stale pending orders.
	AutoApprovePending(ctx context.Context, now time.Time) (SweepResult, error)
}

type Config struct {
	Wallet wallet.Config
	// AllowRefundWithoutReturn lets a seller accept a complaint and refund
	// immediately, skipping the return step.
	AllowRefundWithoutReturn bool
	// ReturnReviewByAdmin sends a confirmed return to admin_review instead of
	// refunding straight away.
	ReturnReviewByAdmin bool
	AutoApproveAfter    time.Duration
	AutoCancelAfter     time.Duration
	// SweepBatchSize is the page size of one pending-queue read.
	SweepBatchSize int
}

func DefaultConfig() Config {
	return Config{
		Wallet:                   wallet.DefaultConfig(),
		AllowRefundWithoutReturn: true,
		AutoApproveAfter:         10 * time.Minute,
		AutoCancelAfter:          24 * time.Hour,
		SweepBatchSize:           100,
	}
}

type service struct {
	runner   TxRunner
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(runner TxRunner, notifier notify.Notifier, cfg Config) Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	return &service{
		runner:   runner,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type notice struct {
	userID uuid.UUID
	event  notify.Event
}

// txn is the per-command view of one open transaction. Notices queued on it
// are delivered only after commit.
type txn struct {
	Repos
	svc     *service
	notices []notice
}

func (t *txn) notify(userID uuid.UUID, e notify.Event) {
	if userID == uuid.Nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = t.svc.now()
	}
	t.notices = append(t.notices, notice{userID: userID, event: e})
}

func (t *txn) stock() *inventory.Ledger {
	return inventory.NewLedger(t.Products, t.Orders)
}

func (t *txn) ledger() *wallet.Ledger {
	return wallet.NewLedger(t.Wallets, t.svc.cfg.Wallet)
}

func (t *txn) rewards() *rewards.Book {
	return rewards.NewBook(t.Rewards)
}

func (s *service) inTx(ctx context.Context, fn func(ctx context.Context, t *txn) error) error {
	var notices []notice
	err := s.runner.InTx(ctx, func(ctx context.Context, r Repos) error {
		t := &txn{Repos: r, svc: s}
		if err := fn(ctx, t); err != nil {
			return err
		}
		notices = t.notices
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatch(ctx, notices)
	return nil
}

// dispatch runs after commit; a delivery failure is logged and dropped.
func (s *service) dispatch(ctx context.Context, notices []notice) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n.userID, n.event); err != nil {
			log.Warn().Err(err).Stringer("user_id", n.userID).Str("event", string(n.event.Type)).
				Msg("settlement: notification failed")
		}
	}
}
