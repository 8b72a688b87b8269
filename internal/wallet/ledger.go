// Package wallet implements the seller wallet ledger. Every balance change
// is paired with exactly one appended Transaction so that
// balance + pending_balance always equals the signed transaction sum.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
)

type Config struct {
	// SellerShare is the fraction of the gross line total credited to the seller.
	SellerShare     decimal.Decimal
	MinimumWithdraw money.Money
	// RecordPlatformFee books accruals as gross pending_income plus a negative
	// platform_fee entry instead of a single net entry.
	RecordPlatformFee bool
}

func DefaultConfig() Config {
	return Config{
		SellerShare:     decimal.RequireFromString("0.90"),
		MinimumWithdraw: money.MustParse("10.00"),
	}
}

// Ledger must be built from a Repository bound to the caller's transaction.
type Ledger struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

func NewLedger(repo Repository, cfg Config) *Ledger {
	return &Ledger{repo: repo, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// AccruePendingIncome credits each seller of o with their share of the
// seller's line totals. A seller that already holds a pending_income entry
// for o is skipped, so retries never double-credit.
func (l *Ledger) AccruePendingIncome(ctx context.Context, o *order.Order) ([]Accrual, error) {
	gross := make(map[uuid.UUID]money.Money)
	for _, it := range o.Items {
		gross[it.SellerID] = gross[it.SellerID].Add(it.LineTotal())
	}

	var accruals []Accrual
	for _, sellerID := range db.LockOrder(o.SellerIDs()) {
		w, err := l.repo.GetOrCreateForUpdate(ctx, sellerID)
		if err != nil {
			return nil, fmt.Errorf("wallet: failed to lock wallet of seller %s: %w", sellerID, err)
		}
		done, err := l.repo.HasOrderTransaction(ctx, w.ID, o.ID, TypePendingIncome)
		if err != nil {
			return nil, fmt.Errorf("wallet: failed to check accrual of order %s: %w", o.ID, err)
		}
		if done {
			log.Info().Stringer("order_id", o.ID).Stringer("seller_id", sellerID).Msg("wallet: income already accrued, skipping")
			continue
		}

		a := Accrual{SellerID: sellerID, Gross: gross[sellerID], Net: gross[sellerID].Share(l.cfg.SellerShare)}
		orderRef := uuid.NullUUID{UUID: o.ID, Valid: true}
		if l.cfg.RecordPlatformFee {
			if err := l.append(ctx, w, orderRef, uuid.NullUUID{}, a.Gross, TypePendingIncome, "order income (gross)"); err != nil {
				return nil, err
			}
			if err := l.append(ctx, w, orderRef, uuid.NullUUID{}, a.Net.Sub(a.Gross), TypePlatformFee, "platform fee"); err != nil {
				return nil, err
			}
		} else {
			if err := l.append(ctx, w, orderRef, uuid.NullUUID{}, a.Net, TypePendingIncome, "order income"); err != nil {
				return nil, err
			}
		}
		w.PendingBalance = w.PendingBalance.Add(a.Net)
		if err := l.repo.SaveBalances(ctx, w); err != nil {
			return nil, fmt.Errorf("wallet: failed to save wallet of seller %s: %w", sellerID, err)
		}
		accruals = append(accruals, a)
	}
	return accruals, nil
}

// ReleasePending moves amount from pending_balance to balance. A zero amount
// releases everything pending.
func (l *Ledger) ReleasePending(ctx context.Context, sellerID uuid.UUID, amount money.Money) (*Wallet, error) {
	if amount.IsNegative() {
		return nil, apperr.Validation("release amount must not be negative")
	}
	w, err := l.repo.GetForUpdate(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		amount = w.PendingBalance
	}
	if amount.IsZero() {
		return w, nil
	}
	if w.PendingBalance.LessThan(amount) {
		return nil, apperr.Validation("release amount %s exceeds pending balance %s", amount, w.PendingBalance)
	}

	if err := l.append(ctx, w, uuid.NullUUID{}, uuid.NullUUID{}, amount.Neg(), TypePendingIncome, "released to balance"); err != nil {
		return nil, err
	}
	if err := l.append(ctx, w, uuid.NullUUID{}, uuid.NullUUID{}, amount, TypeSaleIncome, "released from pending"); err != nil {
		return nil, err
	}
	now := l.now()
	w.PendingBalance = w.PendingBalance.Sub(amount)
	w.Balance = w.Balance.Add(amount)
	w.LastPendingApprovedAt = &now
	if err := l.repo.SaveBalances(ctx, w); err != nil {
		return nil, fmt.Errorf("wallet: failed to save wallet of seller %s: %w", sellerID, err)
	}
	log.Info().Stringer("seller_id", sellerID).Stringer("amount", amount).Msg("wallet: pending balance released")
	return w, nil
}

// RefundDebit takes the refund from the seller's balance and credits the
// buyer's personal wallet in the same transaction. A complaint is refunded at
// most once.
func (l *Ledger) RefundDebit(ctx context.Context, r Refund) (*Transaction, error) {
	if !r.Amount.IsPositive() {
		return nil, apperr.Validation("refund amount must be positive")
	}
	w, err := l.repo.GetOrCreateForUpdate(ctx, r.SellerID)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to lock wallet of seller %s: %w", r.SellerID, err)
	}
	done, err := l.repo.HasComplaintTransaction(ctx, w.ID, r.ComplaintID, TypeRefundDeduct)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to check refund of complaint %s: %w", r.ComplaintID, err)
	}
	if done {
		return nil, apperr.ErrAlreadyProcessed
	}
	if w.Balance.LessThan(r.Amount) {
		return nil, &apperr.InsufficientBalanceError{SellerID: r.SellerID, Required: r.Amount, Available: w.Balance}
	}

	t := &Transaction{
		WalletID:    w.ID,
		OrderID:     uuid.NullUUID{UUID: r.OrderID, Valid: r.OrderID != uuid.Nil},
		ComplaintID: uuid.NullUUID{UUID: r.ComplaintID, Valid: true},
		Amount:      r.Amount.Neg(),
		Type:        TypeRefundDeduct,
		Note:        "complaint refund",
	}
	if err := l.repo.AppendTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("wallet: failed to append refund transaction: %w", err)
	}
	w.Balance = w.Balance.Sub(r.Amount)
	if err := l.repo.SaveBalances(ctx, w); err != nil {
		return nil, fmt.Errorf("wallet: failed to save wallet of seller %s: %w", r.SellerID, err)
	}
	if err := l.repo.CreditBuyer(ctx, r.BuyerID, r.Amount); err != nil {
		return nil, fmt.Errorf("wallet: failed to credit buyer %s: %w", r.BuyerID, err)
	}
	log.Info().Stringer("complaint_id", r.ComplaintID).Stringer("seller_id", r.SellerID).
		Stringer("buyer_id", r.BuyerID).Stringer("amount", r.Amount).Msg("wallet: refund transferred")
	return t, nil
}

// RequestWithdraw files a withdrawal without moving money. A request above
// the balance is recorded as rejected and reported as
// InsufficientBalanceError; the caller commits the record regardless.
func (l *Ledger) RequestWithdraw(ctx context.Context, sellerID uuid.UUID, amount money.Money) (*WithdrawRequest, error) {
	if amount.LessThan(l.cfg.MinimumWithdraw) {
		return nil, apperr.Validation("withdraw amount %s is below the minimum %s", amount, l.cfg.MinimumWithdraw)
	}
	w, err := l.repo.GetOrCreateForUpdate(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to lock wallet of seller %s: %w", sellerID, err)
	}

	req := &WithdrawRequest{SellerID: sellerID, Amount: amount, Status: WithdrawPending}
	var shortfall error
	if w.Balance.LessThan(amount) {
		now := l.now()
		req.Status = WithdrawRejected
		req.Note = "insufficient balance"
		req.ProcessedAt = &now
		shortfall = &apperr.InsufficientBalanceError{SellerID: sellerID, Required: amount, Available: w.Balance}
	}
	if err := l.repo.CreateWithdrawRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("wallet: failed to create withdraw request: %w", err)
	}
	return req, shortfall
}

// ApproveWithdraw re-checks the balance, debits it and marks the request
// paid. A failed re-check rejects the request and reports
// InsufficientBalanceError alongside it.
func (l *Ledger) ApproveWithdraw(ctx context.Context, requestID uuid.UUID) (*WithdrawRequest, error) {
	req, err := l.repo.GetWithdrawRequestForUpdate(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case WithdrawPending:
	case WithdrawPaid:
		return req, apperr.ErrAlreadyProcessed
	default:
		return nil, &apperr.TransitionError{Entity: "withdraw request", From: req.Status.String(), To: WithdrawPaid.String()}
	}

	w, err := l.repo.GetOrCreateForUpdate(ctx, req.SellerID)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to lock wallet of seller %s: %w", req.SellerID, err)
	}
	now := l.now()
	req.ProcessedAt = &now

	if w.Balance.LessThan(req.Amount) {
		req.Status = WithdrawRejected
		req.Note = "insufficient balance at approval"
		if err := l.repo.UpdateWithdrawRequest(ctx, req); err != nil {
			return nil, fmt.Errorf("wallet: failed to reject withdraw request %s: %w", req.ID, err)
		}
		return req, &apperr.InsufficientBalanceError{SellerID: req.SellerID, Required: req.Amount, Available: w.Balance}
	}

	if err := l.append(ctx, w, uuid.NullUUID{}, uuid.NullUUID{}, req.Amount.Neg(), TypeWithdraw, "withdraw "+req.ID.String()); err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Sub(req.Amount)
	if err := l.repo.SaveBalances(ctx, w); err != nil {
		return nil, fmt.Errorf("wallet: failed to save wallet of seller %s: %w", req.SellerID, err)
	}
	req.Status = WithdrawPaid
	if err := l.repo.UpdateWithdrawRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("wallet: failed to mark withdraw request %s paid: %w", req.ID, err)
	}
	return req, nil
}

func (l *Ledger) RejectWithdraw(ctx context.Context, requestID uuid.UUID, note string) (*WithdrawRequest, error) {
	req, err := l.repo.GetWithdrawRequestForUpdate(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case WithdrawPending:
	case WithdrawRejected:
		return req, apperr.ErrAlreadyProcessed
	default:
		return nil, &apperr.TransitionError{Entity: "withdraw request", From: req.Status.String(), To: WithdrawRejected.String()}
	}
	now := l.now()
	req.Status = WithdrawRejected
	req.Note = note
	req.ProcessedAt = &now
	if err := l.repo.UpdateWithdrawRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("wallet: failed to reject withdraw request %s: %w", req.ID, err)
	}
	return req, nil
}

// Deposit credits balance directly, e.g. a manual adjustment by an admin.
func (l *Ledger) Deposit(ctx context.Context, sellerID uuid.UUID, amount money.Money, note string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("deposit amount must be positive")
	}
	w, err := l.repo.GetOrCreateForUpdate(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to lock wallet of seller %s: %w", sellerID, err)
	}
	if err := l.append(ctx, w, uuid.NullUUID{}, uuid.NullUUID{}, amount, TypeDeposit, note); err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(amount)
	if err := l.repo.SaveBalances(ctx, w); err != nil {
		return nil, fmt.Errorf("wallet: failed to save wallet of seller %s: %w", sellerID, err)
	}
	return w, nil
}

// CheckIdentity returns an error when balance + pending_balance differs from
// the signed sum of the wallet's transactions.
func (l *Ledger) CheckIdentity(ctx context.Context, sellerID uuid.UUID) error {
	w, err := l.repo.GetBySeller(ctx, sellerID)
	if err != nil {
		return err
	}
	sum, err := l.repo.SumTransactions(ctx, w.ID)
	if err != nil {
		return err
	}
	if sum != w.Total() {
		return fmt.Errorf("wallet: ledger identity broken for seller %s: wallet total %s, transactions %s",
			sellerID, w.Total(), sum)
	}
	return nil
}

func (l *Ledger) append(ctx context.Context, w *Wallet, orderRef, complaintRef uuid.NullUUID, amount money.Money, typ TransactionType, note string) error {
	t := &Transaction{
		WalletID:    w.ID,
		OrderID:     orderRef,
		ComplaintID: complaintRef,
		Amount:      amount,
		Type:        typ,
		Note:        note,
	}
	if err := l.repo.AppendTransaction(ctx, t); err != nil {
		return fmt.Errorf("wallet: failed to append %s transaction: %w", typ, err)
	}
	return nil
}
