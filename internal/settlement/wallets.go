package settlement

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

// RequestWithdraw files a pending withdrawal. A request above the current
// balance is stored as rejected and returned together with an
// InsufficientBalanceError.
func (s *service) RequestWithdraw(ctx context.Context, sellerID uuid.UUID, amount money.Money, by actor.Actor) (*wallet.WithdrawRequest, error) {
	if err := requireSelf(by, sellerID); err != nil {
		return nil, err
	}
	var req *wallet.WithdrawRequest
	var rejected error
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		r, err := t.ledger().RequestWithdraw(ctx, sellerID, amount)
		if errors.Is(err, apperr.ErrInsufficientWalletBalance) && r != nil {
			rejected = err
			t.notify(sellerID, withdrawEvent(r))
		} else if err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		logCommandError(err, "seller", sellerID, "withdraw")
		return nil, err
	}
	if rejected != nil {
		logCommandError(rejected, "withdraw_request", req.ID, string(wallet.WithdrawPending))
		return req, rejected
	}
	log.Info().Stringer("request_id", req.ID).Stringer("seller_id", sellerID).Stringer("amount", amount).
		Msg("settlement: withdraw requested")
	return req, nil
}

// ApproveWithdraw pays a pending request. When the balance no longer covers
// it the request is committed as rejected and InsufficientBalanceError is
// returned with it.
func (s *service) ApproveWithdraw(ctx context.Context, requestID uuid.UUID, by actor.Actor) (*wallet.WithdrawRequest, error) {
	if err := requireAdmin(by); err != nil {
		return nil, err
	}
	var req *wallet.WithdrawRequest
	var rejected error
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		r, err := t.ledger().ApproveWithdraw(ctx, requestID)
		switch {
		case errors.Is(err, apperr.ErrAlreadyProcessed):
			req = r
			return nil
		case errors.Is(err, apperr.ErrInsufficientWalletBalance) && r != nil:
			rejected = err
		case err != nil:
			return err
		}
		t.notify(r.SellerID, withdrawEvent(r))
		req = r
		return nil
	})
	if err != nil {
		logCommandError(err, "withdraw_request", requestID, string(wallet.WithdrawPaid))
		return nil, err
	}
	if rejected != nil {
		logCommandError(rejected, "withdraw_request", requestID, string(wallet.WithdrawPaid))
		return req, rejected
	}
	log.Info().Stringer("request_id", req.ID).Stringer("status", req.Status).Msg("settlement: withdraw processed")
	return req, nil
}

func (s *service) RejectWithdraw(ctx context.Context, requestID uuid.UUID, by actor.Actor, note string) (*wallet.WithdrawRequest, error) {
	if err := requireAdmin(by); err != nil {
		return nil, err
	}
	var req *wallet.WithdrawRequest
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		r, err := t.ledger().RejectWithdraw(ctx, requestID, note)
		if errors.Is(err, apperr.ErrAlreadyProcessed) {
			req = r
			return nil
		}
		if err != nil {
			return err
		}
		t.notify(r.SellerID, withdrawEvent(r))
		req = r
		return nil
	})
	if err != nil {
		logCommandError(err, "withdraw_request", requestID, string(wallet.WithdrawRejected))
		return nil, err
	}
	return req, nil
}

// ReleasePending is the admin release of pending income; a zero amount
// releases all of it.
func (s *service) ReleasePending(ctx context.Context, sellerID uuid.UUID, amount money.Money, by actor.Actor) (*wallet.Wallet, error) {
	if err := requireAdmin(by); err != nil {
		return nil, err
	}
	var w *wallet.Wallet
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		before, err := t.Wallets.GetBySeller(ctx, sellerID)
		if err != nil {
			return err
		}
		w, err = t.ledger().ReleasePending(ctx, sellerID, amount)
		if err != nil {
			return err
		}
		if released := w.Balance.Sub(before.Balance); released.IsPositive() {
			t.notify(sellerID, notify.Event{Type: notify.EventPendingReleased, Amount: released.String()})
		}
		return nil
	})
	if err != nil {
		logCommandError(err, "seller", sellerID, "release")
		return nil, err
	}
	return w, nil
}

func (s *service) Deposit(ctx context.Context, sellerID uuid.UUID, amount money.Money, by actor.Actor, note string) (*wallet.Wallet, error) {
	if err := requireAdmin(by); err != nil {
		return nil, err
	}
	var w *wallet.Wallet
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		var err error
		w, err = t.ledger().Deposit(ctx, sellerID, amount, note)
		return err
	})
	if err != nil {
		logCommandError(err, "seller", sellerID, "deposit")
		return nil, err
	}
	return w, nil
}

func (s *service) GetWallet(ctx context.Context, sellerID uuid.UUID, by actor.Actor) (*wallet.Wallet, error) {
	if err := requireSelf(by, sellerID); err != nil {
		return nil, err
	}
	return s.runner.Read().Wallets.GetBySeller(ctx, sellerID)
}

func (s *service) GetWithdrawRequest(ctx context.Context, requestID uuid.UUID, by actor.Actor) (*wallet.WithdrawRequest, error) {
	req, err := s.runner.Read().Wallets.GetWithdrawRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := requireSelf(by, req.SellerID); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *service) BuyerBalance(ctx context.Context, buyerID uuid.UUID) (money.Money, error) {
	return s.runner.Read().Wallets.BuyerBalance(ctx, buyerID)
}

func withdrawEvent(r *wallet.WithdrawRequest) notify.Event {
	return notify.Event{
		Type:      notify.EventWithdrawProcessed,
		RequestID: r.ID,
		To:        r.Status.String(),
		Amount:    r.Amount.String(),
		Message:   r.Note,
	}
}
