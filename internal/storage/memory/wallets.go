package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

type walletRepo struct{ v view }

func (r walletRepo) GetOrCreateForUpdate(_ context.Context, sellerID uuid.UUID) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.v.with(func(st *state) error {
		w, ok := st.wallets[sellerID]
		if !ok {
			now := time.Now().UTC()
			w = wallet.Wallet{ID: newID(), SellerID: sellerID, CreatedAt: now, UpdatedAt: now}
			st.wallets[sellerID] = w
		}
		out = &w
		return nil
	})
	return out, err
}

func (r walletRepo) GetForUpdate(ctx context.Context, sellerID uuid.UUID) (*wallet.Wallet, error) {
	return r.GetBySeller(ctx, sellerID)
}

func (r walletRepo) GetBySeller(_ context.Context, sellerID uuid.UUID) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.v.with(func(st *state) error {
		w, ok := st.wallets[sellerID]
		if !ok {
			return wallet.ErrWalletNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r walletRepo) SaveBalances(_ context.Context, w *wallet.Wallet) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.wallets[w.SellerID]
		if !ok || stored.ID != w.ID {
			return wallet.ErrWalletNotFound
		}
		w.UpdatedAt = time.Now().UTC()
		stored.Balance = w.Balance
		stored.PendingBalance = w.PendingBalance
		stored.LastPendingApprovedAt = w.LastPendingApprovedAt
		stored.UpdatedAt = w.UpdatedAt
		st.wallets[w.SellerID] = stored
		return nil
	})
}

func (r walletRepo) AppendTransaction(_ context.Context, t *wallet.Transaction) error {
	return r.v.with(func(st *state) error {
		t.ID = newID()
		t.CreatedAt = time.Now().UTC()
		st.txns = append(st.txns, *t)
		return nil
	})
}

func (r walletRepo) HasOrderTransaction(_ context.Context, walletID, orderID uuid.UUID, typ wallet.TransactionType) (bool, error) {
	return r.hasTransaction(func(t wallet.Transaction) bool {
		return t.WalletID == walletID && t.Type == typ && t.OrderID.Valid && t.OrderID.UUID == orderID
	})
}

func (r walletRepo) HasComplaintTransaction(_ context.Context, walletID, complaintID uuid.UUID, typ wallet.TransactionType) (bool, error) {
	return r.hasTransaction(func(t wallet.Transaction) bool {
		return t.WalletID == walletID && t.Type == typ && t.ComplaintID.Valid && t.ComplaintID.UUID == complaintID
	})
}

func (r walletRepo) hasTransaction(match func(wallet.Transaction) bool) (bool, error) {
	var found bool
	err := r.v.with(func(st *state) error {
		for _, t := range st.txns {
			if match(t) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r walletRepo) SumTransactions(_ context.Context, walletID uuid.UUID) (money.Money, error) {
	var sum money.Money
	err := r.v.with(func(st *state) error {
		for _, t := range st.txns {
			if t.WalletID == walletID {
				sum = sum.Add(t.Amount)
			}
		}
		return nil
	})
	return sum, err
}

func (r walletRepo) ListTransactions(_ context.Context, walletID uuid.UUID) ([]wallet.Transaction, error) {
	out := []wallet.Transaction{}
	err := r.v.with(func(st *state) error {
		for _, t := range st.txns {
			if t.WalletID == walletID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (r walletRepo) CreateWithdrawRequest(_ context.Context, req *wallet.WithdrawRequest) error {
	return r.v.with(func(st *state) error {
		req.ID = newID()
		req.CreatedAt = time.Now().UTC()
		st.withdraws[req.ID] = *req
		return nil
	})
}

func (r walletRepo) GetWithdrawRequest(_ context.Context, id uuid.UUID) (*wallet.WithdrawRequest, error) {
	var out *wallet.WithdrawRequest
	err := r.v.with(func(st *state) error {
		req, ok := st.withdraws[id]
		if !ok {
			return wallet.ErrWithdrawRequestNotFound
		}
		out = &req
		return nil
	})
	return out, err
}

func (r walletRepo) GetWithdrawRequestForUpdate(ctx context.Context, id uuid.UUID) (*wallet.WithdrawRequest, error) {
	return r.GetWithdrawRequest(ctx, id)
}

func (r walletRepo) UpdateWithdrawRequest(_ context.Context, req *wallet.WithdrawRequest) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.withdraws[req.ID]
		if !ok {
			return wallet.ErrWithdrawRequestNotFound
		}
		stored.Status = req.Status
		stored.Note = req.Note
		stored.ProcessedAt = req.ProcessedAt
		st.withdraws[req.ID] = stored
		return nil
	})
}

func (r walletRepo) CreditBuyer(_ context.Context, buyerID uuid.UUID, amount money.Money) error {
	return r.v.with(func(st *state) error {
		st.buyers[buyerID] = st.buyers[buyerID].Add(amount)
		return nil
	})
}

func (r walletRepo) BuyerBalance(_ context.Context, buyerID uuid.UUID) (money.Money, error) {
	var balance money.Money
	err := r.v.with(func(st *state) error {
		balance = st.buyers[buyerID]
		return nil
	})
	return balance, err
}
