package wallet_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/storage/memory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

// within runs fn in a committed memory-store transaction.
func within(t *testing.T, store *memory.Store, cfg wallet.Config, fn func(ctx context.Context, l *wallet.Ledger, r settlement.Repos)) {
	t.Helper()
	err := store.InTx(context.Background(), func(ctx context.Context, r settlement.Repos) error {
		fn(ctx, wallet.NewLedger(r.Wallets, cfg), r)
		return nil
	})
	require.NoError(t, err)
}

func twoSellerOrder(sellerA, sellerB uuid.UUID) *order.Order {
	return &order.Order{
		ID: uuid.Must(uuid.NewV4()),
		Items: []order.Item{
			{ID: uuid.Must(uuid.NewV4()), SellerID: sellerA, Price: money.MustParse("10.00"), Quantity: 2},
			{ID: uuid.Must(uuid.NewV4()), SellerID: sellerB, Price: money.MustParse("15.00"), Quantity: 1},
			{ID: uuid.Must(uuid.NewV4()), SellerID: sellerA, Price: money.MustParse("2.35"), Quantity: 1},
		},
	}
}

func TestLedger_AccruePendingIncome(t *testing.T) {
	store := memory.New()
	sellerA, sellerB := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	o := twoSellerOrder(sellerA, sellerB)

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, _ settlement.Repos) {
		accruals, err := l.AccruePendingIncome(ctx, o)
		require.NoError(t, err)
		require.Len(t, accruals, 2)

		byseller := map[uuid.UUID]wallet.Accrual{}
		for _, a := range accruals {
			byseller[a.SellerID] = a
		}
		// 22.35 * 0.9 = 20.115 rounds half-up to 20.12
		assert.Equal(t, money.MustParse("22.35"), byseller[sellerA].Gross)
		assert.Equal(t, money.MustParse("20.12"), byseller[sellerA].Net)
		assert.Equal(t, money.MustParse("13.50"), byseller[sellerB].Net)

		again, err := l.AccruePendingIncome(ctx, o)
		require.NoError(t, err)
		assert.Empty(t, again, "a second accrual for the same order must be a no-op")
	})

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, r settlement.Repos) {
		w, err := r.Wallets.GetBySeller(ctx, sellerA)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("20.12"), w.PendingBalance)
		assert.True(t, w.Balance.IsZero())

		require.NoError(t, l.CheckIdentity(ctx, sellerA))
		require.NoError(t, l.CheckIdentity(ctx, sellerB))
	})
}

func TestLedger_AccruePendingIncome_RecordsPlatformFee(t *testing.T) {
	store := memory.New()
	seller := uuid.Must(uuid.NewV4())
	o := &order.Order{
		ID:    uuid.Must(uuid.NewV4()),
		Items: []order.Item{{ID: uuid.Must(uuid.NewV4()), SellerID: seller, Price: money.MustParse("40.00"), Quantity: 1}},
	}
	cfg := wallet.Config{SellerShare: decimal.RequireFromString("0.85"), MinimumWithdraw: money.MustParse("1.00"), RecordPlatformFee: true}

	within(t, store, cfg, func(ctx context.Context, l *wallet.Ledger, r settlement.Repos) {
		_, err := l.AccruePendingIncome(ctx, o)
		require.NoError(t, err)

		w, err := r.Wallets.GetBySeller(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("34.00"), w.PendingBalance)

		txns, err := r.Wallets.ListTransactions(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, wallet.TypePendingIncome, txns[0].Type)
		assert.Equal(t, money.MustParse("40.00"), txns[0].Amount)
		assert.Equal(t, wallet.TypePlatformFee, txns[1].Type)
		assert.Equal(t, money.MustParse("-6.00"), txns[1].Amount)

		require.NoError(t, l.CheckIdentity(ctx, seller))
	})
}

func TestLedger_ReleasePending(t *testing.T) {
	store := memory.New()
	seller := uuid.Must(uuid.NewV4())

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, _ settlement.Repos) {
		_, err := l.AccruePendingIncome(ctx, &order.Order{
			ID:    uuid.Must(uuid.NewV4()),
			Items: []order.Item{{SellerID: seller, Price: money.MustParse("100.00"), Quantity: 1}},
		})
		require.NoError(t, err)

		w, err := l.ReleasePending(ctx, seller, money.MustParse("30.00"))
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("30.00"), w.Balance)
		assert.Equal(t, money.MustParse("60.00"), w.PendingBalance)
		require.NotNil(t, w.LastPendingApprovedAt)

		_, err = l.ReleasePending(ctx, seller, money.MustParse("61.00"))
		assert.ErrorIs(t, err, apperr.ErrValidation)

		w, err = l.ReleasePending(ctx, seller, money.Zero)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("90.00"), w.Balance)
		assert.True(t, w.PendingBalance.IsZero())

		require.NoError(t, l.CheckIdentity(ctx, seller))
	})
}

func TestLedger_RefundDebit(t *testing.T) {
	store := memory.New()
	seller, buyer := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	refund := wallet.Refund{
		SellerID:    seller,
		BuyerID:     buyer,
		OrderID:     uuid.Must(uuid.NewV4()),
		ComplaintID: uuid.Must(uuid.NewV4()),
		Amount:      money.MustParse("20.00"),
	}

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, r settlement.Repos) {
		_, err := l.RefundDebit(ctx, refund)
		var balanceErr *apperr.InsufficientBalanceError
		require.ErrorAs(t, err, &balanceErr)
		assert.Equal(t, refund.Amount, balanceErr.Required)
		assert.True(t, balanceErr.Available.IsZero())

		_, err = l.Deposit(ctx, seller, money.MustParse("25.00"), "manual top-up")
		require.NoError(t, err)

		txn, err := l.RefundDebit(ctx, refund)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("-20.00"), txn.Amount)
		assert.Equal(t, wallet.TypeRefundDeduct, txn.Type)
		assert.Equal(t, refund.ComplaintID, txn.ComplaintID.UUID)

		_, err = l.RefundDebit(ctx, refund)
		assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed, "a complaint is refunded at most once")

		w, err := r.Wallets.GetBySeller(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("5.00"), w.Balance)

		credited, err := r.Wallets.BuyerBalance(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("20.00"), credited)

		require.NoError(t, l.CheckIdentity(ctx, seller))
	})
}

func TestLedger_Withdraw(t *testing.T) {
	store := memory.New()
	seller := uuid.Must(uuid.NewV4())

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, r settlement.Repos) {
		_, err := l.Deposit(ctx, seller, money.MustParse("50.00"), "")
		require.NoError(t, err)

		_, err = l.RequestWithdraw(ctx, seller, money.MustParse("9.99"))
		assert.ErrorIs(t, err, apperr.ErrValidation)

		over, err := l.RequestWithdraw(ctx, seller, money.MustParse("80.00"))
		assert.ErrorIs(t, err, apperr.ErrInsufficientWalletBalance)
		require.NotNil(t, over, "an over-balance request is still recorded")
		assert.Equal(t, wallet.WithdrawRejected, over.Status)
		assert.NotNil(t, over.ProcessedAt)

		req, err := l.RequestWithdraw(ctx, seller, money.MustParse("30.00"))
		require.NoError(t, err)
		assert.Equal(t, wallet.WithdrawPending, req.Status)

		w, err := r.Wallets.GetBySeller(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("50.00"), w.Balance, "requesting must not move money")

		paid, err := l.ApproveWithdraw(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, wallet.WithdrawPaid, paid.Status)

		again, err := l.ApproveWithdraw(ctx, req.ID)
		assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
		assert.Equal(t, wallet.WithdrawPaid, again.Status)

		_, err = l.RejectWithdraw(ctx, req.ID, "too late")
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

		_, err = l.ApproveWithdraw(ctx, over.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

		w, err = r.Wallets.GetBySeller(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("20.00"), w.Balance)
		require.NoError(t, l.CheckIdentity(ctx, seller))
	})
}

func TestLedger_ApproveWithdraw_RecheckFails(t *testing.T) {
	store := memory.New()
	seller := uuid.Must(uuid.NewV4())

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, _ settlement.Repos) {
		_, err := l.Deposit(ctx, seller, money.MustParse("40.00"), "")
		require.NoError(t, err)

		first, err := l.RequestWithdraw(ctx, seller, money.MustParse("30.00"))
		require.NoError(t, err)
		second, err := l.RequestWithdraw(ctx, seller, money.MustParse("30.00"))
		require.NoError(t, err)

		_, err = l.ApproveWithdraw(ctx, first.ID)
		require.NoError(t, err)

		rejected, err := l.ApproveWithdraw(ctx, second.ID)
		assert.ErrorIs(t, err, apperr.ErrInsufficientWalletBalance)
		require.NotNil(t, rejected)
		assert.Equal(t, wallet.WithdrawRejected, rejected.Status)

		require.NoError(t, l.CheckIdentity(ctx, seller))
	})
}

func TestLedger_RejectWithdraw(t *testing.T) {
	store := memory.New()
	seller := uuid.Must(uuid.NewV4())

	within(t, store, wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, _ settlement.Repos) {
		_, err := l.Deposit(ctx, seller, money.MustParse("40.00"), "")
		require.NoError(t, err)
		req, err := l.RequestWithdraw(ctx, seller, money.MustParse("15.00"))
		require.NoError(t, err)

		rejected, err := l.RejectWithdraw(ctx, req.ID, "bank details missing")
		require.NoError(t, err)
		assert.Equal(t, wallet.WithdrawRejected, rejected.Status)
		assert.Equal(t, "bank details missing", rejected.Note)

		_, err = l.RejectWithdraw(ctx, req.ID, "again")
		assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	})
}

func TestLedger_Deposit_Validation(t *testing.T) {
	within(t, memory.New(), wallet.DefaultConfig(), func(ctx context.Context, l *wallet.Ledger, _ settlement.Repos) {
		_, err := l.Deposit(ctx, uuid.Must(uuid.NewV4()), money.Zero, "")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}
