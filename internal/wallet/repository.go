package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
)

var (
	ErrWalletNotFound          = fmt.Errorf("wallet %w", apperr.ErrNotFound)
	ErrWithdrawRequestNotFound = fmt.Errorf("withdraw request %w", apperr.ErrNotFound)
)

type Repository interface {
	// GetOrCreateForUpdate returns the seller's wallet row locked, creating an
	// empty wallet first if the seller has none.
	GetOrCreateForUpdate(ctx context.Context, sellerID uuid.UUID) (*Wallet, error)
	GetForUpdate(ctx context.Context, sellerID uuid.UUID) (*Wallet, error)
	GetBySeller(ctx context.Context, sellerID uuid.UUID) (*Wallet, error)
	SaveBalances(ctx context.Context, w *Wallet) error

	AppendTransaction(ctx context.Context, t *Transaction) error
	HasOrderTransaction(ctx context.Context, walletID, orderID uuid.UUID, typ TransactionType) (bool, error)
	HasComplaintTransaction(ctx context.Context, walletID, complaintID uuid.UUID, typ TransactionType) (bool, error)
	SumTransactions(ctx context.Context, walletID uuid.UUID) (money.Money, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID) ([]Transaction, error)

	CreateWithdrawRequest(ctx context.Context, req *WithdrawRequest) error
	GetWithdrawRequest(ctx context.Context, id uuid.UUID) (*WithdrawRequest, error)
	GetWithdrawRequestForUpdate(ctx context.Context, id uuid.UUID) (*WithdrawRequest, error)
	UpdateWithdrawRequest(ctx context.Context, req *WithdrawRequest) error

	// CreditBuyer adds amount to the buyer's personal wallet.
	CreditBuyer(ctx context.Context, buyerID uuid.UUID, amount money.Money) error
	BuyerBalance(ctx context.Context, buyerID uuid.UUID) (money.Money, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

const walletColumns = `id, seller_id, balance, pending_balance, last_pending_approved_at, created_at, updated_at`

const transactionColumns = `id, wallet_id, order_id, complaint_id, amount, type, note, created_at`

const withdrawColumns = `id, seller_id, amount, status, note, created_at, processed_at`

func (r *postgresRepository) GetOrCreateForUpdate(ctx context.Context, sellerID uuid.UUID) (*Wallet, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate wallet ID: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, `
		INSERT INTO seller_wallets (id, seller_id, balance, pending_balance, created_at, updated_at)
		VALUES ($1, $2, 0, 0, $3, $3)
		ON CONFLICT (seller_id) DO NOTHING`, id, sellerID, now)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to ensure wallet for seller %s: %w", sellerID, err)
	}
	return r.GetForUpdate(ctx, sellerID)
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, sellerID uuid.UUID) (*Wallet, error) {
	return r.getWallet(ctx, sellerID, " FOR UPDATE")
}

func (r *postgresRepository) GetBySeller(ctx context.Context, sellerID uuid.UUID) (*Wallet, error) {
	return r.getWallet(ctx, sellerID, "")
}

func (r *postgresRepository) getWallet(ctx context.Context, sellerID uuid.UUID, lockClause string) (*Wallet, error) {
	var w Wallet
	err := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM seller_wallets WHERE seller_id = $1`+lockClause, sellerID).
		Scan(&w.ID, &w.SellerID, &w.Balance, &w.PendingBalance, &w.LastPendingApprovedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("repository: failed to select wallet of seller %s: %w", sellerID, err)
	}
	return &w, nil
}

func (r *postgresRepository) SaveBalances(ctx context.Context, w *Wallet) error {
	w.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE seller_wallets
		SET balance = $1, pending_balance = $2, last_pending_approved_at = $3, updated_at = $4
		WHERE id = $5`,
		w.Balance, w.PendingBalance, w.LastPendingApprovedAt, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update wallet %s: %w", w.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *postgresRepository) AppendTransaction(ctx context.Context, t *Transaction) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate transaction ID: %w", err)
	}
	t.ID = id
	t.CreatedAt = time.Now().UTC()
	_, err = r.db.Exec(ctx, `
		INSERT INTO wallet_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.WalletID, t.OrderID, t.ComplaintID, t.Amount, string(t.Type), t.Note, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert wallet transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) HasOrderTransaction(ctx context.Context, walletID, orderID uuid.UUID, typ TransactionType) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE wallet_id = $1 AND order_id = $2 AND type = $3)`,
		walletID, orderID, string(typ)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to look up %s transaction for order %s: %w", typ, orderID, err)
	}
	return exists, nil
}

func (r *postgresRepository) HasComplaintTransaction(ctx context.Context, walletID, complaintID uuid.UUID, typ TransactionType) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE wallet_id = $1 AND complaint_id = $2 AND type = $3)`,
		walletID, complaintID, string(typ)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to look up %s transaction for complaint %s: %w", typ, complaintID, err)
	}
	return exists, nil
}

func (r *postgresRepository) SumTransactions(ctx context.Context, walletID uuid.UUID) (money.Money, error) {
	var sum money.Money
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::bigint FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to sum transactions of wallet %s: %w", walletID, err)
	}
	return sum, nil
}

func (r *postgresRepository) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at, id`, walletID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query transactions of wallet %s: %w", walletID, err)
	}
	defer rows.Close()

	txns := []Transaction{}
	for rows.Next() {
		var t Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.WalletID, &t.OrderID, &t.ComplaintID, &t.Amount, &typ, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan wallet transaction: %w", err)
		}
		t.Type = TransactionType(typ)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating wallet transactions: %w", err)
	}
	return txns, nil
}

func (r *postgresRepository) CreateWithdrawRequest(ctx context.Context, req *WithdrawRequest) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate withdraw request ID: %w", err)
	}
	req.ID = id
	req.CreatedAt = time.Now().UTC()
	_, err = r.db.Exec(ctx, `
		INSERT INTO withdraw_requests (`+withdrawColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.SellerID, req.Amount, string(req.Status), req.Note, req.CreatedAt, req.ProcessedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert withdraw request: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetWithdrawRequest(ctx context.Context, id uuid.UUID) (*WithdrawRequest, error) {
	return r.getWithdraw(ctx, id, "")
}

func (r *postgresRepository) GetWithdrawRequestForUpdate(ctx context.Context, id uuid.UUID) (*WithdrawRequest, error) {
	return r.getWithdraw(ctx, id, " FOR UPDATE")
}

func (r *postgresRepository) getWithdraw(ctx context.Context, id uuid.UUID, lockClause string) (*WithdrawRequest, error) {
	var req WithdrawRequest
	var status string
	err := r.db.QueryRow(ctx, `SELECT `+withdrawColumns+` FROM withdraw_requests WHERE id = $1`+lockClause, id).
		Scan(&req.ID, &req.SellerID, &req.Amount, &status, &req.Note, &req.CreatedAt, &req.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawRequestNotFound
		}
		return nil, fmt.Errorf("repository: failed to select withdraw request %s: %w", id, err)
	}
	req.Status = WithdrawStatus(status)
	return &req, nil
}

func (r *postgresRepository) UpdateWithdrawRequest(ctx context.Context, req *WithdrawRequest) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE withdraw_requests SET status = $1, note = $2, processed_at = $3 WHERE id = $4`,
		string(req.Status), req.Note, req.ProcessedAt, req.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update withdraw request %s: %w", req.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrWithdrawRequestNotFound
	}
	return nil
}

func (r *postgresRepository) CreditBuyer(ctx context.Context, buyerID uuid.UUID, amount money.Money) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO buyer_wallets (user_id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = buyer_wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
		buyerID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to credit buyer %s: %w", buyerID, err)
	}
	return nil
}

func (r *postgresRepository) BuyerBalance(ctx context.Context, buyerID uuid.UUID) (money.Money, error) {
	var balance money.Money
	err := r.db.QueryRow(ctx, `SELECT balance FROM buyer_wallets WHERE user_id = $1`, buyerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("repository: failed to select buyer balance %s: %w", buyerID, err)
	}
	return balance, nil
}
