// Package report serves read-only views over the wallet ledger.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

// Statement is a wallet with its full transaction history and per-type totals.
type Statement struct {
	Wallet  wallet.Wallet                           `json:"wallet"`
	Entries []wallet.Transaction                    `json:"entries"`
	Totals  map[wallet.TransactionType]money.Money `json:"totals"`
}

// NewStatement derives the per-type totals from entries.
func NewStatement(w wallet.Wallet, entries []wallet.Transaction) *Statement {
	totals := make(map[wallet.TransactionType]money.Money)
	for _, e := range entries {
		totals[e.Type] = totals[e.Type].Add(e.Amount)
	}
	if entries == nil {
		entries = []wallet.Transaction{}
	}
	return &Statement{Wallet: w, Entries: entries, Totals: totals}
}

// Discrepancy is a wallet whose stored balances disagree with its transactions.
type Discrepancy struct {
	WalletID       uuid.UUID   `json:"wallet_id" db:"wallet_id"`
	SellerID       uuid.UUID   `json:"seller_id" db:"seller_id"`
	Balance        money.Money `json:"balance" db:"balance"`
	PendingBalance money.Money `json:"pending_balance" db:"pending_balance"`
	TransactionSum money.Money `json:"transaction_sum" db:"transaction_sum"`
}

// Drift is how far the wallet row is ahead of its transactions.
func (d Discrepancy) Drift() money.Money {
	return d.Balance.Add(d.PendingBalance).Sub(d.TransactionSum)
}

type Reader interface {
	WalletStatement(ctx context.Context, sellerID uuid.UUID) (*Statement, error)
	AuditWallets(ctx context.Context) ([]Discrepancy, error)
}

type sqlxReader struct {
	db *sqlx.DB
}

func NewReader(db *sqlx.DB) Reader {
	return &sqlxReader{db: db}
}

func (r *sqlxReader) WalletStatement(ctx context.Context, sellerID uuid.UUID) (*Statement, error) {
	var w wallet.Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT id, seller_id, balance, pending_balance, last_pending_approved_at, created_at, updated_at
		FROM seller_wallets WHERE seller_id = $1`, sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("report: failed to load wallet of seller %s: %w", sellerID, err)
	}

	var entries []wallet.Transaction
	err = r.db.SelectContext(ctx, &entries, `
		SELECT id, wallet_id, order_id, complaint_id, amount, type, note, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at, id`, w.ID)
	if err != nil {
		return nil, fmt.Errorf("report: failed to load transactions of wallet %s: %w", w.ID, err)
	}
	return NewStatement(w, entries), nil
}

func (r *sqlxReader) AuditWallets(ctx context.Context) ([]Discrepancy, error) {
	out := []Discrepancy{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT w.id AS wallet_id, w.seller_id, w.balance, w.pending_balance,
			COALESCE(SUM(t.amount), 0)::bigint AS transaction_sum
		FROM seller_wallets w
		LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
		GROUP BY w.id, w.seller_id, w.balance, w.pending_balance
		HAVING w.balance + w.pending_balance <> COALESCE(SUM(t.amount), 0)
		ORDER BY w.seller_id`)
	if err != nil {
		return nil, fmt.Errorf("report: failed to audit wallets: %w", err)
	}
	return out, nil
}
