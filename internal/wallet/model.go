package wallet

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
)

type TransactionType string

const (
	TypePendingIncome TransactionType = "pending_income"
	TypeSaleIncome    TransactionType = "sale_income"
	TypeRefundDeduct  TransactionType = "refund_deduct"
	TypeWithdraw      TransactionType = "withdraw"
	TypePlatformFee   TransactionType = "platform_fee"
	TypeDeposit       TransactionType = "deposit"
)

func (t TransactionType) String() string {
	return string(t)
}

// Wallet is a seller's ledger account. Balance is withdrawable,
// PendingBalance awaits admin release.
type Wallet struct {
	ID                    uuid.UUID   `json:"id" db:"id"`
	SellerID              uuid.UUID   `json:"seller_id" db:"seller_id"`
	Balance               money.Money `json:"balance" db:"balance"`
	PendingBalance        money.Money `json:"pending_balance" db:"pending_balance"`
	LastPendingApprovedAt *time.Time  `json:"last_pending_approved_at,omitempty" db:"last_pending_approved_at"`
	CreatedAt             time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at" db:"updated_at"`
}

// Total is balance + pending_balance, the side of the ledger identity held
// on the wallet row.
func (w *Wallet) Total() money.Money {
	return w.Balance.Add(w.PendingBalance)
}

// Transaction is append-only: never updated or deleted.
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	WalletID    uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	OrderID     uuid.NullUUID   `json:"order_id" db:"order_id"`
	ComplaintID uuid.NullUUID   `json:"complaint_id" db:"complaint_id"`
	Amount      money.Money     `json:"amount" db:"amount"`
	Type        TransactionType `json:"type" db:"type"`
	Note        string          `json:"note" db:"note"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type WithdrawStatus string

const (
	WithdrawPending  WithdrawStatus = "pending"
	WithdrawApproved WithdrawStatus = "approved"
	WithdrawRejected WithdrawStatus = "rejected"
	WithdrawPaid     WithdrawStatus = "paid"
)

func (s WithdrawStatus) String() string {
	return string(s)
}

type WithdrawRequest struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	SellerID    uuid.UUID      `json:"seller_id" db:"seller_id"`
	Amount      money.Money    `json:"amount" db:"amount"`
	Status      WithdrawStatus `json:"status" db:"status"`
	Note        string         `json:"note,omitempty" db:"note"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
}

// Accrual is the pending income credited to one seller for one order.
type Accrual struct {
	SellerID uuid.UUID
	Gross    money.Money
	Net      money.Money
}

// Refund describes a complaint refund moving money from a seller wallet to
// the buyer's personal wallet.
type Refund struct {
	SellerID    uuid.UUID
	BuyerID     uuid.UUID
	OrderID     uuid.UUID
	ComplaintID uuid.UUID
	Amount      money.Money
}
