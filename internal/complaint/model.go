package complaint

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusNegotiating    Status = "negotiating"
	StatusWaitingReturn  Status = "waiting_return"
	StatusReturning      Status = "returning"
	StatusAdminReview    Status = "admin_review"
	StatusResolvedRefund Status = "resolved_refund"
	StatusResolvedReject Status = "resolved_reject"
	StatusCancelled      Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Decision is the seller's answer to a pending complaint.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Resolution is the admin's final ruling.
type Resolution string

const (
	ResolutionRefundBuyer Resolution = "refund_buyer"
	ResolutionReject      Resolution = "reject"
)

// ReturnShipment is the buyer's proof that goods were sent back.
type ReturnShipment struct {
	Carrier       string `json:"carrier,omitempty" db:"return_carrier"`
	TrackingCode  string `json:"tracking_code,omitempty" db:"return_tracking_code"`
	ProofImageURL string `json:"proof_image_url,omitempty" db:"return_proof_image"`
}

type Complaint struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrderItemID    uuid.UUID      `json:"order_item_id" db:"order_item_id"`
	OrderID        uuid.UUID      `json:"order_id" db:"order_id"`
	BuyerID        uuid.UUID      `json:"buyer_id" db:"buyer_id"`
	SellerID       uuid.UUID      `json:"seller_id" db:"seller_id"`
	Reason         string         `json:"reason" db:"reason"`
	Media          []string       `json:"media" db:"media"`
	SellerResponse string         `json:"seller_response,omitempty" db:"seller_response"`
	AdminNotes     string         `json:"admin_notes,omitempty" db:"admin_notes"`
	Status         Status         `json:"status" db:"status"`
	ReturnRequired bool           `json:"return_required" db:"return_required"`
	Return         ReturnShipment `json:"return" db:"-"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}
