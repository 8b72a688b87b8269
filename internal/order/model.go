package order

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipping  Status = "shipping"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusReturned  Status = "returned"
)

func (s Status) String() string {
	return string(s)
}

// ItemStatus tracks a line independently of its order, so one order can
// carry disputed and undisputed items at the same time.
type ItemStatus string

const (
	ItemStatusNormal          ItemStatus = "normal"
	ItemStatusRefundRequested ItemStatus = "refund_requested"
	ItemStatusRefunded        ItemStatus = "refunded"
	ItemStatusRefundRejected  ItemStatus = "refund_rejected"
)

func (s ItemStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCard   PaymentMethod = "card"
)

// ShippingInfo is the contact snapshot taken at checkout.
type ShippingInfo struct {
	RecipientName string `json:"recipient_name" db:"recipient_name"`
	Phone         string `json:"phone" db:"phone"`
	Address       string `json:"address" db:"address"`
}

type Item struct {
	ID      uuid.UUID `json:"id" db:"id"`
	OrderID uuid.UUID `json:"order_id" db:"order_id"`
	// ProductID is invalid once the product has been deleted from the catalog.
	ProductID   uuid.NullUUID  `json:"product_id" db:"product_id"`
	SellerID    uuid.UUID      `json:"seller_id" db:"seller_id"`
	ProductName string         `json:"product_name" db:"product_name"`
	Price       money.Money    `json:"price" db:"price"`
	Quantity    money.Quantity `json:"quantity" db:"quantity"`
	Status      ItemStatus     `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// LineTotal is price × quantity at purchase time.
func (i Item) LineTotal() money.Money {
	return i.Price.Mul(i.Quantity)
}

type Order struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	BuyerID       uuid.UUID     `json:"buyer_id" db:"buyer_id"`
	Shipping      ShippingInfo  `json:"shipping" db:"-"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	ShippingFee   money.Money   `json:"shipping_fee" db:"shipping_fee"`
	TotalPrice    money.Money   `json:"total_price" db:"total_price"`
	PointsUsed    int64         `json:"points_used" db:"points_used"`
	VoucherCode   string        `json:"voucher_code,omitempty" db:"voucher_code"`
	Status        Status        `json:"status" db:"status"`
	IsDisputed    bool          `json:"is_disputed" db:"is_disputed"`
	StockDeducted bool          `json:"stock_deducted" db:"stock_deducted"`
	SoldCounted   bool          `json:"sold_counted" db:"sold_counted"`
	IsDeleted     bool          `json:"-" db:"is_deleted"`
	Items         []Item        `json:"items" db:"-"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// Subtotal sums line totals without shipping.
func (o *Order) Subtotal() money.Money {
	var sum money.Money
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// HasSeller reports whether sellerID owns at least one item of the order.
func (o *Order) HasSeller(sellerID uuid.UUID) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerIDs lists distinct sellers in item order.
func (o *Order) SellerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(o.Items))
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.SellerID] {
			seen[it.SellerID] = true
			ids = append(ids, it.SellerID)
		}
	}
	return ids
}

func (o *Order) Item(itemID uuid.UUID) (*Item, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// AllItemsRefunded reports whether every line has been refunded.
func (o *Order) AllItemsRefunded() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if it.Status != ItemStatusRefunded {
			return false
		}
	}
	return true
}
