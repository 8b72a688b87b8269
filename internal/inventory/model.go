package inventory

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
)

// Product is the slice of the catalog row the settlement engine reads and
// mutates. Stock and SoldCount change only through Ledger.
type Product struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	SellerID  uuid.UUID   `json:"seller_id" db:"seller_id"`
	Name      string      `json:"name" db:"name"`
	Price     money.Money `json:"price" db:"price"`
	Stock     int         `json:"stock" db:"stock"`
	SoldCount int         `json:"sold_count" db:"sold_count"`
	IsDeleted bool        `json:"-" db:"is_deleted"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
