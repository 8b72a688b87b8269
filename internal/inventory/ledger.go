// Package inventory implements race-free stock reservation over the catalog.
package inventory

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
)

// Ledger must be built from repositories bound to the caller's transaction:
// the row locks it takes are released on commit or rollback.
type Ledger struct {
	products Repository
	orders   order.Repository
}

func NewLedger(products Repository, orders order.Repository) *Ledger {
	return &Ledger{products: products, orders: orders}
}

// ReserveStock locks every product of the order in ascending id order,
// checks all quantities, and only then decrements. A shortfall on any line
// leaves every product untouched. An order already marked stock_deducted is
// returned as ok without touching the catalog.
func (l *Ledger) ReserveStock(ctx context.Context, o *order.Order) (bool, error) {
	if o.StockDeducted {
		log.Debug().Stringer("order_id", o.ID).Msg("inventory: stock already deducted, skipping")
		return true, nil
	}

	need, err := requiredQuantities(o)
	if err != nil {
		return false, err
	}
	ids := make([]uuid.UUID, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	ids = db.LockOrder(ids)

	locked, err := l.products.LockProducts(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("inventory: failed to lock products for order %s: %w", o.ID, err)
	}

	for _, id := range ids {
		available := 0
		if p, ok := locked[id]; ok && !p.IsDeleted {
			available = p.Stock
		}
		if available < need[id] {
			log.Warn().Stringer("order_id", o.ID).Stringer("product_id", id).
				Int("requested", need[id]).Int("available", available).
				Msg("inventory: insufficient stock")
			return false, &apperr.InsufficientStockError{ProductID: id, Requested: need[id], Available: available}
		}
	}

	for _, id := range ids {
		if err := l.products.DecrementStock(ctx, id, need[id]); err != nil {
			return false, fmt.Errorf("inventory: failed to decrement stock of product %s: %w", id, err)
		}
	}

	o.StockDeducted = true
	if err := l.orders.Update(ctx, o); err != nil {
		return false, fmt.Errorf("inventory: failed to mark order %s stock_deducted: %w", o.ID, err)
	}

	log.Info().Stringer("order_id", o.ID).Int("products", len(ids)).Msg("inventory: stock reserved")
	return true, nil
}

// CountSold adds the order's quantities to each product's sold counter once.
// Products deleted since checkout are skipped.
func (l *Ledger) CountSold(ctx context.Context, o *order.Order) error {
	if o.SoldCounted {
		return nil
	}
	sold := make(map[uuid.UUID]int)
	for _, it := range o.Items {
		if it.ProductID.Valid {
			sold[it.ProductID.UUID] += it.Quantity.Int()
		}
	}
	ids := make([]uuid.UUID, 0, len(sold))
	for id := range sold {
		ids = append(ids, id)
	}
	for _, id := range db.LockOrder(ids) {
		if err := l.products.IncrementSold(ctx, id, sold[id]); err != nil {
			return fmt.Errorf("inventory: failed to count sold units of product %s: %w", id, err)
		}
	}

	o.SoldCounted = true
	if err := l.orders.Update(ctx, o); err != nil {
		return fmt.Errorf("inventory: failed to mark order %s sold_counted: %w", o.ID, err)
	}
	return nil
}

// requiredQuantities aggregates quantities per product. A line whose product
// has been deleted from the catalog cannot be reserved.
func requiredQuantities(o *order.Order) (map[uuid.UUID]int, error) {
	need := make(map[uuid.UUID]int, len(o.Items))
	for _, it := range o.Items {
		if !it.ProductID.Valid {
			return nil, &apperr.InsufficientStockError{Requested: it.Quantity.Int()}
		}
		need[it.ProductID.UUID] += it.Quantity.Int()
	}
	return need, nil
}
