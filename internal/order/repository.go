package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
)

var (
	ErrOrderNotFound = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("order item %w", apperr.ErrNotFound)
)

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetForUpdate loads the order and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error)
	Update(ctx context.Context, order *Order) error
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status ItemStatus) error
	// ListPendingCreatedBefore pages through pending orders created before
	// cutoff in (created_at, id) order, starting strictly after the cursor.
	// The zero cursor starts from the oldest order.
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, after PendingCursor, limit int) ([]PendingCursor, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]Order, error)
}

// PendingCursor is a position in the pending queue.
type PendingCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

const orderColumns = `id, buyer_id, recipient_name, phone, address, payment_method, shipping_fee, total_price,
		points_used, voucher_code, status, is_disputed, stock_deducted, sold_counted, is_deleted, created_at, updated_at`

const itemColumns = `id, order_id, product_id, seller_id, product_name, price, quantity, status, created_at`

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.BuyerID, o.Shipping.RecipientName, o.Shipping.Phone, o.Shipping.Address,
		string(o.PaymentMethod), o.ShippingFee, o.TotalPrice, o.PointsUsed, o.VoucherCode,
		string(o.Status), o.IsDisputed, o.StockDeducted, o.SoldCounted, o.IsDeleted, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == uuid.Nil {
			itemID, genErr := uuid.NewV4()
			if genErr != nil {
				return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			}
			item.ID = itemID
		}
		item.OrderID = o.ID
		item.CreatedAt = now

		_, err = r.db.Exec(ctx, `
			INSERT INTO order_items (`+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, item.OrderID, item.ProductID, item.SellerID, item.ProductName,
			item.Price, item.Quantity, string(item.Status), item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.get(ctx, id, "")
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *postgresRepository) get(ctx context.Context, id uuid.UUID, lockClause string) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+lockClause, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	items, err := r.itemsFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	return o, nil
}

func (r *postgresRepository) itemsFor(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]Item, len(orderIDs))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, itemID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order item %s: %w", itemID, err)
	}
	return item, nil
}

func (r *postgresRepository) Update(ctx context.Context, o *Order) error {
	o.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $1, is_disputed = $2, stock_deducted = $3, sold_counted = $4, is_deleted = $5, updated_at = $6
		WHERE id = $7`,
		string(o.Status), o.IsDisputed, o.StockDeducted, o.SoldCounted, o.IsDeleted, o.UpdatedAt, o.ID,
	)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("repository: failed to update order")
		return fmt.Errorf("repository: failed to update order %s: %w", o.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status ItemStatus) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE order_items SET status = $1 WHERE id = $2`, string(status), itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to update order item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, after PendingCursor, limit int) ([]PendingCursor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, created_at FROM orders
		WHERE status = $1 AND created_at < $2 AND NOT is_deleted
			AND (created_at, id) > ($3, $4)
		ORDER BY created_at, id
		LIMIT $5`, string(StatusPending), cutoff, after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query pending orders: %w", err)
	}
	defer rows.Close()

	var page []PendingCursor
	for rows.Next() {
		var c PendingCursor
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan pending order id: %w", err)
		}
		page = append(page, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating pending orders: %w", err)
	}
	return page, nil
}

func (r *postgresRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE buyer_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for buyer %s: %w", buyerID, err)
	}
	defer rows.Close()

	var orders []Order
	var ids []uuid.UUID
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for buyer %s: %w", buyerID, err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for buyer %s: %w", buyerID, err)
	}
	if len(ids) == 0 {
		return []Order{}, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var payment, status string
	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.Shipping.RecipientName,
		&o.Shipping.Phone,
		&o.Shipping.Address,
		&payment,
		&o.ShippingFee,
		&o.TotalPrice,
		&o.PointsUsed,
		&o.VoucherCode,
		&status,
		&o.IsDisputed,
		&o.StockDeducted,
		&o.SoldCounted,
		&o.IsDeleted,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = PaymentMethod(payment)
	o.Status = Status(status)
	return &o, nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	var status string
	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.SellerID,
		&item.ProductName,
		&item.Price,
		&item.Quantity,
		&status,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = ItemStatus(status)
	return &item, nil
}
