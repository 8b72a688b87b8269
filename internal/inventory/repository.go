package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
)

var ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	// LockProducts takes FOR UPDATE locks on ids, which must already be in
	// db.LockOrder order. Missing products are absent from the result.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementSold(ctx context.Context, id uuid.UUID, qty int) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

const productColumns = `id, seller_id, name, price, stock, sold_count, is_deleted, created_at`

func (r *postgresRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}
	p.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.SellerID, p.Name, p.Price, p.Stock, p.SoldCount, p.IsDeleted, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %s: %w", id, err)
	}
	return p, nil
}

func (r *postgresRepository) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	locked := make(map[uuid.UUID]*Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan locked product: %w", err)
		}
		locked[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating locked products: %w", err)
	}
	return locked, nil
}

func (r *postgresRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	// The stock >= qty predicate backs the CHECK constraint; a miss here means
	// the caller skipped LockProducts.
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE products SET stock = stock - $1
		WHERE id = $2 AND stock >= $1`, qty, id)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock of product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return &apperr.InsufficientStockError{ProductID: id, Requested: qty}
	}
	return nil
}

func (r *postgresRepository) IncrementSold(ctx context.Context, id uuid.UUID, qty int) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET sold_count = sold_count + $1 WHERE id = $2`, qty, id)
	if err != nil {
		return fmt.Errorf("repository: failed to increment sold count of product %s: %w", id, err)
	}
	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Stock, &p.SoldCount, &p.IsDeleted, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
