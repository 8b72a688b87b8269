package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
)

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func (r *postgresRepository) PointsForUpdate(ctx context.Context, userID uuid.UUID) (int64, error) {
	var points int64
	err := r.db.QueryRow(ctx, `SELECT points FROM user_points WHERE user_id = $1 FOR UPDATE`, userID).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("repository: failed to select points of user %s: %w", userID, err)
	}
	return points, nil
}

func (r *postgresRepository) AddPoints(ctx context.Context, userID uuid.UUID, delta int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_points (user_id, points) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET points = user_points.points + EXCLUDED.points`,
		userID, delta)
	if err != nil {
		return fmt.Errorf("repository: failed to add points for user %s: %w", userID, err)
	}
	return nil
}

func (r *postgresRepository) CreateUsage(ctx context.Context, u *Usage) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reward_usages (order_id, user_id, points, voucher_code, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.OrderID, u.UserID, u.Points, u.VoucherCode, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert reward usage: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetUsageForUpdate(ctx context.Context, orderID uuid.UUID) (*Usage, error) {
	var u Usage
	err := r.db.QueryRow(ctx, `
		SELECT order_id, user_id, points, voucher_code, created_at, restored_at
		FROM reward_usages WHERE order_id = $1 FOR UPDATE`, orderID).
		Scan(&u.OrderID, &u.UserID, &u.Points, &u.VoucherCode, &u.CreatedAt, &u.RestoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUsageNotFound
		}
		return nil, fmt.Errorf("repository: failed to select reward usage of order %s: %w", orderID, err)
	}
	return &u, nil
}

func (r *postgresRepository) MarkRestored(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE reward_usages SET restored_at = $1 WHERE order_id = $2`, at, orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to mark reward usage of order %s restored: %w", orderID, err)
	}
	return nil
}

func (r *postgresRepository) AddVoucherRedemptions(ctx context.Context, code string, delta int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO voucher_redemptions (code, times_used) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET times_used = voucher_redemptions.times_used + EXCLUDED.times_used`,
		code, delta)
	if err != nil {
		return fmt.Errorf("repository: failed to update redemptions of voucher %q: %w", code, err)
	}
	return nil
}
