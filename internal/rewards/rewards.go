// Package rewards records loyalty points and voucher consumption per order so
// that a cancelled order can give them back exactly once.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
)

var ErrUsageNotFound = fmt.Errorf("reward usage %w", apperr.ErrNotFound)

type Usage struct {
	OrderID     uuid.UUID  `json:"order_id" db:"order_id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Points      int64      `json:"points" db:"points"`
	VoucherCode string     `json:"voucher_code,omitempty" db:"voucher_code"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	RestoredAt  *time.Time `json:"restored_at,omitempty" db:"restored_at"`
}

func (u *Usage) Restored() bool {
	return u.RestoredAt != nil
}

type Repository interface {
	// PointsForUpdate returns the user's point balance with the row locked.
	// A user without a row has zero points.
	PointsForUpdate(ctx context.Context, userID uuid.UUID) (int64, error)
	AddPoints(ctx context.Context, userID uuid.UUID, delta int64) error
	CreateUsage(ctx context.Context, u *Usage) error
	GetUsageForUpdate(ctx context.Context, orderID uuid.UUID) (*Usage, error)
	MarkRestored(ctx context.Context, orderID uuid.UUID, at time.Time) error
	// AddVoucherRedemptions moves the redemption count of a voucher code.
	// Issuing vouchers and capping their use happen outside this engine.
	AddVoucherRedemptions(ctx context.Context, code string, delta int64) error
}

// Book applies point and voucher bookkeeping against a transaction-bound Repository.
type Book struct {
	repo Repository
}

func NewBook(repo Repository) *Book {
	return &Book{repo: repo}
}

// Spend records what the order consumed. Nothing is recorded for an order
// that used neither points nor a voucher.
func (b *Book) Spend(ctx context.Context, userID, orderID uuid.UUID, points int64, voucher string) error {
	if points < 0 {
		return apperr.Validation("points must not be negative")
	}
	if points == 0 && voucher == "" {
		return nil
	}
	if points > 0 {
		have, err := b.repo.PointsForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("rewards: failed to read points of user %s: %w", userID, err)
		}
		if have < points {
			return apperr.Validation("user %s has %d points, order uses %d", userID, have, points)
		}
		if err := b.repo.AddPoints(ctx, userID, -points); err != nil {
			return fmt.Errorf("rewards: failed to spend points of user %s: %w", userID, err)
		}
	}
	if voucher != "" {
		if err := b.repo.AddVoucherRedemptions(ctx, voucher, 1); err != nil {
			return fmt.Errorf("rewards: failed to redeem voucher %q: %w", voucher, err)
		}
	}
	u := &Usage{OrderID: orderID, UserID: userID, Points: points, VoucherCode: voucher, CreatedAt: time.Now().UTC()}
	if err := b.repo.CreateUsage(ctx, u); err != nil {
		return fmt.Errorf("rewards: failed to record usage of order %s: %w", orderID, err)
	}
	return nil
}

// Restore gives back what the order consumed. It reports whether anything
// was restored; a second call is a no-op.
func (b *Book) Restore(ctx context.Context, orderID uuid.UUID) (bool, error) {
	u, err := b.repo.GetUsageForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrUsageNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("rewards: failed to load usage of order %s: %w", orderID, err)
	}
	if u.Restored() {
		return false, nil
	}
	if u.Points > 0 {
		if err := b.repo.AddPoints(ctx, u.UserID, u.Points); err != nil {
			return false, fmt.Errorf("rewards: failed to restore points of user %s: %w", u.UserID, err)
		}
	}
	if u.VoucherCode != "" {
		if err := b.repo.AddVoucherRedemptions(ctx, u.VoucherCode, -1); err != nil {
			return false, fmt.Errorf("rewards: failed to give back voucher %q: %w", u.VoucherCode, err)
		}
	}
	if err := b.repo.MarkRestored(ctx, orderID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("rewards: failed to mark usage of order %s restored: %w", orderID, err)
	}
	log.Info().Stringer("order_id", orderID).Int64("points", u.Points).Str("voucher", u.VoucherCode).
		Msg("rewards: usage restored")
	return true, nil
}
