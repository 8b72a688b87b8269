package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/rewards"
)

type rewardsRepo struct{ v view }

func (r rewardsRepo) PointsForUpdate(_ context.Context, userID uuid.UUID) (int64, error) {
	var points int64
	err := r.v.with(func(st *state) error {
		points = st.points[userID]
		return nil
	})
	return points, err
}

func (r rewardsRepo) AddPoints(_ context.Context, userID uuid.UUID, delta int64) error {
	return r.v.with(func(st *state) error {
		st.points[userID] += delta
		return nil
	})
}

func (r rewardsRepo) CreateUsage(_ context.Context, u *rewards.Usage) error {
	return r.v.with(func(st *state) error {
		if _, exists := st.usages[u.OrderID]; exists {
			return apperr.ErrConflict
		}
		st.usages[u.OrderID] = *u
		return nil
	})
}

func (r rewardsRepo) GetUsageForUpdate(_ context.Context, orderID uuid.UUID) (*rewards.Usage, error) {
	var out *rewards.Usage
	err := r.v.with(func(st *state) error {
		u, ok := st.usages[orderID]
		if !ok {
			return rewards.ErrUsageNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r rewardsRepo) MarkRestored(_ context.Context, orderID uuid.UUID, at time.Time) error {
	return r.v.with(func(st *state) error {
		u, ok := st.usages[orderID]
		if !ok {
			return rewards.ErrUsageNotFound
		}
		u.RestoredAt = &at
		st.usages[orderID] = u
		return nil
	})
}

func (r rewardsRepo) AddVoucherRedemptions(_ context.Context, code string, delta int64) error {
	return r.v.with(func(st *state) error {
		if st.vouchers[code]+delta < 0 {
			return apperr.Validation("voucher %q has no redemption to give back", code)
		}
		st.vouchers[code] += delta
		return nil
	})
}
