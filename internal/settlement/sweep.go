package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
)

type SweepResult struct {
	Scanned   int
	Approved  int
	Cancelled int
	// Deferred orders lacked stock but are younger than AutoCancelAfter.
	Deferred int
	Skipped  int
	Failed   int
}

// AutoApprovePending approves every order pending longer than
// AutoApproveAfter through the same guarded path as a seller approval.
// Orders that keep failing for lack of stock are cancelled once older than
// AutoCancelAfter. A concurrent human approval makes the sweep a no-op for
// that order.
//
// The queue is paged by (created_at, id) until exhausted, so orders
// deferred for stock never hide newer orders behind them.
func (s *service) AutoApprovePending(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	cutoff := now.Add(-s.cfg.AutoApproveAfter)
	var after order.PendingCursor
	for {
		page, err := s.runner.Read().Orders.ListPendingCreatedBefore(ctx, cutoff, after, s.cfg.SweepBatchSize)
		if err != nil {
			return res, fmt.Errorf("settlement: failed to list stale pending orders: %w", err)
		}
		res.Scanned += len(page)

		for _, c := range page {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			s.sweepOne(ctx, c, now, &res)
		}
		if len(page) < s.cfg.SweepBatchSize {
			break
		}
		after = page[len(page)-1]
	}

	if res.Scanned > 0 {
		log.Info().Int("scanned", res.Scanned).Int("approved", res.Approved).Int("cancelled", res.Cancelled).
			Int("deferred", res.Deferred).Int("skipped", res.Skipped).Int("failed", res.Failed).
			Msg("settlement: auto-approve sweep finished")
	}
	return res, nil
}

func (s *service) sweepOne(ctx context.Context, c order.PendingCursor, now time.Time, res *SweepResult) {
	_, err := s.ApproveOrder(ctx, c.ID, actor.System)
	switch {
	case err == nil:
		res.Approved++
	case errors.Is(err, apperr.ErrInsufficientStock):
		if c.CreatedAt.After(now.Add(-s.cfg.AutoCancelAfter)) {
			res.Deferred++
			return
		}
		if _, cancelErr := s.CancelOrder(ctx, c.ID, actor.System); cancelErr != nil {
			if errors.Is(cancelErr, apperr.ErrInvalidTransition) {
				res.Skipped++
			} else {
				res.Failed++
			}
			return
		}
		res.Cancelled++
	case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrNotFound):
		res.Skipped++
	default:
		res.Failed++
	}
}
