// Package sweeper drives the timer-based auto-approval of stale orders.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
)

// Sweepable is the slice of settlement.Service the sweeper drives.
type Sweepable interface {
	AutoApprovePending(ctx context.Context, now time.Time) (settlement.SweepResult, error)
}

// Lease keeps replicas from sweeping concurrently.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// LocalLease always grants the lease; use it when only one replica runs.
type LocalLease struct{}

func (LocalLease) Acquire(context.Context, time.Duration) (bool, error) { return true, nil }
func (LocalLease) Release(context.Context) error { return nil }

type Sweeper struct {
	svc      Sweepable
	interval time.Duration
	lease    Lease
	now      func() time.Time
}

func New(svc Sweepable, interval time.Duration, lease Lease) *Sweeper {
	if lease == nil {
		lease = LocalLease{}
	}
	return &Sweeper{svc: svc, interval: interval, lease: lease, now: func() time.Time { return time.Now().UTC() }}
}

// Run sweeps once per interval until ctx is cancelled. Sweep failures are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("sweeper: started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper: stopped")
			return nil
		case <-ticker.C:
			if _, _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("sweeper: sweep failed")
			}
		}
	}
}

// Tick runs one sweep if the lease is granted. The boolean reports whether
// this replica swept.
func (s *Sweeper) Tick(ctx context.Context) (settlement.SweepResult, bool, error) {
	ok, err := s.lease.Acquire(ctx, s.interval)
	if err != nil {
		return settlement.SweepResult{}, false, err
	}
	if !ok {
		log.Debug().Msg("sweeper: lease held by another replica")
		return settlement.SweepResult{}, false, nil
	}
	defer func() {
		if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("sweeper: failed to release lease")
		}
	}()

	res, err := s.svc.AutoApprovePending(ctx, s.now())
	return res, true, err
}
