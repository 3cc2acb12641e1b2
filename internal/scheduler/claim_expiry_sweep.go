package scheduler

import (
	"context"
	"time"

	"portal_lead_distribution/platform/logger"
)

const defaultClaimSweepInterval = time.Minute

// ClaimExpirySweep periodically sweeps expired reservations. It backs up the
// one-shot tasks, which can be lost if enqueueing failed.
type ClaimExpirySweep struct {
	sweeper  ClaimSweeper
	lock     Lock
	log      *logger.Logger
	interval time.Duration
}

// NewClaimExpirySweep creates the periodic job. lock may be nil for a
// single-replica deployment.
func NewClaimExpirySweep(sweeper ClaimSweeper, lock Lock, log *logger.Logger, interval time.Duration) *ClaimExpirySweep {
	if interval <= 0 {
		interval = defaultClaimSweepInterval
	}
	return &ClaimExpirySweep{
		sweeper:  sweeper,
		lock:     lock,
		log:      log,
		interval: interval,
	}
}

func (s *ClaimExpirySweep) Run(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ClaimExpirySweep) sweep(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			s.log.Warn("claim sweep lock failed", "error", err)
			return
		}
		if !acquired {
			s.log.Debug("claim sweep skipped, another replica holds the lock")
			return
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("claim sweep lock release failed", "error", err)
			}
		}()
	}

	if _, err := s.sweeper.SweepExpiredClaims(ctx); err != nil {
		s.log.Warn("periodic claim sweep failed", "error", err)
	}
}
