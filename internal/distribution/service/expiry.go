package service

import (
	"context"
	"errors"
	"time"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/events"
)

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	Scanned  int
	Resolved int
	Failed   int
}

// SweepExpiredClaims closes every reservation whose window has passed, in
// bounded batches. It is safe to run concurrently with itself and with
// claims: each close is a compare-and-set on the reservation, so a lead is
// resolved at most once.
func (s *Service) SweepExpiredClaims(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	var result SweepResult
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveSweep(time.Since(started), result.Resolved)
		}
	}()

	for batch := 0; batch < s.opts.SweepMaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		now := s.clock.Now()
		leads, err := s.store.ListExpiredReservations(ctx, now, s.opts.SweepBatchSize)
		if err != nil {
			return result, storeError("list expired reservations", "lead", err)
		}
		if len(leads) == 0 {
			break
		}

		progressed := 0
		for _, lead := range leads {
			result.Scanned++
			closed, err := s.expireReservation(ctx, lead)
			if closed {
				progressed++
			}
			switch {
			case err != nil:
				result.Failed++
				s.log.WithLead(lead.ID.String()).Error("failed to resolve expired reservation", "error", err)
			case closed:
				result.Resolved++
			}
		}

		if len(leads) < s.opts.SweepBatchSize || progressed == 0 {
			break
		}
	}

	if result.Scanned > 0 {
		s.log.Info("claim expiry sweep finished", "scanned", result.Scanned, "resolved", result.Resolved, "failed", result.Failed)
	}
	return result, nil
}

func (s *Service) expireReservation(ctx context.Context, lead domain.Lead) (bool, error) {
	r, open := lead.Reservation()
	if !open {
		return false, nil
	}

	group, err := s.store.GetGroup(ctx, r.GroupID)
	if errors.Is(err, ports.ErrNotFound) {
		return s.clearReservation(ctx, lead, r, "group_not_found")
	}
	if err != nil {
		return false, storeError("load group", "group", err)
	}

	if group.Policy != domain.PolicyFirstToClaim {
		return s.clearReservation(ctx, lead, r, "group_policy_changed")
	}
	return s.escalate(ctx, lead, group, r)
}

func (s *Service) clearReservation(ctx context.Context, lead domain.Lead, r domain.Reservation, reason string) (bool, error) {
	_, ok, err := s.store.CloseReservation(ctx, lead.ID, r, ports.Closure{})
	if err != nil {
		return false, storeError("clear reservation", "lead", err)
	}
	if !ok {
		return false, nil
	}
	s.publish(ctx, events.ReservationCleared{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		GroupID:   r.GroupID,
		Reason:    reason,
	})
	s.log.WithLead(lead.ID.String()).WithGroupID(r.GroupID.String()).Info("expired reservation cleared", "reason", reason)
	return true, nil
}
