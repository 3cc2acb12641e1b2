package service

import (
	"context"
	"fmt"
	"time"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/events"
	"portal_lead_distribution/platform/apperr"
	"portal_lead_distribution/platform/sanitize"

	"github.com/google/uuid"
)

// expiryGrace puts the one-shot sweep strictly after the expiry instant,
// since a reservation is still claimable at claim_expires_at itself.
const expiryGrace = time.Second

const maxDisplayNameLength = 80

// Claim results recorded in metrics.
const (
	claimWon       = "won"
	claimLost      = "lost"
	claimExpired   = "expired"
	claimForbidden = "forbidden"
)

func (s *Service) reserveForGroup(ctx context.Context, lead domain.Lead, group domain.Group) error {
	log := s.log.WithContext(ctx).WithLead(lead.ID.String()).WithGroupID(group.ID.String())

	now := s.clock.Now()
	// Postgres keeps microseconds; the closing compare-and-set must see the
	// same instant we hand out here.
	reservation := domain.Reservation{
		GroupID:   group.ID,
		ExpiresAt: now.Add(group.ClaimWindow()).Truncate(time.Microsecond),
	}

	result, err := s.store.ReserveLead(ctx, lead.ID, reservation, now)
	if err != nil {
		return storeError("reserve lead", "lead", err)
	}
	if result.AlreadyOpen {
		log.Info("lead already reserved for group", "expiresAt", result.Lead.ClaimExpiresAt)
		return nil
	}
	if result.Superseded != nil {
		log.Info("replaced open reservation", "previousGroupId", result.Superseded.GroupID, "previousExpiresAt", result.Superseded.ExpiresAt)
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleClaimExpiry(ctx, reservation.ExpiresAt.Add(expiryGrace)); err != nil {
			log.Warn("claim expiry task not scheduled, periodic sweep will resolve it", "error", err)
		}
	}

	if len(group.Members) == 0 {
		log.Warn("first-to-claim group has no members, reservation will fall through on expiry")
	}

	s.publish(ctx, events.LeadReserved{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		GroupID:        group.ID,
		ExpiresAt:      reservation.ExpiresAt.Format(time.RFC3339),
		MemberCount:    len(group.Members),
	})

	s.notify(ctx, ports.Notification{
		Kind:           ports.NotificationLeadAvailable,
		OrganizationID: lead.OrganizationID,
		LeadID:         lead.ID,
		UserIDs:        group.Members,
		Title:          "New lead available",
		Message:        fmt.Sprintf("%s can be claimed in %s for the next %d minutes", displayName(lead), group.Name, group.ClaimWindowMinutes),
		ActionRef:      claimActionRef(lead.ID),
	})

	log.Info("lead reserved", "expiresAt", reservation.ExpiresAt)
	return nil
}

// Claim gives an open first-to-claim lead to userID. Exactly one concurrent
// caller wins; the others get a conflict (already claimed) or gone (window
// lapsed).
func (s *Service) Claim(ctx context.Context, organizationID, leadID, userID uuid.UUID) (domain.Lead, error) {
	const op = "claim lead"

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, storeError("load lead", "lead", err)
	}
	if lead.OrganizationID != organizationID {
		return domain.Lead{}, apperr.NotFound("lead not found").WithOp(op)
	}

	reservation, open := lead.Reservation()
	if !open {
		if lead.AssignedUserID != nil && *lead.AssignedUserID == userID {
			return lead, nil
		}
		s.recordClaim(claimLost)
		return domain.Lead{}, apperr.Conflict("lead is not open for claiming").WithOp(op)
	}

	group, err := s.store.GetGroup(ctx, reservation.GroupID)
	if err != nil {
		return domain.Lead{}, storeError("load group", "group", err)
	}
	if !group.HasMember(userID) {
		s.recordClaim(claimForbidden)
		return domain.Lead{}, apperr.Forbidden("only members of the reserving group can claim this lead").WithOp(op)
	}

	now := s.clock.Now()
	if reservation.Expired(now) {
		s.recordClaim(claimExpired)
		return domain.Lead{}, apperr.Gone("claim window has expired").WithOp(op)
	}

	claimed, ok, err := s.store.ClaimLead(ctx, leadID, reservation.GroupID, userID, now)
	if err != nil {
		return domain.Lead{}, storeError(op, "lead", err)
	}
	if !ok {
		return domain.Lead{}, s.claimLostError(ctx, leadID, userID, now)
	}

	s.recordClaim(claimWon)
	s.publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         claimed.ID,
		OrganizationID: claimed.OrganizationID,
		GroupID:        reservation.GroupID,
		UserID:         userID,
		Source:         events.SourceClaim,
	})
	s.log.WithContext(ctx).WithLead(leadID.String()).WithGroupID(reservation.GroupID.String()).Info("lead claimed", "userId", userID)
	return claimed, nil
}

// claimLostError explains a failed compare-and-set by re-reading the lead.
func (s *Service) claimLostError(ctx context.Context, leadID, userID uuid.UUID, now time.Time) error {
	const op = "claim lead"

	current, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		s.recordClaim(claimLost)
		return apperr.Conflict("lead was claimed by someone else").WithOp(op)
	}
	if r, open := current.Reservation(); open && r.Expired(now) {
		s.recordClaim(claimExpired)
		return apperr.Gone("claim window has expired").WithOp(op)
	}
	if current.AssignedUserID == nil && current.AssignedPondID == nil {
		if _, open := current.Reservation(); !open {
			s.recordClaim(claimExpired)
			return apperr.Gone("claim window has expired").WithOp(op)
		}
	}
	s.recordClaim(claimLost)
	return apperr.Conflict("lead was claimed by someone else").WithOp(op)
}

func displayName(lead domain.Lead) string {
	name := sanitize.Truncate(lead.ConsumerName, maxDisplayNameLength)
	if name == "" {
		return "A new lead"
	}
	return name
}

func claimActionRef(leadID uuid.UUID) string {
	return "/leads/" + leadID.String() + "/claim"
}
