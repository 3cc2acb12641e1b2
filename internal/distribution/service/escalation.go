package service

import (
	"context"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/events"

	"github.com/google/uuid"
)

// escalate resolves an expired reservation through the group's fallback.
// closed reports whether this call closed the reservation; false means a
// claim or another sweep got there first and nothing was done.
func (s *Service) escalate(ctx context.Context, lead domain.Lead, group domain.Group, r domain.Reservation) (closed bool, err error) {
	log := s.log.WithContext(ctx).WithLead(lead.ID.String()).WithGroupID(group.ID.String())

	fallback := group.Fallback()
	if fallback.Kind == domain.FallbackRedistributeToGroup && lead.EscalationHops >= s.opts.MaxEscalationHops {
		log.Warn("escalation hop limit reached, leaving lead unassigned", "hops", lead.EscalationHops, "nextGroupId", fallback.Target)
		fallback = domain.Unassigned()
	}

	var closure ports.Closure
	switch fallback.Kind {
	case domain.FallbackAssignToUser:
		target := fallback.Target
		closure.AssignUserID = &target
	case domain.FallbackAssignToPond:
		target := fallback.Target
		closure.AssignPondID = &target
	case domain.FallbackRedistributeToGroup:
		closure.CountEscalationHop = true
	}

	updated, ok, err := s.store.CloseReservation(ctx, lead.ID, r, closure)
	if err != nil {
		return false, storeError("close reservation", "lead", err)
	}
	if !ok {
		log.Debug("reservation already resolved, skipping escalation")
		return false, nil
	}

	s.publish(ctx, events.LeadEscalated{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		FromGroupID:    group.ID,
		Fallback:       fallback.Kind.String(),
		Target:         fallback.Target,
		Hops:           updated.EscalationHops,
	})
	log.Info("reservation escalated", "fallback", fallback.Kind.String(), "target", fallback.Target)

	switch fallback.Kind {
	case domain.FallbackAssignToUser:
		s.publish(ctx, events.LeadAssigned{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			OrganizationID: lead.OrganizationID,
			GroupID:        group.ID,
			UserID:         fallback.Target,
			Source:         events.SourceFallbackUser,
		})
		s.notify(ctx, ports.Notification{
			Kind:           ports.NotificationLeadAssigned,
			OrganizationID: lead.OrganizationID,
			LeadID:         lead.ID,
			UserIDs:        []uuid.UUID{fallback.Target},
			Title:          "Lead assigned to you",
			Message:        displayName(lead) + " was not claimed in " + group.Name + " and is now yours",
			ActionRef:      leadActionRef(lead.ID),
		})
	case domain.FallbackRedistributeToGroup:
		if err := s.Distribute(ctx, lead.ID, fallback.Target); err != nil {
			log.Error("redistribution to default group failed, lead left unassigned", "targetGroupId", fallback.Target, "error", err)
			return true, err
		}
	}
	return true, nil
}
