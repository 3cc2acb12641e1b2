package service

import (
	"context"
	"errors"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/events"
	"portal_lead_distribution/platform/apperr"

	"github.com/google/uuid"
)

var errNoMembers = errors.New("group has no members")

// assignRoundRobin gives the lead to the member after the stored cursor.
// The cursor is read and advanced under the group row lock, so concurrent
// calls hand out consecutive members.
func (s *Service) assignRoundRobin(ctx context.Context, lead domain.Lead, group domain.Group) error {
	log := s.log.WithContext(ctx).WithLead(lead.ID.String()).WithGroupID(group.ID.String())

	var (
		assignee uuid.UUID
		index    int
	)
	err := s.store.InGroupTx(ctx, func(ctx context.Context, tx ports.GroupTx) error {
		locked, err := tx.LockGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		index = domain.NextRotationIndex(locked.RotationCursor, len(locked.Members))
		if index < 0 {
			return errNoMembers
		}
		assignee = locked.Members[index]
		if _, err := tx.AssignLeadToUser(ctx, lead, assignee); err != nil {
			return err
		}
		return tx.SetRotationCursor(ctx, group.ID, index)
	})
	if errors.Is(err, errNoMembers) {
		log.Warn("round-robin group has no members, lead left as is")
		return nil
	}
	if errors.Is(err, ports.ErrLeadChanged) {
		log.Warn("lead changed during round-robin assignment, rotation not advanced")
		return apperr.Conflict("lead was claimed or reassigned while distributing").WithOp("assign lead")
	}
	if err != nil {
		return storeError("assign lead", "lead", err)
	}

	s.publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		GroupID:        group.ID,
		UserID:         assignee,
		Source:         events.SourceRoundRobin,
	})
	s.notify(ctx, ports.Notification{
		Kind:           ports.NotificationLeadAssigned,
		OrganizationID: lead.OrganizationID,
		LeadID:         lead.ID,
		UserIDs:        []uuid.UUID{assignee},
		Title:          "Lead assigned to you",
		Message:        displayName(lead) + " was assigned to you by " + group.Name,
		ActionRef:      leadActionRef(lead.ID),
	})

	log.Info("lead assigned by rotation", "userId", assignee, "index", index)
	return nil
}

func leadActionRef(leadID uuid.UUID) string {
	return "/leads/" + leadID.String()
}
