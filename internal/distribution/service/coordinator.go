package service

import (
	"context"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/platform/apperr"

	"github.com/google/uuid"
)

// Distribute hands a lead to a group according to the group's policy.
// Escalation re-enters here when a group falls back to another group.
func (s *Service) Distribute(ctx context.Context, leadID, groupID uuid.UUID) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return storeError("load group", "group", err)
	}
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return storeError("load lead", "lead", err)
	}
	if lead.OrganizationID != group.OrganizationID {
		return apperr.Validation("lead and group belong to different organizations").WithOp("distribute lead")
	}

	log := s.log.WithContext(ctx).WithLead(leadID.String()).WithGroupID(groupID.String())
	log.Info("distributing lead", "policy", group.Policy, "members", len(group.Members))

	switch group.Policy {
	case domain.PolicyFirstToClaim:
		return s.reserveForGroup(ctx, lead, group)
	case domain.PolicyRoundRobin:
		return s.assignRoundRobin(ctx, lead, group)
	default:
		log.Error("group has unknown distribution policy", "policy", group.Policy)
		return apperr.Internal("group has unknown distribution policy").WithOp("distribute lead")
	}
}

// DistributeInOrganization is Distribute for a tenant-scoped caller; both the
// lead and the group must belong to organizationID.
func (s *Service) DistributeInOrganization(ctx context.Context, organizationID, leadID, groupID uuid.UUID) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return storeError("load group", "group", err)
	}
	if group.OrganizationID != organizationID {
		return apperr.NotFound("group not found")
	}
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return storeError("load lead", "lead", err)
	}
	if lead.OrganizationID != organizationID {
		return apperr.NotFound("lead not found")
	}
	return s.Distribute(ctx, leadID, groupID)
}

// GetLead returns a lead visible to organizationID.
func (s *Service) GetLead(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, storeError("load lead", "lead", err)
	}
	if lead.OrganizationID != organizationID {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}
