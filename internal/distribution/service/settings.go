package service

import (
	"context"
	"errors"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/platform/apperr"
	"portal_lead_distribution/platform/sanitize"

	"github.com/google/uuid"
)

const maxGroupNameLength = 100

// GetGroup returns a group visible to organizationID.
func (s *Service) GetGroup(ctx context.Context, organizationID, groupID uuid.UUID) (domain.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, storeError("load group", "group", err)
	}
	if group.OrganizationID != organizationID {
		return domain.Group{}, apperr.NotFound("group not found")
	}
	return group, nil
}

// UpdateGroupSettings replaces a group's policy, window, members and
// fallbacks. A default-group link that would close a cycle is rejected.
func (s *Service) UpdateGroupSettings(ctx context.Context, organizationID uuid.UUID, in ports.GroupSettings) (domain.Group, error) {
	const op = "update group settings"

	current, err := s.GetGroup(ctx, organizationID, in.GroupID)
	if err != nil {
		return domain.Group{}, err
	}

	in.Name = sanitize.Truncate(in.Name, maxGroupNameLength)
	candidate := current
	if in.Name != "" {
		candidate.Name = in.Name
	}
	candidate.Policy = in.Policy
	candidate.ClaimWindowMinutes = in.ClaimWindowMinutes
	candidate.Members = in.Members
	candidate.DefaultUserID = in.DefaultUserID
	candidate.DefaultGroupID = in.DefaultGroupID
	candidate.DefaultPondID = in.DefaultPondID
	if err := candidate.ValidateSettings(); err != nil {
		return domain.Group{}, apperr.Validation(err.Error()).WithOp(op)
	}

	if in.DefaultGroupID != nil {
		if err := s.checkDefaultGroup(ctx, organizationID, candidate); err != nil {
			return domain.Group{}, err
		}
	}

	updated, err := s.store.UpdateGroupSettings(ctx, in)
	if err != nil {
		return domain.Group{}, storeError(op, "group", err)
	}
	s.log.WithContext(ctx).WithGroupID(updated.ID.String()).Info("group settings updated",
		"policy", updated.Policy, "members", len(updated.Members), "fallback", updated.Fallback().String())
	return updated, nil
}

func (s *Service) checkDefaultGroup(ctx context.Context, organizationID uuid.UUID, candidate domain.Group) error {
	const op = "update group settings"

	target, err := s.store.GetGroup(ctx, *candidate.DefaultGroupID)
	if errors.Is(err, ports.ErrNotFound) || (err == nil && target.OrganizationID != organizationID) {
		return apperr.Validation("default group not found").WithOp(op)
	}
	if err != nil {
		return storeError("load default group", "group", err)
	}

	var lookupErr error
	lookup := func(id uuid.UUID) *uuid.UUID {
		if id == candidate.ID {
			return candidate.DefaultGroupID
		}
		g, err := s.store.GetGroup(ctx, id)
		if err != nil {
			if !errors.Is(err, ports.ErrNotFound) {
				lookupErr = err
			}
			return nil
		}
		return g.DefaultGroupID
	}

	cycleErr := domain.DetectDefaultGroupCycle(candidate.ID, lookup)
	if lookupErr != nil {
		return storeError("load default group chain", "group", lookupErr)
	}
	var cycle *domain.DefaultGroupCycleError
	if errors.As(cycleErr, &cycle) {
		return apperr.Validation("default group chain would form a cycle").WithOp(op).WithDetails(cycle.Path)
	}
	return nil
}
