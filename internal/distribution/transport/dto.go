package transport

import (
	"time"

	"portal_lead_distribution/internal/distribution/domain"

	"github.com/google/uuid"
)

// DistributeRequest routes a lead into a group.
type DistributeRequest struct {
	GroupID uuid.UUID `json:"groupId" validate:"required"`
}

// UpdateGroupSettingsRequest replaces a group's full configuration.
type UpdateGroupSettingsRequest struct {
	Name               string      `json:"name" validate:"required,min=1,max=100"`
	Policy             string      `json:"policy" validate:"required,oneof=first_to_claim round_robin"`
	ClaimWindowMinutes int         `json:"claimWindowMinutes" validate:"required,min=1,max=10080"`
	Members            []uuid.UUID `json:"members" validate:"max=500,unique"`
	DefaultUserID      *uuid.UUID  `json:"defaultUserId,omitempty"`
	DefaultGroupID     *uuid.UUID  `json:"defaultGroupId,omitempty"`
	DefaultPondID      *uuid.UUID  `json:"defaultPondId,omitempty"`
}

// LeadResponse is the distribution view of a lead.
type LeadResponse struct {
	ID                  uuid.UUID  `json:"id"`
	AssignedUserID      *uuid.UUID `json:"assignedUserId,omitempty"`
	AssignedPondID      *uuid.UUID `json:"assignedPondId,omitempty"`
	AvailableForGroupID *uuid.UUID `json:"availableForGroupId,omitempty"`
	ClaimExpiresAt      *time.Time `json:"claimExpiresAt,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// GroupResponse is a group with its ordered members.
type GroupResponse struct {
	ID                 uuid.UUID   `json:"id"`
	Name               string      `json:"name"`
	Policy             string      `json:"policy"`
	ClaimWindowMinutes int         `json:"claimWindowMinutes"`
	Members            []uuid.UUID `json:"members"`
	DefaultUserID      *uuid.UUID  `json:"defaultUserId,omitempty"`
	DefaultGroupID     *uuid.UUID  `json:"defaultGroupId,omitempty"`
	DefaultPondID      *uuid.UUID  `json:"defaultPondId,omitempty"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                  l.ID,
		AssignedUserID:      l.AssignedUserID,
		AssignedPondID:      l.AssignedPondID,
		AvailableForGroupID: l.AvailableForGroupID,
		ClaimExpiresAt:      l.ClaimExpiresAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func ToGroupResponse(g domain.Group) GroupResponse {
	members := g.Members
	if members == nil {
		members = []uuid.UUID{}
	}
	return GroupResponse{
		ID:                 g.ID,
		Name:               g.Name,
		Policy:             string(g.Policy),
		ClaimWindowMinutes: g.ClaimWindowMinutes,
		Members:            members,
		DefaultUserID:      g.DefaultUserID,
		DefaultGroupID:     g.DefaultGroupID,
		DefaultPondID:      g.DefaultPondID,
		UpdatedAt:          g.UpdatedAt,
	}
}
