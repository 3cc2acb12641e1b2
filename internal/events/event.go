// Package events defines the distribution domain events. The bus itself
// lives in platform/events.
package events

import (
	"portal_lead_distribution/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// AssignmentSource tells how a lead ended up with its owner.
type AssignmentSource string

const (
	SourceRoundRobin   AssignmentSource = "round_robin"
	SourceClaim        AssignmentSource = "claim"
	SourceFallbackUser AssignmentSource = "fallback_user"
)

// LeadReserved is published when a first-to-claim window opens.
type LeadReserved struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	GroupID        uuid.UUID `json:"groupId"`
	ExpiresAt      string    `json:"expiresAt"`
	MemberCount    int       `json:"memberCount"`
}

func (e LeadReserved) EventName() string { return "distribution.lead.reserved" }

// LeadAssigned is published when a lead gets a user owner.
type LeadAssigned struct {
	BaseEvent
	LeadID         uuid.UUID        `json:"leadId"`
	OrganizationID uuid.UUID        `json:"organizationId"`
	GroupID        uuid.UUID        `json:"groupId"`
	UserID         uuid.UUID        `json:"userId"`
	Source         AssignmentSource `json:"source"`
}

func (e LeadAssigned) EventName() string { return "distribution.lead.assigned" }

// LeadEscalated is published when an expired reservation is resolved through
// the group's fallback. Target is uuid.Nil for the unassigned outcome.
type LeadEscalated struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	FromGroupID    uuid.UUID `json:"fromGroupId"`
	Fallback       string    `json:"fallback"`
	Target         uuid.UUID `json:"target"`
	Hops           int       `json:"hops"`
}

func (e LeadEscalated) EventName() string { return "distribution.lead.escalated" }

// ReservationCleared is published when an expired reservation is dropped
// without escalation (unknown group or a group no longer first-to-claim).
type ReservationCleared struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	GroupID uuid.UUID `json:"groupId"`
	Reason  string    `json:"reason"`
}

func (e ReservationCleared) EventName() string { return "distribution.reservation.cleared" }
