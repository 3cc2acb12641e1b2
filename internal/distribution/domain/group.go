// Package domain holds the lead distribution model: groups, leads,
// reservations and the fallback chain. It has no infrastructure dependencies.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Policy selects how a group hands out new leads.
type Policy string

const (
	PolicyFirstToClaim Policy = "first_to_claim"
	PolicyRoundRobin   Policy = "round_robin"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyFirstToClaim || p == PolicyRoundRobin
}

// InitialRotationCursor makes the first round-robin assignment land on index 0.
const InitialRotationCursor = -1

// Group is a set of users that receives leads under one policy.
type Group struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	Name               string
	Policy             Policy
	ClaimWindowMinutes int
	RotationCursor     int
	// Members is ordered; the order is the rotation sequence.
	Members        []uuid.UUID
	DefaultUserID  *uuid.UUID
	DefaultGroupID *uuid.UUID
	DefaultPondID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClaimWindow returns the reservation length for first-to-claim.
func (g Group) ClaimWindow() time.Duration {
	return time.Duration(g.ClaimWindowMinutes) * time.Minute
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID uuid.UUID) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// NextRotationIndex returns the member index that follows cursor. A cursor
// outside [-1, n) (members removed since the last assignment) still maps into
// range. Returns -1 when there are no members.
func NextRotationIndex(cursor, memberCount int) int {
	if memberCount <= 0 {
		return -1
	}
	if cursor < InitialRotationCursor {
		cursor = InitialRotationCursor
	}
	return (cursor + 1) % memberCount
}
