package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrReservationPair is returned when a lead carries only half a reservation.
var ErrReservationPair = errors.New("availableForGroupId and claimExpiresAt must be set together")

// Reservation is an open first-to-claim window. GroupID and ExpiresAt together
// identify it; every write that closes a reservation compares against both.
type Reservation struct {
	GroupID   uuid.UUID
	ExpiresAt time.Time
}

// Expired reports whether the window has lapsed at now. The instant of
// ExpiresAt itself still counts as open, matching the sweep predicate
// claim_expires_at < now.
func (r Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Lead is the part of a person record the distribution engine touches.
type Lead struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	ConsumerName        string
	AssignedUserID      *uuid.UUID
	AssignedPondID      *uuid.UUID
	AvailableForGroupID *uuid.UUID
	ClaimExpiresAt      *time.Time
	EscalationHops      int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Reservation returns the open reservation, if any.
func (l Lead) Reservation() (Reservation, bool) {
	if l.AvailableForGroupID == nil || l.ClaimExpiresAt == nil {
		return Reservation{}, false
	}
	return Reservation{GroupID: *l.AvailableForGroupID, ExpiresAt: *l.ClaimExpiresAt}, true
}

// Validate checks the reservation pair invariant.
func (l Lead) Validate() error {
	if (l.AvailableForGroupID == nil) != (l.ClaimExpiresAt == nil) {
		return ErrReservationPair
	}
	return nil
}

// WithReservation returns a copy carrying r and no owner.
func (l Lead) WithReservation(r Reservation) Lead {
	groupID := r.GroupID
	expiresAt := r.ExpiresAt
	l.AvailableForGroupID = &groupID
	l.ClaimExpiresAt = &expiresAt
	l.AssignedUserID = nil
	l.AssignedPondID = nil
	return l
}

// WithoutReservation returns a copy with both reservation fields cleared.
func (l Lead) WithoutReservation() Lead {
	l.AvailableForGroupID = nil
	l.ClaimExpiresAt = nil
	return l
}

// AssignedToUser returns a copy owned by userID with no open reservation.
func (l Lead) AssignedToUser(userID uuid.UUID) Lead {
	l = l.WithoutReservation()
	id := userID
	l.AssignedUserID = &id
	l.AssignedPondID = nil
	return l
}

// AssignedToPond returns a copy parked in pondID with no open reservation.
func (l Lead) AssignedToPond(pondID uuid.UUID) Lead {
	l = l.WithoutReservation()
	id := pondID
	l.AssignedPondID = &id
	l.AssignedUserID = nil
	return l
}

// SameOwnership reports whether l and o agree on owner, pond and reservation.
func (l Lead) SameOwnership(o Lead) bool {
	return equalID(l.AssignedUserID, o.AssignedUserID) &&
		equalID(l.AssignedPondID, o.AssignedPondID) &&
		equalID(l.AvailableForGroupID, o.AvailableForGroupID) &&
		equalTime(l.ClaimExpiresAt, o.ClaimExpiresAt)
}

func equalID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
