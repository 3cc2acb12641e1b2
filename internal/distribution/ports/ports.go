// Package ports defines what the distribution engine needs from the outside:
// a transactional store, a notification channel and a delayed-task scheduler.
package ports

import (
	"context"
	"errors"
	"time"

	"portal_lead_distribution/internal/distribution/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by stores when a group or lead does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLeadChanged is returned when a lead's owner or reservation no longer
	// matches the snapshot a write was based on.
	ErrLeadChanged = errors.New("lead changed concurrently")
)

// GroupTx is the view of the store inside a transaction that holds the lock
// on one group row.
type GroupTx interface {
	// LockGroup loads the group and holds its row lock until the
	// transaction ends. The returned cursor is the committed value.
	LockGroup(ctx context.Context, groupID uuid.UUID) (domain.Group, error)
	SetRotationCursor(ctx context.Context, groupID uuid.UUID, cursor int) error
	// AssignLeadToUser sets the owner, clears any reservation and resets
	// the escalation hop count, provided the lead's ownership still matches
	// observed. Otherwise it returns ErrLeadChanged.
	AssignLeadToUser(ctx context.Context, observed domain.Lead, userID uuid.UUID) (domain.Lead, error)
}

// ReserveResult describes what ReserveLead did.
type ReserveResult struct {
	Lead domain.Lead
	// AlreadyOpen is set when an unexpired reservation for the same group
	// existed; the lead was left untouched.
	AlreadyOpen bool
	// Superseded holds a reservation for another group that was replaced.
	Superseded *domain.Reservation
}

// Closure is the write applied when a reservation is closed without a claim.
// Both targets nil means the lead ends up unowned.
type Closure struct {
	AssignUserID *uuid.UUID
	AssignPondID *uuid.UUID
	// CountEscalationHop increments the hop counter; otherwise it is reset.
	CountEscalationHop bool
}

// GroupSettings is the full replaceable configuration of a group.
type GroupSettings struct {
	GroupID            uuid.UUID
	Name               string
	Policy             domain.Policy
	ClaimWindowMinutes int
	Members            []uuid.UUID
	DefaultUserID      *uuid.UUID
	DefaultGroupID     *uuid.UUID
	DefaultPondID      *uuid.UUID
}

// Store is the persistence gateway. Every method is atomic on its own;
// InGroupTx spans several writes under one group row lock.
type Store interface {
	GetGroup(ctx context.Context, id uuid.UUID) (domain.Group, error)
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)

	InGroupTx(ctx context.Context, fn func(ctx context.Context, tx GroupTx) error) error

	// ReserveLead opens a reservation on the lead, replacing one for a
	// different group (or an expired one) in the same transaction.
	ReserveLead(ctx context.Context, leadID uuid.UUID, r domain.Reservation, now time.Time) (ReserveResult, error)

	// ClaimLead assigns userID if the lead is still reserved for groupID and
	// the window has not passed at now. ok is false when the claim lost.
	ClaimLead(ctx context.Context, leadID, groupID, userID uuid.UUID, now time.Time) (lead domain.Lead, ok bool, err error)

	// ListExpiredReservations returns up to limit leads whose reservation
	// expired strictly before now, oldest first.
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)

	// CloseReservation applies c if the lead still holds exactly r.
	// ok is false when the reservation was already claimed or closed.
	CloseReservation(ctx context.Context, leadID uuid.UUID, r domain.Reservation, c Closure) (lead domain.Lead, ok bool, err error)

	UpdateGroupSettings(ctx context.Context, s GroupSettings) (domain.Group, error)
}

// NotificationKind tells recipients whether the lead is theirs or up for grabs.
type NotificationKind string

const (
	NotificationLeadAvailable NotificationKind = "lead_available"
	NotificationLeadAssigned  NotificationKind = "lead_assigned"
)

// Notification is a message for a set of users about one lead.
type Notification struct {
	Kind           NotificationKind
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	UserIDs        []uuid.UUID
	Title          string
	Message        string
	ActionRef      string
}

// Notifier delivers notifications. Delivery is best effort; callers log
// errors and carry on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ExpiryScheduler arranges a one-shot expiry sweep at a point in time.
type ExpiryScheduler interface {
	ScheduleClaimExpiry(ctx context.Context, at time.Time) error
}
