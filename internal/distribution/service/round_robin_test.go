package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/memory"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/platform/apperr"
	"portal_lead_distribution/platform/logger"

	"github.com/google/uuid"
)

func TestRoundRobinCoversMembersInOrder(t *testing.T) {
	h := newHarness(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g := h.group(domain.PolicyRoundRobin, a, b, c)

	want := []uuid.UUID{a, b, c, a}
	for i, expected := range want {
		l := h.lead()
		if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
			t.Fatalf("distribute %d: %v", i, err)
		}
		got := h.reload(t, l.ID)
		if got.AssignedUserID == nil || *got.AssignedUserID != expected {
			t.Fatalf("assignment %d: expected %s, got %v", i, expected, got.AssignedUserID)
		}
	}

	stored, _ := h.store.GetGroup(context.Background(), g.ID)
	if stored.RotationCursor != 0 {
		t.Fatalf("expected cursor 0 after four assignments, got %d", stored.RotationCursor)
	}
	if h.notifier.count() != 4 {
		t.Fatalf("expected one notification per assignment, got %d", h.notifier.count())
	}
}

func TestRoundRobinConcurrentAssignmentsDoNotCollide(t *testing.T) {
	h := newHarness(t)
	members := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	g := h.group(domain.PolicyRoundRobin, members...)

	const calls = 30
	leads := make([]domain.Lead, calls)
	for i := range leads {
		leads[i] = h.lead()
	}

	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for _, l := range leads {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			errs <- h.svc.Distribute(context.Background(), id, g.ID)
		}(l.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("distribute: %v", err)
		}
	}

	perMember := make(map[uuid.UUID]int)
	for _, l := range leads {
		got := h.reload(t, l.ID)
		if got.AssignedUserID == nil {
			t.Fatalf("lead %s left unassigned", l.ID)
		}
		perMember[*got.AssignedUserID]++
	}
	for _, m := range members {
		if perMember[m] != calls/len(members) {
			t.Fatalf("expected %d leads per member, got %v", calls/len(members), perMember)
		}
	}
}

func TestRoundRobinEmptyGroupLeavesLeadAlone(t *testing.T) {
	h := newHarness(t)
	g := h.group(domain.PolicyRoundRobin)
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("expected empty group to be non-fatal, got %v", err)
	}
	got := h.reload(t, l.ID)
	if got.AssignedUserID != nil || got.AvailableForGroupID != nil {
		t.Fatal("expected lead to stay untouched")
	}
	stored, _ := h.store.GetGroup(context.Background(), g.ID)
	if stored.RotationCursor != domain.InitialRotationCursor {
		t.Fatalf("expected cursor unchanged, got %d", stored.RotationCursor)
	}
}

func TestRoundRobinClearsOpenReservation(t *testing.T) {
	h := newHarness(t)
	ftc := h.group(domain.PolicyFirstToClaim, uuid.New())
	member := uuid.New()
	rr := h.group(domain.PolicyRoundRobin, member)
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, ftc.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := h.svc.Distribute(context.Background(), l.ID, rr.ID); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	got := h.reload(t, l.ID)
	if _, open := got.Reservation(); open {
		t.Fatal("expected assignment to close the reservation")
	}
	if got.AssignedUserID == nil || *got.AssignedUserID != member {
		t.Fatalf("expected lead owned by %s, got %v", member, got.AssignedUserID)
	}
}

func TestNotificationFailureDoesNotFailAssignment(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = context.DeadlineExceeded
	member := uuid.New()
	g := h.group(domain.PolicyRoundRobin, member)
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("expected notifier error to be swallowed, got %v", err)
	}
	if got := h.reload(t, l.ID); got.AssignedUserID == nil || *got.AssignedUserID != member {
		t.Fatal("expected assignment to persist despite notification failure")
	}
}

// claimFirstStore lets a claim win just before the round-robin transaction.
type claimFirstStore struct {
	*memory.Store
	leadID, groupID, userID uuid.UUID
	at                      func() time.Time
}

func (s *claimFirstStore) InGroupTx(ctx context.Context, fn func(ctx context.Context, tx ports.GroupTx) error) error {
	if _, _, err := s.ClaimLead(ctx, s.leadID, s.groupID, s.userID, s.at()); err != nil {
		return err
	}
	return s.Store.InGroupTx(ctx, fn)
}

func TestRoundRobinDoesNotOverwriteConcurrentClaim(t *testing.T) {
	h := newHarness(t)
	claimer := uuid.New()
	pool := h.group(domain.PolicyFirstToClaim, claimer)
	rotation := h.group(domain.PolicyRoundRobin, uuid.New(), uuid.New())
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, pool.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	store := &claimFirstStore{Store: h.store, leadID: l.ID, groupID: pool.ID, userID: claimer, at: h.clock.Now}
	svc := New(store, nil, logger.Discard(), Options{})
	svc.SetClock(h.clock)

	err := svc.Distribute(context.Background(), l.ID, rotation.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got := h.reload(t, l.ID)
	if got.AssignedUserID == nil || *got.AssignedUserID != claimer {
		t.Fatalf("expected claim winner kept, got %v", got.AssignedUserID)
	}
	stored, _ := h.store.GetGroup(context.Background(), rotation.ID)
	if stored.RotationCursor != domain.InitialRotationCursor {
		t.Fatalf("expected rotation cursor untouched, got %d", stored.RotationCursor)
	}
}
