package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/platform/apperr"

	"github.com/google/uuid"
)

func TestFirstToClaimReservesAndNotifiesMembers(t *testing.T) {
	h := newHarness(t)
	u1, u2 := uuid.New(), uuid.New()
	g := h.group(domain.PolicyFirstToClaim, u1, u2)
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	got := h.reload(t, l.ID)
	r, open := got.Reservation()
	if !open || r.GroupID != g.ID {
		t.Fatalf("expected reservation for %s, got %+v", g.ID, got)
	}
	if !r.ExpiresAt.Equal(testNow.Add(5 * time.Minute)) {
		t.Fatalf("expected expiry now+5m, got %s", r.ExpiresAt)
	}

	if h.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", h.notifier.count())
	}
	n := h.notifier.last()
	if len(n.UserIDs) != 2 || n.UserIDs[0] != u1 || n.UserIDs[1] != u2 {
		t.Fatalf("expected both members notified, got %v", n.UserIDs)
	}
	if n.ActionRef != "/leads/"+l.ID.String()+"/claim" {
		t.Fatalf("unexpected action ref %q", n.ActionRef)
	}
	if n.Message != "Jan de Vries can be claimed in Sales for the next 5 minutes" {
		t.Fatalf("unexpected message %q", n.Message)
	}

	if len(h.scheduler.at) != 1 || !h.scheduler.at[0].After(r.ExpiresAt) {
		t.Fatalf("expected one expiry task after %s, got %v", r.ExpiresAt, h.scheduler.at)
	}
}

func TestFirstToClaimNotificationStripsMarkup(t *testing.T) {
	h := newHarness(t)
	g := h.group(domain.PolicyFirstToClaim, uuid.New())
	l := domain.Lead{ID: uuid.New(), OrganizationID: h.org, ConsumerName: "<img src=x>Piet"}
	h.store.PutLead(l)

	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if msg := h.notifier.last().Message; msg != "Piet can be claimed in Sales for the next 5 minutes" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestFirstToClaimKeepsOpenReservationOnRepeat(t *testing.T) {
	h := newHarness(t)
	g := h.group(domain.PolicyFirstToClaim, uuid.New())
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("first distribute: %v", err)
	}
	first := h.reload(t, l.ID)

	h.clock.Add(time.Minute)
	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	second := h.reload(t, l.ID)

	if !first.ClaimExpiresAt.Equal(*second.ClaimExpiresAt) {
		t.Fatal("expected repeat distribution to keep the original window")
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected no second notification, got %d", h.notifier.count())
	}
}

func TestFirstToClaimSupersedesOtherGroupReservation(t *testing.T) {
	h := newHarness(t)
	g1 := h.group(domain.PolicyFirstToClaim, uuid.New())
	g2 := h.group(domain.PolicyFirstToClaim, uuid.New())
	l := h.lead()

	_ = h.svc.Distribute(context.Background(), l.ID, g1.ID)
	if err := h.svc.Distribute(context.Background(), l.ID, g2.ID); err != nil {
		t.Fatalf("distribute to second group: %v", err)
	}

	got := h.reload(t, l.ID)
	if *got.AvailableForGroupID != g2.ID {
		t.Fatalf("expected reservation to move to %s, got %s", g2.ID, got.AvailableForGroupID)
	}
}

func TestSchedulerFailureDoesNotFailReservation(t *testing.T) {
	h := newHarness(t)
	h.scheduler.err = context.Canceled
	g := h.group(domain.PolicyFirstToClaim, uuid.New())
	l := h.lead()

	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("expected scheduling error to be logged only, got %v", err)
	}
	if _, open := h.reload(t, l.ID).Reservation(); !open {
		t.Fatal("expected reservation to persist")
	}
}

func TestConcurrentClaimsHaveExactlyOneWinner(t *testing.T) {
	h := newHarness(t)
	members := make([]uuid.UUID, 12)
	for i := range members {
		members[i] = uuid.New()
	}
	g := h.group(domain.PolicyFirstToClaim, members...)
	l := h.lead()
	if err := h.svc.Distribute(context.Background(), l.ID, g.ID); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losers  int
	)
	for _, m := range members {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := h.svc.Claim(context.Background(), h.org, l.ID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, userID)
			case apperr.Is(err, apperr.KindConflict), apperr.Is(err, apperr.KindGone):
				losers++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(m)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	if losers != len(members)-1 {
		t.Fatalf("expected %d losers, got %d", len(members)-1, losers)
	}
	got := h.reload(t, l.ID)
	if got.AssignedUserID == nil || *got.AssignedUserID != winners[0] {
		t.Fatal("expected stored owner to match the winner")
	}
	if _, open := got.Reservation(); open {
		t.Fatal("expected claim to close the reservation")
	}
}

func TestClaimRules(t *testing.T) {
	h := newHarness(t)
	member := uuid.New()
	g := h.group(domain.PolicyFirstToClaim, member)

	t.Run("non-member is forbidden", func(t *testing.T) {
		l := h.lead()
		_ = h.svc.Distribute(context.Background(), l.ID, g.ID)
		_, err := h.svc.Claim(context.Background(), h.org, l.ID, uuid.New())
		if !apperr.Is(err, apperr.KindForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("claim at expiry instant succeeds", func(t *testing.T) {
		h.clock.Set(testNow)
		l := h.lead()
		_ = h.svc.Distribute(context.Background(), l.ID, g.ID)
		h.clock.Set(testNow.Add(5 * time.Minute))
		if _, err := h.svc.Claim(context.Background(), h.org, l.ID, member); err != nil {
			t.Fatalf("expected claim at the boundary to win, got %v", err)
		}
	})

	t.Run("claim after expiry is gone", func(t *testing.T) {
		h.clock.Set(testNow)
		l := h.lead()
		_ = h.svc.Distribute(context.Background(), l.ID, g.ID)
		h.clock.Set(testNow.Add(5*time.Minute + time.Second))
		_, err := h.svc.Claim(context.Background(), h.org, l.ID, member)
		if !apperr.Is(err, apperr.KindGone) {
			t.Fatalf("expected gone, got %v", err)
		}
	})

	t.Run("unreserved lead conflicts", func(t *testing.T) {
		l := h.lead()
		_, err := h.svc.Claim(context.Background(), h.org, l.ID, member)
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("other tenant sees not found", func(t *testing.T) {
		h.clock.Set(testNow)
		l := h.lead()
		_ = h.svc.Distribute(context.Background(), l.ID, g.ID)
		_, err := h.svc.Claim(context.Background(), uuid.New(), l.ID, member)
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
