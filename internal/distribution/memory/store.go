// Package memory is an in-process Store used by tests and local runs without
// Postgres. It follows the same compare-and-set rules as the SQL repository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	groups map[uuid.UUID]domain.Group
	leads  map[uuid.UUID]domain.Lead

	// groupLocks stand in for SELECT ... FOR UPDATE on lead_groups.
	groupLocks map[uuid.UUID]*sync.Mutex
}

var _ ports.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		groups:     make(map[uuid.UUID]domain.Group),
		leads:      make(map[uuid.UUID]domain.Lead),
		groupLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// PutGroup inserts or replaces a group.
func (s *Store) PutGroup(g domain.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = cloneGroup(g)
}

// PutLead inserts or replaces a lead.
func (s *Store) PutLead(l domain.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = l
}

func (s *Store) GetGroup(_ context.Context, id uuid.UUID) (domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return domain.Group{}, ports.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (s *Store) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, ports.ErrNotFound
	}
	return l, nil
}

func (s *Store) InGroupTx(ctx context.Context, fn func(ctx context.Context, tx ports.GroupTx) error) error {
	tx := &groupTx{
		store:    s,
		cursors:  make(map[uuid.UUID]int),
		leads:    make(map[uuid.UUID]domain.Lead),
		observed: make(map[uuid.UUID]domain.Lead),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, was := range tx.observed {
		if current, ok := s.leads[id]; !ok || !current.SameOwnership(was) {
			return ports.ErrLeadChanged
		}
	}
	for id, cursor := range tx.cursors {
		g, ok := s.groups[id]
		if !ok {
			return ports.ErrNotFound
		}
		g.RotationCursor = cursor
		g.UpdatedAt = time.Now().UTC()
		s.groups[id] = g
	}
	for id, l := range tx.leads {
		s.leads[id] = l
	}
	return nil
}

func (s *Store) ReserveLead(_ context.Context, leadID uuid.UUID, r domain.Reservation, now time.Time) (ports.ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[leadID]
	if !ok {
		return ports.ReserveResult{}, ports.ErrNotFound
	}

	var result ports.ReserveResult
	if current, open := lead.Reservation(); open {
		if current.GroupID == r.GroupID && !current.Expired(now) {
			return ports.ReserveResult{Lead: lead, AlreadyOpen: true}, nil
		}
		if current.GroupID != r.GroupID {
			superseded := current
			result.Superseded = &superseded
		}
	}

	lead = lead.WithReservation(r)
	lead.UpdatedAt = now
	s.leads[leadID] = lead
	result.Lead = lead
	return result, nil
}

func (s *Store) ClaimLead(_ context.Context, leadID, groupID, userID uuid.UUID, now time.Time) (domain.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, false, ports.ErrNotFound
	}
	r, open := lead.Reservation()
	if !open || r.GroupID != groupID || r.Expired(now) {
		return domain.Lead{}, false, nil
	}

	lead = lead.AssignedToUser(userID)
	lead.EscalationHops = 0
	lead.UpdatedAt = now
	s.leads[leadID] = lead
	return lead, true, nil
}

func (s *Store) ListExpiredReservations(_ context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Lead, 0)
	for _, l := range s.leads {
		if l.ClaimExpiresAt != nil && l.AvailableForGroupID != nil && l.ClaimExpiresAt.Before(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClaimExpiresAt.Before(*out[j].ClaimExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CloseReservation(_ context.Context, leadID uuid.UUID, r domain.Reservation, c ports.Closure) (domain.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, false, ports.ErrNotFound
	}
	current, open := lead.Reservation()
	if !open || current.GroupID != r.GroupID || !current.ExpiresAt.Equal(r.ExpiresAt) {
		return domain.Lead{}, false, nil
	}

	switch {
	case c.AssignUserID != nil:
		lead = lead.AssignedToUser(*c.AssignUserID)
	case c.AssignPondID != nil:
		lead = lead.AssignedToPond(*c.AssignPondID)
	default:
		lead = lead.WithoutReservation()
		lead.AssignedUserID = nil
		lead.AssignedPondID = nil
	}
	if c.CountEscalationHop {
		lead.EscalationHops++
	} else {
		lead.EscalationHops = 0
	}
	lead.UpdatedAt = time.Now().UTC()
	s.leads[leadID] = lead
	return lead, true, nil
}

func (s *Store) UpdateGroupSettings(_ context.Context, in ports.GroupSettings) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[in.GroupID]
	if !ok {
		return domain.Group{}, ports.ErrNotFound
	}
	if in.Name != "" {
		g.Name = in.Name
	}
	g.Policy = in.Policy
	g.ClaimWindowMinutes = in.ClaimWindowMinutes
	g.Members = append([]uuid.UUID(nil), in.Members...)
	g.DefaultUserID = in.DefaultUserID
	g.DefaultGroupID = in.DefaultGroupID
	g.DefaultPondID = in.DefaultPondID
	g.UpdatedAt = time.Now().UTC()
	s.groups[g.ID] = g
	return cloneGroup(g), nil
}

func (s *Store) lockFor(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.groupLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.groupLocks[id] = m
	}
	return m
}

// groupTx stages writes and applies them when the callback succeeds.
type groupTx struct {
	store    *Store
	held     []*sync.Mutex
	locked   map[uuid.UUID]bool
	cursors  map[uuid.UUID]int
	leads    map[uuid.UUID]domain.Lead
	// observed holds each staged lead as it was read; commit fails if the
	// stored lead moved on in between.
	observed map[uuid.UUID]domain.Lead
}

func (tx *groupTx) LockGroup(ctx context.Context, groupID uuid.UUID) (domain.Group, error) {
	if tx.locked == nil {
		tx.locked = make(map[uuid.UUID]bool)
	}
	if !tx.locked[groupID] {
		m := tx.store.lockFor(groupID)
		m.Lock()
		tx.held = append(tx.held, m)
		tx.locked[groupID] = true
	}
	return tx.store.GetGroup(ctx, groupID)
}

func (tx *groupTx) SetRotationCursor(_ context.Context, groupID uuid.UUID, cursor int) error {
	tx.cursors[groupID] = cursor
	return nil
}

func (tx *groupTx) AssignLeadToUser(ctx context.Context, observed domain.Lead, userID uuid.UUID) (domain.Lead, error) {
	lead, ok := tx.leads[observed.ID]
	if !ok {
		var err error
		lead, err = tx.store.GetLead(ctx, observed.ID)
		if err != nil {
			return domain.Lead{}, err
		}
		tx.observed[observed.ID] = lead
	}
	if !lead.SameOwnership(observed) {
		return domain.Lead{}, ports.ErrLeadChanged
	}
	lead = lead.AssignedToUser(userID)
	lead.EscalationHops = 0
	lead.UpdatedAt = time.Now().UTC()
	tx.leads[observed.ID] = lead
	return lead, nil
}

func (tx *groupTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
}

func cloneGroup(g domain.Group) domain.Group {
	g.Members = append([]uuid.UUID(nil), g.Members...)
	return g
}
