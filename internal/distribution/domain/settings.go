package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidPolicy      = errors.New("distribution policy must be first_to_claim or round_robin")
	ErrInvalidClaimWindow = errors.New("claim window must be at least one minute")
	ErrDuplicateMember    = errors.New("a user can appear only once in a group")
	ErrSelfDefaultGroup   = errors.New("a group cannot fall back to itself")
)

// DefaultGroupCycleError reports a default-group chain that returns to its start.
type DefaultGroupCycleError struct {
	Path []uuid.UUID
}

func (e *DefaultGroupCycleError) Error() string {
	return fmt.Sprintf("default group chain forms a cycle of length %d", len(e.Path))
}

// ValidateSettings checks a group's own configuration.
func (g Group) ValidateSettings() error {
	if !g.Policy.Valid() {
		return ErrInvalidPolicy
	}
	if g.ClaimWindowMinutes < 1 {
		return ErrInvalidClaimWindow
	}
	seen := make(map[uuid.UUID]struct{}, len(g.Members))
	for _, m := range g.Members {
		if _, dup := seen[m]; dup {
			return ErrDuplicateMember
		}
		seen[m] = struct{}{}
	}
	if g.DefaultGroupID != nil && *g.DefaultGroupID == g.ID {
		return ErrSelfDefaultGroup
	}
	return nil
}

// DetectDefaultGroupCycle follows default-group links from start and returns
// a *DefaultGroupCycleError if the walk revisits a group. lookup returns the
// default group of id, or nil when the chain ends (including unknown groups).
func DetectDefaultGroupCycle(start uuid.UUID, lookup func(id uuid.UUID) *uuid.UUID) error {
	visited := map[uuid.UUID]struct{}{start: {}}
	path := []uuid.UUID{start}
	current := start
	for {
		next := lookup(current)
		if next == nil {
			return nil
		}
		path = append(path, *next)
		if _, ok := visited[*next]; ok {
			return &DefaultGroupCycleError{Path: path}
		}
		visited[*next] = struct{}{}
		current = *next
	}
}
