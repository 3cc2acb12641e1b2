package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// FallbackKind tags the variant held by a Fallback.
type FallbackKind int

const (
	FallbackUnassigned FallbackKind = iota
	FallbackAssignToUser
	FallbackRedistributeToGroup
	FallbackAssignToPond
)

func (k FallbackKind) String() string {
	switch k {
	case FallbackAssignToUser:
		return "assign_to_user"
	case FallbackRedistributeToGroup:
		return "redistribute_to_group"
	case FallbackAssignToPond:
		return "assign_to_pond"
	default:
		return "unassigned"
	}
}

// Fallback is where an unclaimed lead goes once its reservation lapses.
// Target is uuid.Nil for FallbackUnassigned.
type Fallback struct {
	Kind   FallbackKind
	Target uuid.UUID
}

func (f Fallback) String() string {
	if f.Kind == FallbackUnassigned {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", f.Kind, f.Target)
}

// AssignToUser builds a user fallback.
func AssignToUser(id uuid.UUID) Fallback { return Fallback{Kind: FallbackAssignToUser, Target: id} }

// RedistributeToGroup builds a group fallback.
func RedistributeToGroup(id uuid.UUID) Fallback {
	return Fallback{Kind: FallbackRedistributeToGroup, Target: id}
}

// AssignToPond builds a pond fallback.
func AssignToPond(id uuid.UUID) Fallback { return Fallback{Kind: FallbackAssignToPond, Target: id} }

// Unassigned is the terminal no-owner fallback.
func Unassigned() Fallback { return Fallback{Kind: FallbackUnassigned} }

// FallbackChain lists the configured fallbacks in priority order
// (user, group, pond), always ending with Unassigned.
func (g Group) FallbackChain() []Fallback {
	chain := make([]Fallback, 0, 4)
	if g.DefaultUserID != nil {
		chain = append(chain, AssignToUser(*g.DefaultUserID))
	}
	if g.DefaultGroupID != nil {
		chain = append(chain, RedistributeToGroup(*g.DefaultGroupID))
	}
	if g.DefaultPondID != nil {
		chain = append(chain, AssignToPond(*g.DefaultPondID))
	}
	return append(chain, Unassigned())
}

// Fallback returns the first entry of the chain.
func (g Group) Fallback() Fallback {
	return g.FallbackChain()[0]
}
