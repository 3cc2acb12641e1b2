// Package seed loads group and pond definitions from YAML and writes them
// through the repository.
package seed

import (
	"context"
	"fmt"
	"io"

	"portal_lead_distribution/internal/distribution/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// File is the top-level YAML document.
type File struct {
	OrganizationID uuid.UUID `yaml:"organizationId"`
	Ponds          []Pond    `yaml:"ponds"`
	Groups         []Group   `yaml:"groups"`
}

type Pond struct {
	ID   uuid.UUID `yaml:"id"`
	Name string    `yaml:"name"`
}

type Group struct {
	ID                 uuid.UUID   `yaml:"id"`
	Name               string      `yaml:"name"`
	Policy             string      `yaml:"policy"`
	ClaimWindowMinutes int         `yaml:"claimWindowMinutes"`
	Members            []uuid.UUID `yaml:"members"`
	DefaultUserID      *uuid.UUID  `yaml:"defaultUserId"`
	DefaultGroupID     *uuid.UUID  `yaml:"defaultGroupId"`
	DefaultPondID      *uuid.UUID  `yaml:"defaultPondId"`
}

// Writer is the subset of the postgres repository the seeder uses.
type Writer interface {
	UpsertPond(ctx context.Context, id, organizationID uuid.UUID, name string) error
	UpsertGroup(ctx context.Context, g domain.Group) error
	LinkDefaultGroup(ctx context.Context, groupID uuid.UUID, defaultGroupID *uuid.UUID) error
}

// Parse decodes and validates a seed file. Groups are checked one by one and
// the default-group links as a whole, so a file with a cycle is rejected
// before anything is written.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	if f.OrganizationID == uuid.Nil {
		return File{}, fmt.Errorf("organizationId is required")
	}

	links := make(map[uuid.UUID]*uuid.UUID, len(f.Groups))
	for i, g := range f.Groups {
		if g.ID == uuid.Nil {
			return File{}, fmt.Errorf("groups[%d]: id is required", i)
		}
		if _, dup := links[g.ID]; dup {
			return File{}, fmt.Errorf("groups[%d]: duplicate id %s", i, g.ID)
		}
		if err := f.domainGroup(g).ValidateSettings(); err != nil {
			return File{}, fmt.Errorf("group %q: %w", g.Name, err)
		}
		links[g.ID] = g.DefaultGroupID
	}

	lookup := func(id uuid.UUID) *uuid.UUID { return links[id] }
	for _, g := range f.Groups {
		if err := domain.DetectDefaultGroupCycle(g.ID, lookup); err != nil {
			return File{}, fmt.Errorf("group %q: %w", g.Name, err)
		}
	}
	return f, nil
}

// Apply writes ponds, then groups without default-group links, then the
// links, so forward references resolve.
func Apply(ctx context.Context, w Writer, f File) error {
	for _, p := range f.Ponds {
		if err := w.UpsertPond(ctx, p.ID, f.OrganizationID, p.Name); err != nil {
			return fmt.Errorf("pond %q: %w", p.Name, err)
		}
	}
	for _, g := range f.Groups {
		if err := w.UpsertGroup(ctx, f.domainGroup(g)); err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
	}
	for _, g := range f.Groups {
		if err := w.LinkDefaultGroup(ctx, g.ID, g.DefaultGroupID); err != nil {
			return fmt.Errorf("link group %q: %w", g.Name, err)
		}
	}
	return nil
}

func (f File) domainGroup(g Group) domain.Group {
	return domain.Group{
		ID:                 g.ID,
		OrganizationID:     f.OrganizationID,
		Name:               g.Name,
		Policy:             domain.Policy(g.Policy),
		ClaimWindowMinutes: g.ClaimWindowMinutes,
		RotationCursor:     domain.InitialRotationCursor,
		Members:            g.Members,
		DefaultUserID:      g.DefaultUserID,
		DefaultGroupID:     g.DefaultGroupID,
		DefaultPondID:      g.DefaultPondID,
	}
}
