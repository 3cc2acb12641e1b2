package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"portal_lead_distribution/internal/distribution/domain"

	"github.com/google/uuid"
)

const (
	orgID   = "6f1c2a64-4a53-4d0e-9d3c-0b7a3f6d1e01"
	inside  = "0b8f6f6e-1c1d-4b1b-8f43-9a5c1e6d2a10"
	field   = "0b8f6f6e-1c1d-4b1b-8f43-9a5c1e6d2a11"
	pondID  = "0b8f6f6e-1c1d-4b1b-8f43-9a5c1e6d2a20"
	userOne = "7d2e1b3c-5a4f-4c6d-8e9f-0a1b2c3d4e01"
	userTwo = "7d2e1b3c-5a4f-4c6d-8e9f-0a1b2c3d4e02"
)

const validSeed = `
organizationId: ` + orgID + `
ponds:
  - id: ` + pondID + `
    name: Parked leads
groups:
  - id: ` + inside + `
    name: Inside sales
    policy: first_to_claim
    claimWindowMinutes: 15
    members: [` + userOne + `, ` + userTwo + `]
    defaultGroupId: ` + field + `
  - id: ` + field + `
    name: Field team
    policy: round_robin
    claimWindowMinutes: 5
    members: [` + userTwo + `]
    defaultPondId: ` + pondID + `
`

type recordingWriter struct {
	calls []string
	err   error
}

func (w *recordingWriter) UpsertPond(_ context.Context, id, _ uuid.UUID, _ string) error {
	w.calls = append(w.calls, "pond "+id.String())
	return w.err
}

func (w *recordingWriter) UpsertGroup(_ context.Context, g domain.Group) error {
	w.calls = append(w.calls, "group "+g.ID.String())
	return w.err
}

func (w *recordingWriter) LinkDefaultGroup(_ context.Context, groupID uuid.UUID, _ *uuid.UUID) error {
	w.calls = append(w.calls, "link "+groupID.String())
	return w.err
}

func TestParseAndApplyOrdersWrites(t *testing.T) {
	f, err := Parse(strings.NewReader(validSeed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Groups) != 2 || len(f.Groups[0].Members) != 2 {
		t.Fatalf("unexpected file %+v", f)
	}

	w := &recordingWriter{}
	if err := Apply(context.Background(), w, f); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"pond " + pondID, "group " + inside, "group " + field, "link " + inside, "link " + field}
	if strings.Join(w.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, w.calls)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	f, err := Parse(strings.NewReader(validSeed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	w := &recordingWriter{err: errors.New("db down")}
	if err := Apply(context.Background(), w, f); err == nil {
		t.Fatal("expected error")
	}
	if len(w.calls) != 1 {
		t.Fatalf("expected to stop after first write, got %v", w.calls)
	}
}

func TestParseRejectsCycle(t *testing.T) {
	cyclic := strings.Replace(validSeed, "defaultPondId: "+pondID, "defaultGroupId: "+inside, 1)
	_, err := Parse(strings.NewReader(cyclic))
	var cycle *domain.DefaultGroupCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestParseRejectsInvalidGroup(t *testing.T) {
	bad := strings.Replace(validSeed, "policy: round_robin", "policy: lottery", 1)
	if _, err := Parse(strings.NewReader(bad)); !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected invalid policy, got %v", err)
	}

	unknown := validSeed + "extra: true\n"
	if _, err := Parse(strings.NewReader(unknown)); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}
