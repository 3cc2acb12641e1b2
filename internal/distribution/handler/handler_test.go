package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/memory"
	"portal_lead_distribution/internal/distribution/service"
	"portal_lead_distribution/internal/distribution/transport"
	"portal_lead_distribution/platform/events"
	"portal_lead_distribution/platform/httpkit"
	"portal_lead_distribution/platform/logger"
	"portal_lead_distribution/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fixture struct {
	engine *gin.Engine
	store  *memory.Store
	org    uuid.UUID
	group  domain.Group
	member uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	org := uuid.New()
	member := uuid.New()
	store := memory.NewStore()
	group := domain.Group{
		ID:                 uuid.New(),
		OrganizationID:     org,
		Name:               "Inside sales",
		Policy:             domain.PolicyFirstToClaim,
		ClaimWindowMinutes: 15,
		RotationCursor:     domain.InitialRotationCursor,
		Members:            []uuid.UUID{member},
	}
	store.PutGroup(group)

	svc := service.New(store, events.NewInMemoryBus(logger.Discard()), logger.Discard(), service.Options{})
	h := New(svc, validator.New())

	engine := gin.New()
	api := engine.Group("/api/v1", fakeAuth)
	h.RegisterLeadRoutes(api.Group("/leads"), nil)
	h.RegisterGroupRoutes(api.Group("/distribution/groups"))

	return &fixture{engine: engine, store: store, org: org, group: group, member: member}
}

// fakeAuth stands in for AuthRequired: identity comes from test headers.
func fakeAuth(c *gin.Context) {
	if raw := c.GetHeader("X-Test-User"); raw != "" {
		c.Set(httpkit.ContextUserIDKey, uuid.MustParse(raw))
	}
	if raw := c.GetHeader("X-Test-Tenant"); raw != "" {
		c.Set(httpkit.ContextTenantIDKey, uuid.MustParse(raw))
	}
	if raw := c.GetHeader("X-Test-Role"); raw != "" {
		c.Set(httpkit.ContextRolesKey, []string{raw})
	}
	c.Next()
}

func (f *fixture) do(t *testing.T, method, path string, userID uuid.UUID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID.String())
	req.Header.Set("X-Test-Tenant", f.org.String())
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) newLead() uuid.UUID {
	id := uuid.New()
	f.store.PutLead(domain.Lead{ID: id, OrganizationID: f.org, ConsumerName: "Jan de Vries"})
	return id
}

func TestDistributeThenClaim(t *testing.T) {
	f := newFixture(t)
	leadID := f.newLead()

	rec := f.do(t, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/distribute", f.member, "", transport.DistributeRequest{GroupID: f.group.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("distribute: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reserved transport.LeadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reserved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reserved.AvailableForGroupID == nil || *reserved.AvailableForGroupID != f.group.ID || reserved.ClaimExpiresAt == nil {
		t.Fatalf("expected open reservation, got %+v", reserved)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/claim", f.member, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var claimed transport.LeadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &claimed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claimed.AssignedUserID == nil || *claimed.AssignedUserID != f.member || claimed.AvailableForGroupID != nil {
		t.Fatalf("expected lead owned by member, got %+v", claimed)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/claim", uuid.New(), "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second claim: expected 409, got %d", rec.Code)
	}
}

func TestClaimByNonMemberIsForbidden(t *testing.T) {
	f := newFixture(t)
	leadID := f.newLead()
	if rec := f.do(t, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/distribute", f.member, "", transport.DistributeRequest{GroupID: f.group.ID}); rec.Code != http.StatusOK {
		t.Fatalf("distribute: %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/claim", uuid.New(), "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestClaimRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/v1/leads/not-a-uuid/claim", f.member, "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/claim", f.member, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lead, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/"+uuid.NewString()+"/claim", nil)
	req.Header.Set("X-Test-User", f.member.String())
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant, got %d", rec.Code)
	}
}

func TestDistributeRequiresGroup(t *testing.T) {
	f := newFixture(t)
	leadID := f.newLead()

	rec := f.do(t, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/distribute", f.member, "", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetGroup(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/distribution/groups/"+f.group.ID.String(), f.member, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got transport.GroupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Policy != string(domain.PolicyFirstToClaim) || len(got.Members) != 1 {
		t.Fatalf("unexpected group %+v", got)
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/distribution/groups/" + f.group.ID.String() + "/settings"
	newMember := uuid.New()
	req := transport.UpdateGroupSettingsRequest{
		Name:               "Inside sales",
		Policy:             string(domain.PolicyRoundRobin),
		ClaimWindowMinutes: 5,
		Members:            []uuid.UUID{f.member, newMember},
	}

	if rec := f.do(t, http.MethodPut, path, f.member, "", req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPut, path, f.member, roleAdmin, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got transport.GroupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Policy != string(domain.PolicyRoundRobin) || len(got.Members) != 2 || got.Members[1] != newMember {
		t.Fatalf("unexpected group %+v", got)
	}

	req.Policy = "lottery"
	if rec := f.do(t, http.MethodPut, path, f.member, roleAdmin, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown policy, got %d", rec.Code)
	}
}

func TestUpdateSettingsRejectsDefaultGroupCycle(t *testing.T) {
	f := newFixture(t)
	other := domain.Group{
		ID:                 uuid.New(),
		OrganizationID:     f.org,
		Name:               "Field team",
		Policy:             domain.PolicyFirstToClaim,
		ClaimWindowMinutes: 10,
		DefaultGroupID:     &f.group.ID,
	}
	f.store.PutGroup(other)

	rec := f.do(t, http.MethodPut, "/api/v1/distribution/groups/"+f.group.ID.String()+"/settings", f.member, roleAdmin,
		transport.UpdateGroupSettingsRequest{
			Name:               f.group.Name,
			Policy:             string(domain.PolicyFirstToClaim),
			ClaimWindowMinutes: 15,
			Members:            f.group.Members,
			DefaultGroupID:     &other.ID,
		})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cycle, got %d: %s", rec.Code, rec.Body.String())
	}
}
