package handler

import (
	"net/http"

	"portal_lead_distribution/internal/distribution/domain"
	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/distribution/service"
	"portal_lead_distribution/internal/distribution/transport"
	"portal_lead_distribution/platform/httpkit"
	"portal_lead_distribution/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgTenantNotSet     = "tenant ID is required"

	roleAdmin = "admin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterLeadRoutes mounts the claim and distribute actions under /leads.
// A nil limiter leaves the claim route unthrottled.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup, claimLimiter *httpkit.IPRateLimiter) {
	claim := []gin.HandlerFunc{h.Claim}
	if claimLimiter != nil {
		claim = append([]gin.HandlerFunc{claimLimiter.RateLimit()}, claim...)
	}
	rg.POST("/:id/claim", claim...)
	rg.POST("/:id/distribute", h.Distribute)
}

// RegisterGroupRoutes mounts group configuration under /distribution/groups.
func (h *Handler) RegisterGroupRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.GetGroup)
	rg.PUT("/:id/settings", httpkit.RequireRole(roleAdmin), h.UpdateSettings)
}

func mustGetTenantID(c *gin.Context, identity httpkit.Identity) (uuid.UUID, bool) {
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusBadRequest, msgTenantNotSet, nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}

func (h *Handler) Claim(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := mustGetTenantID(c, identity)
	if !ok {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Claim(c.Request.Context(), tenantID, leadID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Distribute(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := mustGetTenantID(c, identity)
	if !ok {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	ctx := c.Request.Context()
	if err := h.svc.DistributeInOrganization(ctx, tenantID, leadID, req.GroupID); httpkit.HandleError(c, err) {
		return
	}

	lead, err := h.svc.GetLead(ctx, tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) GetGroup(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := mustGetTenantID(c, identity)
	if !ok {
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	group, err := h.svc.GetGroup(c.Request.Context(), tenantID, groupID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToGroupResponse(group))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := mustGetTenantID(c, identity)
	if !ok {
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateGroupSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	group, err := h.svc.UpdateGroupSettings(c.Request.Context(), tenantID, ports.GroupSettings{
		GroupID:            groupID,
		Name:               req.Name,
		Policy:             domain.Policy(req.Policy),
		ClaimWindowMinutes: req.ClaimWindowMinutes,
		Members:            req.Members,
		DefaultUserID:      req.DefaultUserID,
		DefaultGroupID:     req.DefaultGroupID,
		DefaultPondID:      req.DefaultPondID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToGroupResponse(group))
}
