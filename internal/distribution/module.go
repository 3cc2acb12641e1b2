// Package distribution is the lead distribution bounded context: group
// policies, claims, expiry escalation and group settings.
package distribution

import (
	"portal_lead_distribution/internal/distribution/handler"
	"portal_lead_distribution/internal/distribution/repository"
	"portal_lead_distribution/internal/distribution/service"
	"portal_lead_distribution/internal/events"
	apphttp "portal_lead_distribution/internal/http"
	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/logger"
	"portal_lead_distribution/platform/metrics"
	"portal_lead_distribution/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the distribution bounded context implementing http.Module.
type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// NewModule builds the service on the postgres store. Notifier and expiry
// scheduler are injected by the caller through Service().
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, m *metrics.DistributionMetrics, opts service.Options, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), bus, log, opts)
	if m != nil {
		svc.SetMetrics(m)
		SubscribeOutcomes(bus, m)
	}

	return &Module{
		svc:     svc,
		handler: handler.New(svc, val),
	}
}

// OptionsFromConfig maps sweep and escalation tuning onto service options.
func OptionsFromConfig(cfg config.DistributionConfig) service.Options {
	return service.Options{
		SweepBatchSize:    cfg.GetClaimSweepBatchSize(),
		SweepMaxBatches:   cfg.GetClaimSweepMaxBatches(),
		MaxEscalationHops: cfg.GetMaxEscalationHops(),
	}
}

// Service returns the distribution service for wiring and background jobs.
func (m *Module) Service() *service.Service {
	return m.svc
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "distribution"
}

// RegisterRoutes mounts /leads/:id/{claim,distribute} and /distribution/groups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"), ctx.ClaimRateLimiter)
	m.handler.RegisterGroupRoutes(ctx.Protected.Group("/distribution/groups"))
}

var _ apphttp.Module = (*Module)(nil)
