package http

import (
	"context"

	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is used for readiness checks (database ping).
	Health HealthChecker
	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer
	Modules []Module
}
