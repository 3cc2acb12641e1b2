package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDistributionDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GetClaimSweepInterval() != time.Minute {
		t.Fatalf("expected sweep interval 1m, got %s", cfg.GetClaimSweepInterval())
	}
	if cfg.GetClaimSweepBatchSize() != 100 {
		t.Fatalf("expected batch size 100, got %d", cfg.GetClaimSweepBatchSize())
	}
	if cfg.GetMaxEscalationHops() != 10 {
		t.Fatalf("expected max escalation hops 10, got %d", cfg.GetMaxEscalationHops())
	}
	if cfg.GetAsynqQueueName() != "default" {
		t.Fatalf("expected default queue, got %q", cfg.GetAsynqQueueName())
	}
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadRejectsNonPositiveEscalationHops(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")
	t.Setenv("MAX_ESCALATION_HOPS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when MAX_ESCALATION_HOPS is zero")
	}
}

func TestWildcardOriginEnablesAllowAll(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.GetCORSAllowAll() {
		t.Fatal("expected wildcard origin to enable CORS allow-all")
	}
}
