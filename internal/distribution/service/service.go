// Package service implements lead distribution: the coordinator, the two
// group policies, claim expiry sweeps and fallback escalation.
package service

import (
	"context"
	"errors"
	"time"

	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/internal/events"
	"portal_lead_distribution/platform/apperr"
	"portal_lead_distribution/platform/clock"
	"portal_lead_distribution/platform/logger"
)

const (
	defaultSweepBatchSize    = 100
	defaultSweepMaxBatches   = 20
	defaultMaxEscalationHops = 10
)

// Options tunes sweep batching and the escalation hop guard.
type Options struct {
	SweepBatchSize    int
	SweepMaxBatches   int
	MaxEscalationHops int
}

func (o Options) withDefaults() Options {
	if o.SweepBatchSize <= 0 {
		o.SweepBatchSize = defaultSweepBatchSize
	}
	if o.SweepMaxBatches <= 0 {
		o.SweepMaxBatches = defaultSweepMaxBatches
	}
	if o.MaxEscalationHops <= 0 {
		o.MaxEscalationHops = defaultMaxEscalationHops
	}
	return o
}

// Metrics is the subset of platform/metrics the service records into.
type Metrics interface {
	IncClaim(result string)
	ObserveSweep(duration time.Duration, resolved int)
}

// Service distributes leads to groups and resolves expired reservations.
type Service struct {
	store     ports.Store
	notifier  ports.Notifier
	scheduler ports.ExpiryScheduler
	bus       events.Bus
	clock     clock.Clock
	metrics   Metrics
	log       *logger.Logger
	opts      Options
}

// New creates a distribution service. Notifier, scheduler and metrics are
// optional and set afterwards.
func New(store ports.Store, bus events.Bus, log *logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store: store,
		bus:   bus,
		clock: clock.NewRealClock(),
		log:   log,
		opts:  opts.withDefaults(),
	}
}

// SetNotifier sets the channel used to tell users about leads.
func (s *Service) SetNotifier(n ports.Notifier) {
	s.notifier = n
}

// SetExpiryScheduler sets the one-shot expiry task scheduler.
func (s *Service) SetExpiryScheduler(es ports.ExpiryScheduler) {
	s.scheduler = es
}

// SetClock replaces the wall clock. Used by tests.
func (s *Service) SetClock(c clock.Clock) {
	s.clock = c
}

// SetMetrics sets the metrics recorder.
func (s *Service) SetMetrics(m Metrics) {
	s.metrics = m
}

func (s *Service) notify(ctx context.Context, n ports.Notification) {
	if s.notifier == nil || len(n.UserIDs) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WithLead(n.LeadID.String()).Warn("lead notification failed", "error", err, "recipients", len(n.UserIDs))
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, e)
}

func (s *Service) recordClaim(result string) {
	if s.metrics != nil {
		s.metrics.IncClaim(result)
	}
}

// storeError maps store sentinels onto apperr kinds.
func storeError(op, what string, err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperr.NotFound(what + " not found").WithOp(op)
	}
	return apperr.Wrap(apperr.KindInternal, "failed to "+op, err)
}
