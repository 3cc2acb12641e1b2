package scheduler

import (
	"context"

	"portal_lead_distribution/internal/distribution/service"
	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/logger"

	"github.com/hibiken/asynq"
)

// ClaimSweeper resolves expired first-to-claim reservations.
type ClaimSweeper interface {
	SweepExpiredClaims(ctx context.Context) (service.SweepResult, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper ClaimSweeper
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper ClaimSweeper, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskClaimExpiryDue, w.handleClaimExpiryDue)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleClaimExpiryDue runs a full sweep; the payload only records when the
// task was meant to fire. A failed listing is returned so asynq retries.
func (w *Worker) handleClaimExpiryDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseClaimExpiryDuePayload(task)
	if err != nil {
		w.log.Warn("claim expiry task has unreadable payload, sweeping anyway", "error", err)
	}

	result, err := w.sweeper.SweepExpiredClaims(ctx)
	if err != nil {
		return err
	}
	w.log.Debug("claim expiry task handled", "dueAt", payload.DueAt, "resolved", result.Resolved, "failed", result.Failed)
	return nil
}
