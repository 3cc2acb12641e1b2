package scheduler

import (
	"context"
	"errors"
	"time"

	"portal_lead_distribution/internal/distribution/ports"
	"portal_lead_distribution/platform/config"
	platformredis "portal_lead_distribution/platform/redis"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

var _ ports.ExpiryScheduler = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleClaimExpiry enqueues a one-shot sweep to run at the given time.
// A task already queued for the same second is treated as success.
func (c *Client) ScheduleClaimExpiry(ctx context.Context, at time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewClaimExpiryDueTask(at)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.Queue(c.queue),
		asynq.TaskID(claimExpiryTaskID(at)),
		asynq.Retention(time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func redisClientOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opt, err := platformredis.Options(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}
