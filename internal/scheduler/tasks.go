package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskClaimExpiryDue = "distribution.claim_expiry.due"

type ClaimExpiryDuePayload struct {
	DueAt string `json:"dueAt"`
}

func NewClaimExpiryDueTask(dueAt time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(ClaimExpiryDuePayload{DueAt: dueAt.UTC().Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClaimExpiryDue, data), nil
}

func ParseClaimExpiryDuePayload(task *asynq.Task) (ClaimExpiryDuePayload, error) {
	var payload ClaimExpiryDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ClaimExpiryDuePayload{}, err
	}
	return payload, nil
}

// claimExpiryTaskID collapses reservations expiring in the same second into
// one task; the sweep resolves all of them.
func claimExpiryTaskID(dueAt time.Time) string {
	return "claim-expiry:" + dueAt.UTC().Truncate(time.Second).Format("20060102T150405Z")
}
