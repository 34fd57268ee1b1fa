package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeBroadcastDispatch = "broadcast:dispatch"
	TaskTypeIdempotencySweep  = "idempotency:sweep"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type BroadcastDispatchPayload struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

type IdempotencySweepPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewBroadcastDispatchTask builds the per-minute schedule evaluation task.
// Uniqueness over the minute keeps a restarted scheduler from double-firing.
func NewBroadcastDispatchTask() (*asynq.Task, error) {
	payload, err := json.Marshal(BroadcastDispatchPayload{ScheduledAt: time.Now()})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeBroadcastDispatch, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Unique(time.Minute),
	), nil
}

func NewIdempotencySweepTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(IdempotencySweepPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeIdempotencySweep, payload, asynq.Queue(QueueLow)), nil
}
