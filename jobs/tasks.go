package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBooksIntegrityCheck recomputes the trial balance and raises an alert
	// when debits and credits disagree.
	TaskBooksIntegrityCheck = "books:integrity_check"
)

// IntegrityCheckPayload records who asked for an integrity run. Scheduled runs
// use "scheduler" and carry no request time; the handler stamps it.
type IntegrityCheckPayload struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at,omitzero"`
}

// NewIntegrityCheckTask constructs an Asynq task for the books integrity check.
// A zero at leaves the request time unset.
func NewIntegrityCheckTask(requestedBy string, at time.Time) (*asynq.Task, error) {
	if requestedBy == "" {
		requestedBy = "scheduler"
	}
	payload := IntegrityCheckPayload{RequestedBy: requestedBy}
	if !at.IsZero() {
		payload.RequestedAt = at.UTC()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBooksIntegrityCheck, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}
