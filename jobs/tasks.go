package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup pre-computes preset reports into the result cache.
	TaskReportsWarmup = "reports:warmup"
	// TaskGLIntegrity scans the general ledger for unbalanced transactions.
	TaskGLIntegrity = "gl:integrity"
)

// ReportsWarmupPayload selects the reports to warm. An empty Reports list
// warms every preset that runs without an account; AsOf defaults to today.
type ReportsWarmupPayload struct {
	Reports []string `json:"reports,omitempty"`
	AsOf    string   `json:"as_of,omitempty"`
	// Invalidate bumps the cache version before warming.
	Invalidate bool `json:"invalidate,omitempty"`
}

// GLIntegrityPayload bounds the integrity scan. Empty dates cover the
// previous calendar month through today.
type GLIntegrityPayload struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Types []int  `json:"types,omitempty"`
}

// NewReportsWarmupTask constructs a warmup task.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	if payload.AsOf != "" {
		if _, err := time.Parse(time.DateOnly, payload.AsOf); err != nil {
			return nil, fmt.Errorf("jobs: as_of: %w", err)
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}

// NewGLIntegrityTask constructs an integrity scan task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	for _, raw := range []string{payload.From, payload.To} {
		if raw == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return nil, fmt.Errorf("jobs: integrity range: %w", err)
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data), nil
}

func parseDay(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.DateOnly, raw)
}
