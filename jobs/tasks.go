package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconcileSweep is the daily reconciliation sweep over active jobs.
	TaskReconcileSweep = "reconcile:sweep"
	// TaskDeviationScan is the periodic scan of recent comparisons.
	TaskDeviationScan = "reconcile:deviation_scan"
)

// ReconcileSweepPayload parameterizes the sweep. MinAgeHours defaults to 24.
type ReconcileSweepPayload struct {
	MinAgeHours int `json:"min_age_hours"`
}

// DeviationScanPayload parameterizes the scan. WindowHours defaults to 168.
type DeviationScanPayload struct {
	WindowHours int `json:"window_hours"`
}

// NewReconcileSweepTask constructs the sweep task.
func NewReconcileSweepTask(payload ReconcileSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileSweep, data), nil
}

// NewDeviationScanTask constructs the scan task.
func NewDeviationScanTask(payload DeviationScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeviationScan, data), nil
}
