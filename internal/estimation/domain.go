package estimation

import (
	"errors"
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// Status enumerates the estimation lifecycle. Transitions are one-way:
// DRAFT -> VALIDATED -> ARCHIVED.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusValidated Status = "VALIDATED"
	StatusArchived  Status = "ARCHIVED"
)

// Estimation is a versioned, point-in-time prediction of a job's cost, time
// and margin. Versions are monotonic per job.
type Estimation struct {
	ID          int64      `json:"id"`
	JobID       int64      `json:"job_id"`
	Version     int        `json:"version"`
	Status      Status     `json:"status"`
	ValidatedBy *string    `json:"validated_by,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`

	TotalAmount    float64 `json:"total_amount"`
	TotalDuration  float64 `json:"total_duration"` // half-day units
	LaborCost      float64 `json:"labor_cost"`
	PurchasingCost float64 `json:"purchasing_cost"`
	OverheadCost   float64 `json:"overhead_cost"`
	Margin         float64 `json:"margin"`
	Headcount      int     `json:"headcount"`
	AvgHourlyRate  float64 `json:"avg_hourly_rate"`

	PlannedStart *time.Time `json:"planned_start,omitempty"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty"`

	Extended *ExtendedAttributes `json:"extended,omitempty"`
	Details  []Detail            `json:"details"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Detail is a categorized line item, ordered by DisplayOrder.
type Detail struct {
	ID           int64   `json:"id"`
	EstimationID int64   `json:"estimation_id"`
	Category     string  `json:"category"`
	SubCategory  string  `json:"sub_category,omitempty"`
	Label        string  `json:"label"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit,omitempty"`
	UnitPrice    float64 `json:"unit_price"`
	Amount       float64 `json:"amount"`
	Comment      string  `json:"comment,omitempty"`
	DisplayOrder int     `json:"display_order"`
}

var (
	// ErrNotFound indicates the estimation does not exist.
	ErrNotFound = fmt.Errorf("estimation: %w", httpx.ErrNotFound)
	// ErrNoValidated indicates the job has no validated estimation.
	ErrNoValidated = fmt.Errorf("estimation: %w: job has no validated estimation", httpx.ErrNotFound)
	// ErrNotEditable indicates the estimation left DRAFT and cannot be mutated.
	ErrNotEditable = errors.New("estimation: only draft estimations can be updated")
	// ErrArchived indicates a validate attempt on an archived estimation.
	ErrArchived = errors.New("estimation: archived estimations cannot be validated")
	// ErrHasComparisons blocks deletion while comparisons reference the estimation.
	ErrHasComparisons = errors.New("estimation: comparisons reference this estimation")
)
