package reconcile

import (
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/actuals"
	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/platform/httpx"
	"github.com/charpente-erp/charpente/internal/projects"
)

// ComparisonType labels the consistency expectation of a comparison.
type ComparisonType string

const (
	TypeSnapshot ComparisonType = "SNAPSHOT"
	TypeRealtime ComparisonType = "REALTIME"
	TypeFinal    ComparisonType = "FINAL"
)

// Valid reports whether the comparison type is a known value.
func (t ComparisonType) Valid() bool {
	switch t {
	case TypeSnapshot, TypeRealtime, TypeFinal:
		return true
	}
	return false
}

// Severity grades deviation alerts.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// DeviationStatus classifies one dimension against its band. Reporting only,
// never persisted.
type DeviationStatus string

const (
	StatusAcceptable DeviationStatus = "ACCEPTABLE"
	StatusAttention  DeviationStatus = "ATTENTION"
	StatusCritical   DeviationStatus = "CRITICAL"
)

// DeviationSet carries the six percentage deviations of a comparison.
type DeviationSet struct {
	Amount     float64 `json:"amount"`
	Duration   float64 `json:"duration"`
	Labor      float64 `json:"labor"`
	Purchasing float64 `json:"purchasing"`
	Overhead   float64 `json:"overhead"`
	Margin     float64 `json:"margin"`
}

// Classification is the per-dimension status view of a deviation set.
type Classification struct {
	Amount     DeviationStatus `json:"amount"`
	Duration   DeviationStatus `json:"duration"`
	Labor      DeviationStatus `json:"labor"`
	Purchasing DeviationStatus `json:"purchasing"`
	Overhead   DeviationStatus `json:"overhead"`
	Margin     DeviationStatus `json:"margin"`
}

// CalculationMetadata records provenance: which sources were consulted and
// when the figures were computed.
type CalculationMetadata struct {
	Sources    actuals.Sources `json:"sources"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Comparison is an immutable estimation-vs-actual snapshot. Every
// reconciliation run inserts a new row; rows are never updated.
type Comparison struct {
	ID             int64           `json:"id"`
	JobID          int64           `json:"job_id"`
	EstimationID   int64           `json:"estimation_id"`
	Type           ComparisonType  `json:"type"`
	ComputedBy     string          `json:"computed_by"`
	ComparisonDate time.Time       `json:"comparison_date"`
	Actual         actuals.Figures `json:"actual"`
	Deviations     DeviationSet    `json:"deviations"`
	Status         DeviationStatus `json:"status"`
	Comment        string          `json:"comment,omitempty"`

	Metadata CalculationMetadata `json:"calculation_metadata"`

	// Hydrated on reads, never stored on the row itself.
	Estimation     *estimation.Estimation `json:"estimation,omitempty"`
	Job            *projects.Summary      `json:"job,omitempty"`
	ComputedByName string                 `json:"computed_by_name,omitempty"`
}

// Alert is a synthesized deviation notification.
type Alert struct {
	ID        int64          `json:"id"`
	JobID     int64          `json:"job_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// AlertTypeDeviation is the only alert type emitted by the scan.
const AlertTypeDeviation = "ESTIMATION_DEVIATION"

// DimensionMetrics is the 90-day accuracy report for one dimension.
type DimensionMetrics struct {
	MeanAbsoluteDeviation float64 `json:"mean_absolute_deviation"`
	Precision             float64 `json:"precision"`
}

// QualityDistribution buckets amount deviations by magnitude.
type QualityDistribution struct {
	Excellent int `json:"excellent"` // <= 5
	Good      int `json:"good"`      // <= 15
	Medium    int `json:"medium"`    // <= 30
	Poor      int `json:"poor"`      // > 30
}

// PerformanceReport aggregates final comparisons over a trailing window.
type PerformanceReport struct {
	WindowDays    int                         `json:"window_days"`
	SampleSize    int                         `json:"sample_size"`
	Dimensions    map[string]DimensionMetrics `json:"dimensions"`
	AmountQuality QualityDistribution         `json:"amount_quality"`
	GeneratedAt   time.Time                   `json:"generated_at"`
}

// ExportRow is one flat denormalized line of the comparison export.
type ExportRow struct {
	JobNumber         string
	JobLabel          string
	JobClient         string
	JobStatus         string
	ComparisonDate    time.Time
	ComparisonType    ComparisonType
	EstimationVersion int
	EstimatedAmount   float64
	ActualAmount      float64
	EstimatedDuration float64
	ActualDuration    float64
	EstimatedLabor    float64
	ActualLabor       float64
	EstimatedMargin   float64
	ActualMargin      float64
	Deviations        DeviationSet
	ComputedByName    string
	Comment           string
}

var (
	// ErrNotFound indicates the comparison does not exist.
	ErrNotFound = fmt.Errorf("reconcile: comparison %w", httpx.ErrNotFound)
	// ErrInvalidType indicates an unknown comparison type.
	ErrInvalidType = fmt.Errorf("reconcile: %w: unknown comparison type", httpx.ErrValidation)
)
