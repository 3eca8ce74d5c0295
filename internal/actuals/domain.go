package actuals

import "time"

// ActivityType distinguishes workshop from site assignments.
type ActivityType string

const (
	ActivityFabrication  ActivityType = "FABRICATION"
	ActivityInstallation ActivityType = "INSTALLATION"
)

// TimeEntry is a time-tracking row joined with the recording user's rate.
type TimeEntry struct {
	UserID    string
	Hours     float64
	Rate      float64
	EntryDate time.Time
}

// Assignment is a planning row. Each row stands for one half-day.
type Assignment struct {
	UserID      string
	Date        time.Time
	Type        ActivityType
	RatePerHour float64
}

// Sources records which data sources yielded rows, kept as provenance
// metadata on every comparison.
type Sources struct {
	TimeTracking bool `json:"time_tracking"`
	Purchasing   bool `json:"purchasing"`
	Overhead     bool `json:"overhead"`
	Planning     bool `json:"planning"`
}

// Figures is the measured counterpart of an estimation. TotalAmount is the
// sum of the three cost components.
type Figures struct {
	JobID int64 `json:"job_id"`

	TotalAmount   float64 `json:"total_amount"`
	TotalDuration float64 `json:"total_duration"` // half-day units

	FabricationHalfDays  int `json:"fabrication_half_days"`
	InstallationHalfDays int `json:"installation_half_days"`

	LaborCost      float64 `json:"labor_cost"`
	PurchasingCost float64 `json:"purchasing_cost"`
	OverheadCost   float64 `json:"overhead_cost"`
	Margin         float64 `json:"margin"`

	Headcount     int     `json:"headcount"`
	AvgHourlyRate float64 `json:"avg_hourly_rate"`

	ActualStart *time.Time `json:"actual_start,omitempty"`
	ActualEnd   *time.Time `json:"actual_end,omitempty"`

	Consulted Sources `json:"consulted"`
}
