package estimation

import (
	"encoding/json"
	"time"
)

// DetailRequest describes one line item. Lines are full-replaced on update.
type DetailRequest struct {
	Category     string  `json:"category" validate:"required,max=64"`
	SubCategory  string  `json:"sub_category,omitempty" validate:"max=64"`
	Label        string  `json:"label" validate:"required,max=255"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	Unit         string  `json:"unit,omitempty" validate:"max=20"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	Comment      string  `json:"comment,omitempty"`
	DisplayOrder int     `json:"display_order" validate:"gte=0"`
}

// CreateRequest creates a new DRAFT estimation version for a job.
// QuoteAmount is a historical alias for TotalAmount; when both are present the
// canonical field wins.
type CreateRequest struct {
	JobID          int64           `json:"job_id" validate:"required,gt=0"`
	TotalAmount    *float64        `json:"total_amount,omitempty" validate:"omitempty,gte=0"`
	QuoteAmount    *float64        `json:"quote_amount,omitempty" validate:"omitempty,gte=0"`
	TotalDuration  float64         `json:"total_duration" validate:"gte=0"`
	LaborCost      float64         `json:"labor_cost" validate:"gte=0"`
	PurchasingCost float64         `json:"purchasing_cost" validate:"gte=0"`
	OverheadCost   float64         `json:"overhead_cost" validate:"gte=0"`
	Margin         float64         `json:"margin"`
	Headcount      int             `json:"headcount" validate:"gte=0"`
	AvgHourlyRate  float64         `json:"avg_hourly_rate" validate:"gte=0"`
	PlannedStart   *time.Time      `json:"planned_start,omitempty"`
	PlannedEnd     *time.Time      `json:"planned_end,omitempty"`
	Extended       json.RawMessage `json:"extended,omitempty"`
	Details        []DetailRequest `json:"details" validate:"dive"`
}

// UpdateRequest partially updates a DRAFT estimation. A non-nil Details slice
// replaces all existing lines.
type UpdateRequest struct {
	TotalAmount    *float64         `json:"total_amount,omitempty" validate:"omitempty,gte=0"`
	QuoteAmount    *float64         `json:"quote_amount,omitempty" validate:"omitempty,gte=0"`
	TotalDuration  *float64         `json:"total_duration,omitempty" validate:"omitempty,gte=0"`
	LaborCost      *float64         `json:"labor_cost,omitempty" validate:"omitempty,gte=0"`
	PurchasingCost *float64         `json:"purchasing_cost,omitempty" validate:"omitempty,gte=0"`
	OverheadCost   *float64         `json:"overhead_cost,omitempty" validate:"omitempty,gte=0"`
	Margin         *float64         `json:"margin,omitempty"`
	Headcount      *int             `json:"headcount,omitempty" validate:"omitempty,gte=0"`
	AvgHourlyRate  *float64         `json:"avg_hourly_rate,omitempty" validate:"omitempty,gte=0"`
	PlannedStart   *time.Time       `json:"planned_start,omitempty"`
	PlannedEnd     *time.Time       `json:"planned_end,omitempty"`
	Extended       json.RawMessage  `json:"extended,omitempty"`
	Details        *[]DetailRequest `json:"details,omitempty" validate:"omitempty,dive"`
}

// CanonicalTotalAmount resolves the quote-amount alias.
func (r CreateRequest) CanonicalTotalAmount() float64 {
	if r.TotalAmount != nil {
		return *r.TotalAmount
	}
	if r.QuoteAmount != nil {
		return *r.QuoteAmount
	}
	return 0
}

// CanonicalTotalAmount resolves the quote-amount alias, nil when neither set.
func (r UpdateRequest) CanonicalTotalAmount() *float64 {
	if r.TotalAmount != nil {
		return r.TotalAmount
	}
	return r.QuoteAmount
}
