package projects

import (
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// Status enumerates the job ("affaire") lifecycle.
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Project is a tracked unit of work with a client.
type Project struct {
	ID             int64     `json:"id"`
	Number         string    `json:"number"`
	Label          string    `json:"label"`
	Client         string    `json:"client"`
	Status         Status    `json:"status"`
	ContractAmount float64   `json:"contract_amount"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Summary is the subset joined into comparisons and exports.
type Summary struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Label  string `json:"label"`
	Client string `json:"client"`
	Status Status `json:"status"`
}

var (
	// ErrNotFound indicates the referenced job does not exist.
	ErrNotFound = fmt.Errorf("projects: job %w", httpx.ErrNotFound)
	// ErrDuplicateNumber indicates the job number is taken.
	ErrDuplicateNumber = fmt.Errorf("projects: job number %w", httpx.ErrDuplicate)
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = fmt.Errorf("projects: %w: unknown status", httpx.ErrValidation)
)
