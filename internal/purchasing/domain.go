package purchasing

import (
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// DocumentType distinguishes purchase orders from supplier invoices.
type DocumentType string

const (
	DocumentOrder   DocumentType = "ORDER"
	DocumentInvoice DocumentType = "INVOICE"
)

// Valid reports whether the document type is a known value.
func (t DocumentType) Valid() bool {
	return t == DocumentOrder || t == DocumentInvoice
}

// Document is a purchase order or invoice attached to a job. AmountExclTax
// feeds purchasing cost aggregation.
type Document struct {
	ID            int64        `json:"id"`
	JobID         int64        `json:"job_id"`
	Type          DocumentType `json:"type"`
	Supplier      string       `json:"supplier"`
	Reference     string       `json:"reference,omitempty"`
	AmountExclTax float64      `json:"amount_excl_tax"`
	DocumentDate  time.Time    `json:"document_date"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = fmt.Errorf("purchasing: document %w", httpx.ErrNotFound)
	// ErrInvalidType indicates an unknown document type.
	ErrInvalidType = fmt.Errorf("purchasing: %w: unknown document type", httpx.ErrValidation)
	// ErrInvalidAmount indicates a negative amount.
	ErrInvalidAmount = fmt.Errorf("purchasing: %w: amount must be non-negative", httpx.ErrValidation)
)
