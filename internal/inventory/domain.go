package inventory

import (
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement (reception).
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement (issue to a job).
	MovementOut MovementType = "OUT"
	// MovementAdjustment indicates a manual positive correction.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementInventoryCount replaces the stock level with a counted quantity.
	MovementInventoryCount MovementType = "INVENTORY_COUNT"
)

// Valid reports whether the movement type is one of the known values.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment, MovementInventoryCount:
		return true
	}
	return false
}

// Article models an inventory item. CurrentStock is only ever mutated through
// RecordMovement.
type Article struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Designation  string    `json:"designation"`
	Unit         string    `json:"unit"`
	Supplier     string    `json:"supplier,omitempty"`
	Location     string    `json:"location,omitempty"`
	CurrentStock float64   `json:"current_stock"`
	MinStock     float64   `json:"min_stock"`
	MaxStock     float64   `json:"max_stock"`
	UnitPrice    float64   `json:"unit_price"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Movement is an append-only ledger entry. Rows are never updated or deleted.
type Movement struct {
	ID        int64        `json:"id"`
	ArticleID int64        `json:"article_id"`
	Type      MovementType `json:"type"`
	Quantity  float64      `json:"quantity"`
	UnitPrice *float64     `json:"unit_price,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Reference string       `json:"reference,omitempty"`
	UserID    string       `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// MovementInput describes a mutation request.
type MovementInput struct {
	ArticleID int64
	Type      MovementType
	Quantity  float64
	UnitPrice *float64
	Reason    string
	Reference string
	ActorID   string
}

// MovementFilter filters ledger listings. Listings are newest-first.
type MovementFilter struct {
	ArticleID *int64
	UserID    *string
	Type      *MovementType
	From      time.Time
	To        time.Time
	Skip      int
	Take      int
}

// ArticleFilter filters article listings.
type ArticleFilter struct {
	Search     string
	ActiveOnly bool
	Skip       int
	Take       int
}

// TypeStat aggregates movement counts and quantities per type.
type TypeStat struct {
	Type          MovementType `json:"type"`
	Count         int64        `json:"count"`
	TotalQuantity float64      `json:"total_quantity"`
}

var (
	// ErrArticleNotFound indicates the referenced article does not exist.
	ErrArticleNotFound = fmt.Errorf("inventory: article %w", httpx.ErrNotFound)
	// ErrMovementNotFound indicates a missing ledger entry.
	ErrMovementNotFound = fmt.Errorf("inventory: movement %w", httpx.ErrNotFound)
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: %w: quantity must be positive", httpx.ErrValidation)
	// ErrInvalidType indicates an unknown movement type.
	ErrInvalidType = fmt.Errorf("inventory: %w: unknown movement type", httpx.ErrValidation)
	// ErrInsufficientStock triggered when an outbound movement would drive stock negative.
	ErrInsufficientStock = fmt.Errorf("inventory: %w", httpx.ErrInsufficientStock)
	// ErrDuplicateCode indicates the article code is already taken.
	ErrDuplicateCode = fmt.Errorf("inventory: article code %w", httpx.ErrDuplicate)
)
