package inventory

// CreateArticleRequest registers a new inventory item.
type CreateArticleRequest struct {
	Code         string  `json:"code" validate:"required,max=32"`
	Designation  string  `json:"designation" validate:"required,max=255"`
	Unit         string  `json:"unit" validate:"required,max=20"`
	Supplier     string  `json:"supplier,omitempty" validate:"max=255"`
	Location     string  `json:"location,omitempty" validate:"max=255"`
	InitialStock float64 `json:"initial_stock" validate:"gte=0"`
	MinStock     float64 `json:"min_stock" validate:"gte=0"`
	MaxStock     float64 `json:"max_stock" validate:"gte=0"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
}

// UpdateArticleRequest modifies descriptive fields.
type UpdateArticleRequest struct {
	Designation string  `json:"designation" validate:"required,max=255"`
	Unit        string  `json:"unit" validate:"required,max=20"`
	Supplier    string  `json:"supplier,omitempty" validate:"max=255"`
	Location    string  `json:"location,omitempty" validate:"max=255"`
	MinStock    float64 `json:"min_stock" validate:"gte=0"`
	MaxStock    float64 `json:"max_stock" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

// CreateMovementRequest records a stock mutation.
type CreateMovementRequest struct {
	ArticleID int64    `json:"article_id" validate:"required,gt=0"`
	Type      string   `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT INVENTORY_COUNT"`
	Quantity  float64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	Reason    string   `json:"reason,omitempty" validate:"max=255"`
	Reference string   `json:"reference,omitempty" validate:"max=64"`
}
