package shared

const (
	// DefaultPageSize applies when a listing request carries no take value.
	DefaultPageSize = 50
	// MaxPageSize caps how many rows a single listing request may return.
	MaxPageSize = 200
)

// Pagination describes the slice of a listing a response covers.
type Pagination struct {
	Skip    int  `json:"skip"`
	Take    int  `json:"take"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPagination normalizes skip/take and computes listing metadata.
func NewPagination(skip, take, total int) Pagination {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 || take > MaxPageSize {
		take = DefaultPageSize
	}
	return Pagination{
		Skip:    skip,
		Take:    take,
		Total:   total,
		HasMore: skip+take < total,
	}
}
