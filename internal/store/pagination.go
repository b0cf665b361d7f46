package store

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PaginationParams selects a window of a list query.
type PaginationParams struct {
	Limit  int
	Offset int
}

// DefaultPaginationParams returns the first page at the default size.
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{Limit: defaultPageLimit}
}

// Validate clamps Limit to [1, 100] and Offset to >= 0.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PaginatedResult holds one page of items.
type PaginatedResult[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPage builds a result from one page of items and the total match count.
func NewPage[T any](items []T, total int, p PaginationParams) *PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PaginatedResult[T]{
		Items:   items,
		Total:   total,
		HasMore: p.Offset+len(items) < total,
	}
}
