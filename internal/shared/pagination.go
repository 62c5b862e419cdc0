package shared

// Pagination describes one offset-based page of a listing.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Total      int  `json:"total"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// NewPagination computes page metadata from the effective limit and offset,
// the number of rows returned and the total matching rows.
func NewPagination(limit, offset, returned, total int) Pagination {
	if offset < 0 {
		offset = 0
	}
	p := Pagination{Limit: limit, Offset: offset, Total: total}
	if next := offset + returned; returned > 0 && next < total {
		p.HasMore = true
		p.NextOffset = &next
	}
	return p
}
