package report

import "time"

// Summary is one row of the report listing: the report itself plus the
// author's name and related-record counts.
type Summary struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	UserName     string    `json:"userName"`
	ReportDate   time.Time `json:"-"`
	Problem      string    `json:"problem"`
	Plan         string    `json:"plan"`
	VisitCount   int       `json:"visitCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Filter narrows a report listing. A nil UserIDs means unrestricted; a
// non-nil empty slice matches nothing (a manager with no subordinates).
type Filter struct {
	UserIDs   []int64
	StartDate *time.Time
	EndDate   *time.Time
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// NewPagination computes page bookkeeping for totalItems at the given page
// and limit.
func NewPagination(totalItems, page, limit int) Pagination {
	totalPages := (totalItems + limit - 1) / limit
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   totalItems,
		ItemsPerPage: limit,
		HasNext:      page < totalPages,
		HasPrev:      page > 1,
	}
}
