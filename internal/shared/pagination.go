package shared

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains limit/offset parameters for listings.
type Pagination struct {
	Page    int
	PerPage int
}

// ParsePagination reads page/per_page query parameters with clamping.
func ParsePagination(r *http.Request) Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Limit returns the SQL limit.
func (p Pagination) Limit() int { return p.PerPage }

// Offset returns the SQL offset.
func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }
