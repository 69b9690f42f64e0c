package shared

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination carries page/size parameters for list queries.
type Pagination struct {
	Page     int
	PageSize int
}

// PaginationFromRequest parses page and page_size query parameters with
// sensible bounds.
func PaginationFromRequest(r *http.Request) Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return Pagination{Page: page, PageSize: size}
}

// Limit returns the SQL LIMIT value.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	return p.PageSize
}

// Offset returns the SQL OFFSET value.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}
