package shared

import (
	"fmt"
	"math"
)

const (
	// DefaultPage is used when a request omits the page.
	DefaultPage = 1
	// DefaultLimit is used when a request omits the limit.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 100
	// MaxOffset bounds the rows a page may skip. It fits every backend's
	// OFFSET type, including 32-bit int.
	MaxOffset = math.MaxInt32
)

// Page describes one window of a newest-first listing.
type Page struct {
	Page  int
	Limit int
}

// NewPage validates page and limit.
func NewPage(page, limit int) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("%w: page must be >= 1 (got %d)", ErrInvalidInput, page)
	}
	if limit < 1 || limit > MaxLimit {
		return Page{}, fmt.Errorf("%w: limit must be between 1 and %d (got %d)", ErrInvalidInput, MaxLimit, limit)
	}
	if page-1 > MaxOffset/limit {
		return Page{}, fmt.Errorf("%w: page %d is past the last addressable row", ErrInvalidInput, page)
	}
	return Page{Page: page, Limit: limit}, nil
}

// Offset returns the number of rows to skip, saturating at MaxOffset.
func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > MaxOffset/p.Limit {
		return MaxOffset
	}
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) bounds for a slice of length n.
func (p Page) Window(n int) (int, int) {
	start := min(max(p.Offset(), 0), n)
	return start, start + min(max(p.Limit, 0), n-start)
}
