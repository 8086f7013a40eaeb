// Package pagination implements 1-based page/limit windows shared by every listing.
package pagination

import (
	"errors"
	"strconv"
)

const (
	// MaxLimit caps any requested page size.
	MaxLimit = 100
	// MaxPage keeps (page-1)*limit far from overflow. Pages past the data are empty anyway.
	MaxPage = 1_000_000

	DefaultPostLimit         = 10
	DefaultSearchLimit       = 10
	DefaultFollowLimit       = 10
	DefaultCommentLimit      = 20
	DefaultReplyLimit        = 20
	DefaultNotificationLimit = 20
)

// Params is a normalized page request.
type Params struct {
	Page  int
	Limit int
}

// New normalizes page and limit. page < 1 becomes 1 and is clamped to MaxPage; limit < 1 becomes def
// and is clamped to MaxLimit.
func New(page, limit, def int) Params {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Parse reads raw query values. Missing or non-numeric values fall back to the defaults; numbers
// too large for an int are clamped like any other oversized value.
func Parse(rawPage, rawLimit string, def int) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		page = 1
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		limit = def
	}
	return New(page, limit, def)
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total/limit).
func (p Params) TotalPages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Page is the response envelope for paginated listings.
type Page[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// NewPage builds a page. A nil items slice is returned as empty so it encodes as [].
func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, CurrentPage: p.Page, TotalPages: p.TotalPages(total)}
}

// Slice pages an in-memory list, used for embedded replies. Pages past the end are empty.
func Slice[T any](all []T, p Params) []T {
	start := p.Offset()
	if start < 0 || start >= len(all) {
		return []T{}
	}
	end := min(start+p.Limit, len(all))
	return all[start:end]
}
