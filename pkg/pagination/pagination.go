package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is an offset window over a list.
type Params struct {
	Limit  int
	Offset int
}

// New returns normalised params: a non-positive limit becomes DefaultLimit,
// limits above MaxLimit are capped and negative offsets become 0.
func New(limit, offset int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// ForPage returns the window of 1-based page with perPage items.
func ForPage(page, perPage int) Params {
	p := New(perPage, 0)
	if page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

// Page returns the 1-based page the offset falls in.
func (p Params) Page() int {
	p = New(p.Limit, p.Offset)
	return p.Offset/p.Limit + 1
}

// GitHub returns the per_page and page query parameters of the GitHub REST API.
func (p Params) GitHub() url.Values {
	n := New(p.Limit, p.Offset)
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(n.Limit))
	q.Set("page", strconv.Itoa(n.Page()))
	return q
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}
