package models

import (
	"fmt"
	"strings"
)

// Bounds for a search session.
const (
	MinMaxPages     = 1
	MaxMaxPages     = 25
	MinPageSize     = 10
	MaxPageSize     = 50
	DefaultPageSize = 20
)

// SessionConfig is the immutable input of one search run.
type SessionConfig struct {
	// Keyword is the query in the upstream site's own syntax.
	Keyword string

	// MaxPages bounds how many result pages are visited (1..25).
	MaxPages int

	// PageSize is advisory and only used to page through collected records.
	PageSize int

	// UserAgents is the pool one user agent is drawn from per session.
	UserAgents []string

	// Dedup drops records whose URL was already collected on an earlier page.
	Dedup bool

	// Enrich opens every record's detail page to read its case fields.
	Enrich bool
}

// Validate checks the session bounds and fills the advisory page size.
func (c *SessionConfig) Validate() error {
	if strings.TrimSpace(c.Keyword) == "" {
		return NewScrapeError(ErrCodeInvalidInput, "keyword is required", nil)
	}
	if c.MaxPages < MinMaxPages || c.MaxPages > MaxMaxPages {
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("max pages must be between %d and %d, got %d", MinMaxPages, MaxMaxPages, c.MaxPages), nil)
	}
	if len(c.UserAgents) == 0 {
		return NewScrapeError(ErrCodeInvalidInput, "user agent pool is empty", nil)
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize < MinPageSize || c.PageSize > MaxPageSize {
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("page size must be between %d and %d, got %d", MinPageSize, MaxPageSize, c.PageSize), nil)
	}
	return nil
}

// SearchResult is what a finished search run produced.
type SearchResult struct {
	Records      []ResultRecord
	TotalPages   int
	PagesVisited int

	// SinglePage is set when results were rendered on the top-level page
	// without a result frame.
	SinglePage bool

	// NearDuplicatePages are pages that looked like a re-served copy of
	// the page before them.
	NearDuplicatePages []int
}

// PageBounds returns the [start, end) slice bounds of display page page
// (1-based) over total items. Out-of-range pages yield an empty range.
func PageBounds(total, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	if page-1 >= total/pageSize+1 {
		return total, total
	}
	start := (page - 1) * pageSize
	if start >= total {
		return total, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
