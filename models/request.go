package models

import "fmt"

// SearchRequest is the payload for POST /api/v1/searches.
type SearchRequest struct {
	// Keyword is the query text. Required.
	Keyword string `json:"keyword" binding:"required"`

	// MaxPages limits how many result pages are visited.
	// Default: 1. Max: 25.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=25"`

	// Dedup drops records whose URL already appeared on an earlier page.
	Dedup bool `json:"dedup,omitempty"`

	// Enrich reads case number, date and category from each detail page.
	// Default: true.
	Enrich *bool `json:"enrich,omitempty"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.MaxPages == 0 {
		r.MaxPages = 1
	}
	if r.Enrich == nil {
		t := true
		r.Enrich = &t
	}
}

// Download scopes.
const (
	ScopeAll  = "all"
	ScopePage = "page"
	ScopeItem = "item"
)

// DownloadRequest is the payload for POST /api/v1/searches/:id/downloads.
type DownloadRequest struct {
	// Scope selects the records to download: every record, one display
	// page of records, or a single record. Default: "all".
	Scope string `json:"scope,omitempty" binding:"omitempty,oneof=all page item"`

	// Page is the 1-based display page for scope "page". Default: 1.
	Page int `json:"page,omitempty" binding:"omitempty,min=1"`

	// PageSize is the display page size for scope "page".
	// Default: 20. Range: 10-50.
	PageSize int `json:"page_size,omitempty" binding:"omitempty,min=10,max=50"`

	// Index is the 1-based record position for scope "item".
	Index int `json:"index,omitempty" binding:"omitempty,min=1"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *DownloadRequest) Defaults() {
	if r.Scope == "" {
		r.Scope = ScopeAll
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
}

// Select returns the records addressed by the request's scope.
func (r DownloadRequest) Select(records []ResultRecord) ([]ResultRecord, error) {
	switch r.Scope {
	case ScopePage:
		start, end := PageBounds(len(records), r.Page, r.PageSize)
		if start == end {
			return nil, NewScrapeError(ErrCodeInvalidInput,
				fmt.Sprintf("page %d is out of range", r.Page), nil)
		}
		return records[start:end], nil
	case ScopeItem:
		if r.Index < 1 || r.Index > len(records) {
			return nil, NewScrapeError(ErrCodeInvalidInput,
				fmt.Sprintf("index %d is out of range (1-%d)", r.Index, len(records)), nil)
		}
		return records[r.Index-1 : r.Index], nil
	default:
		if len(records) == 0 {
			return nil, NewScrapeError(ErrCodeInvalidInput, "search has no records", nil)
		}
		return records, nil
	}
}
