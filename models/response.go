package models

// ErrorResponse wraps an ErrorDetail for endpoints without a richer body.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// SearchResponse is the immediate response for POST /api/v1/searches.
type SearchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SearchStatusResponse is the response for GET /api/v1/searches/:id.
type SearchStatusResponse struct {
	ID           string         `json:"id"`
	Keyword      string         `json:"keyword"`
	Status       string         `json:"status"`
	Progress     float64        `json:"progress"`
	Message      string         `json:"message,omitempty"`
	TotalPages   int            `json:"total_pages"`
	PagesVisited int            `json:"pages_visited"`
	Total        int            `json:"total"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	Records      []ResultRecord `json:"records"`
	Error        *ErrorDetail   `json:"error,omitempty"`

	// NearDuplicatePages lists result pages that nearly repeated the page
	// before them.
	NearDuplicatePages []int `json:"near_duplicate_pages,omitempty"`
}

// DownloadResponse is the immediate response for POST /api/v1/searches/:id/downloads.
type DownloadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// DownloadStatusResponse is the response for GET /api/v1/downloads/:id.
type DownloadStatusResponse struct {
	ID          string       `json:"id"`
	SearchID    string       `json:"search_id"`
	Status      string       `json:"status"`
	Progress    float64      `json:"progress"`
	Message     string       `json:"message,omitempty"`
	Completed   int          `json:"completed"`
	Total       int          `json:"total"`
	Files       []string     `json:"files"`
	Errors      []string     `json:"errors"`
	ArchiveName string       `json:"archive_name,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
	MaxSessions    int    `json:"max_sessions"`
	Version        string `json:"version"`
}
