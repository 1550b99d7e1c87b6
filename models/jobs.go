package models

import (
	"sync"
	"time"
)

// Job states shared by search and download jobs.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

// SearchJob tracks an in-progress search. It is safe for concurrent use.
type SearchJob struct {
	ID            string
	Keyword       string
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string

	mu       sync.RWMutex
	status   string
	progress float64
	message  string
	result   SearchResult
	err      *ErrorDetail
}

// NewSearchJob creates a job in the processing state.
func NewSearchJob(id, keyword string) *SearchJob {
	return &SearchJob{
		ID:        id,
		Keyword:   keyword,
		CreatedAt: time.Now().Unix(),
		status:    StatusProcessing,
	}
}

// Report records progress; it satisfies ProgressFunc.
func (j *SearchJob) Report(fraction float64, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = fraction
	j.message = message
}

// Complete stores the search result and marks the job completed.
func (j *SearchJob) Complete(res *SearchResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = *res
	j.status = StatusCompleted
	j.progress = 1
}

// Fail marks the job failed.
func (j *SearchJob) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = AsScrapeError(err).ToDetail()
	j.status = StatusFailed
}

// Status returns the job's current state.
func (j *SearchJob) Status() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Records returns a copy of the collected records.
func (j *SearchJob) Records() []ResultRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]ResultRecord, len(j.result.Records))
	copy(out, j.result.Records)
	return out
}

// View renders one display page of the job.
func (j *SearchJob) View(page, pageSize int) SearchStatusResponse {
	j.mu.RLock()
	defer j.mu.RUnlock()

	start, end := PageBounds(len(j.result.Records), page, pageSize)
	records := make([]ResultRecord, end-start)
	copy(records, j.result.Records[start:end])

	return SearchStatusResponse{
		ID:           j.ID,
		Keyword:      j.Keyword,
		Status:       j.status,
		Progress:     j.progress,
		Message:      j.message,
		TotalPages:   j.result.TotalPages,
		PagesVisited: j.result.PagesVisited,
		Total:        len(j.result.Records),
		Page:         page,
		PageSize:     pageSize,
		Records:      records,
		Error:        j.err,

		NearDuplicatePages: j.result.NearDuplicatePages,
	}
}

// DownloadJob tracks an in-progress artifact download. It is safe for
// concurrent use.
type DownloadJob struct {
	ID            string
	SearchID      string
	Total         int
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string

	mu          sync.RWMutex
	status      string
	progress    float64
	message     string
	completed   int
	files       []string
	errors      []string
	archive     []byte
	archiveName string
	err         *ErrorDetail
}

// NewDownloadJob creates a job in the processing state.
func NewDownloadJob(id, searchID string, total int) *DownloadJob {
	return &DownloadJob{
		ID:        id,
		SearchID:  searchID,
		Total:     total,
		CreatedAt: time.Now().Unix(),
		status:    StatusProcessing,
	}
}

// Report records progress; it satisfies ProgressFunc.
func (j *DownloadJob) Report(fraction float64, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = fraction
	j.message = message
	j.completed = int(fraction*float64(j.Total) + 0.5)
}

// Complete stores the packaged archive and the per-item results. The job is
// completed when nothing failed, failed when nothing succeeded, and partial
// otherwise.
func (j *DownloadJob) Complete(files, errs []string, archiveName string, archive []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.files = files
	j.errors = errs
	j.archiveName = archiveName
	j.archive = archive
	j.completed = j.Total
	j.progress = 1
	switch {
	case len(files) == 0:
		j.status = StatusFailed
	case len(errs) > 0:
		j.status = StatusPartial
	default:
		j.status = StatusCompleted
	}
}

// Fail marks the whole job failed.
func (j *DownloadJob) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = AsScrapeError(err).ToDetail()
	j.status = StatusFailed
}

// Status returns the job's current state.
func (j *DownloadJob) Status() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Archive returns the packaged archive, or nil while processing or when
// nothing was downloaded.
func (j *DownloadJob) Archive() (string, []byte) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.archiveName, j.archive
}

// View renders the job state.
func (j *DownloadJob) View() DownloadStatusResponse {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return DownloadStatusResponse{
		ID:          j.ID,
		SearchID:    j.SearchID,
		Status:      j.status,
		Progress:    j.progress,
		Message:     j.message,
		Completed:   j.completed,
		Total:       j.Total,
		Files:       append([]string(nil), j.files...),
		Errors:      append([]string(nil), j.errors...),
		ArchiveName: j.archiveName,
		Error:       j.err,
	}
}
