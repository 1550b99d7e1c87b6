package models

import "strings"

// Sentinel values substituted for structured fields that could not be read.
const (
	// Unknown is the value of a field that has not been enriched yet.
	Unknown = "unknown"

	// NotFound marks a labeled row that is absent from the detail page.
	NotFound = "not found"

	// Failed marks every field of a detail page that could not be loaded.
	Failed = "failed"
)

// ResultRecord is one judgment listed on a result page. URL is its natural key.
type ResultRecord struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	CaseNumber   string `json:"case_number"`
	CaseDate     string `json:"case_date"`
	CaseCategory string `json:"case_category"`
}

// NewResultRecord returns a record whose detail fields are still Unknown.
func NewResultRecord(title, url string) ResultRecord {
	return ResultRecord{
		Title:        strings.TrimSpace(title),
		URL:          strings.TrimSpace(url),
		CaseNumber:   Unknown,
		CaseDate:     Unknown,
		CaseCategory: Unknown,
	}
}

// Label identifies the record in user-facing messages.
func (r ResultRecord) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.URL
}

// Enrichment is the triple of fields read from a judgment's detail page.
// Each field is either a value or one of the sentinels.
type Enrichment struct {
	CaseNumber   string `json:"case_number"`
	CaseDate     string `json:"case_date"`
	CaseCategory string `json:"case_category"`
}

// FailedEnrichment is returned when the detail page could not be read at all.
func FailedEnrichment() Enrichment {
	return Enrichment{CaseNumber: Failed, CaseDate: Failed, CaseCategory: Failed}
}

// Apply fills the record's detail fields from e.
func (r *ResultRecord) Apply(e Enrichment) {
	r.CaseNumber = e.CaseNumber
	r.CaseDate = e.CaseDate
	r.CaseCategory = e.CaseCategory
}

// RetrievalOutcome is the result of fetching one record's artifact.
// Exactly one of Path and Err is set.
type RetrievalOutcome struct {
	Record ResultRecord
	Path   string
	Err    error
}

// Succeeded reports whether the artifact was written to Path.
func (o RetrievalOutcome) Succeeded() bool {
	return o.Err == nil && o.Path != ""
}

// ProgressFunc receives a completion fraction in [0, 1] and a status message.
type ProgressFunc func(fraction float64, message string)

// Report calls f if it is non-nil, clamping fraction to [0, 1].
func (f ProgressFunc) Report(fraction float64, message string) {
	if f == nil {
		return
	}
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	f(fraction, message)
}
