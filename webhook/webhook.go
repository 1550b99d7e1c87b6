// Package webhook notifies subscribers when a search or download job ends.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/judfetch/models"
)

// EventType names what finished.
type EventType string

const (
	SearchCompleted   EventType = "search.completed"
	DownloadCompleted EventType = "download.completed"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Judfetch-Signature"

const userAgent = "Judfetch-Webhook/1.0"

// Search summarizes a finished search job.
type Search struct {
	Keyword      string              `json:"keyword"`
	Status       string              `json:"status"`
	Total        int                 `json:"total"`
	TotalPages   int                 `json:"total_pages"`
	PagesVisited int                 `json:"pages_visited"`
	ElapsedMS    int64               `json:"elapsed_ms"`
	Error        *models.ErrorDetail `json:"error,omitempty"`
}

// Download summarizes a finished download job. Errors carry one
// "label: reason" line per judgment whose document was not fetched.
type Download struct {
	SearchID    string              `json:"search_id"`
	Status      string              `json:"status"`
	Requested   int                 `json:"requested"`
	Downloaded  int                 `json:"downloaded"`
	Failed      int                 `json:"failed"`
	Files       []string            `json:"files"`
	Errors      []string            `json:"errors"`
	ArchiveName string              `json:"archive_name,omitempty"`
	Error       *models.ErrorDetail `json:"error,omitempty"`
}

// Event is the payload sent to webhook endpoints. Exactly one of Search
// and Download is set, matching Type.
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"job_id"`
	Timestamp int64     `json:"timestamp"`
	Search    *Search   `json:"search,omitempty"`
	Download  *Download `json:"download,omitempty"`
}

// SearchEvent builds the completion event of a search job from its status.
func SearchEvent(v models.SearchStatusResponse, elapsed time.Duration, now time.Time) *Event {
	return &Event{
		Type:      SearchCompleted,
		JobID:     v.ID,
		Timestamp: now.Unix(),
		Search: &Search{
			Keyword:      v.Keyword,
			Status:       v.Status,
			Total:        v.Total,
			TotalPages:   v.TotalPages,
			PagesVisited: v.PagesVisited,
			ElapsedMS:    elapsed.Milliseconds(),
			Error:        v.Error,
		},
	}
}

// DownloadEvent builds the completion event of a download job from its status.
func DownloadEvent(v models.DownloadStatusResponse, now time.Time) *Event {
	return &Event{
		Type:      DownloadCompleted,
		JobID:     v.ID,
		Timestamp: now.Unix(),
		Download: &Download{
			SearchID:    v.SearchID,
			Status:      v.Status,
			Requested:   v.Total,
			Downloaded:  len(v.Files),
			Failed:      len(v.Errors),
			Files:       v.Files,
			Errors:      v.Errors,
			ArchiveName: v.ArchiveName,
			Error:       v.Error,
		},
	}
}

// Target is where one job's events go.
type Target struct {
	URL    string
	Secret string
}

// Sign returns the signature header value for body: sha256=<hex>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events over HTTP.
type Notifier struct {
	Client *http.Client

	// Delays are the pauses before each attempt of Notify.
	Delays []time.Duration
}

// NewNotifier returns a Notifier that tries four times: at once, then
// after 1s, 5s and 30s.
func NewNotifier() *Notifier {
	return &Notifier{
		Client: &http.Client{Timeout: 10 * time.Second},
		Delays: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Deliver posts ev to t once. The body is signed when t.Secret is set.
func (n *Notifier) Deliver(ctx context.Context, t Target, ev *Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if t.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(t.Secret, body))
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify delivers ev in the background, retrying per Delays. A job that
// ends at shutdown still reports, so delivery does not follow the job's
// context.
func (n *Notifier) Notify(t Target, ev *Event) {
	if t.URL == "" {
		return
	}
	go func() {
		for attempt, delay := range n.Delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, t, ev)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", t.URL,
					"event", ev.Type,
					"job_id", ev.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", t.URL,
				"event", ev.Type,
				"job_id", ev.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", t.URL,
			"event", ev.Type,
			"job_id", ev.JobID,
		)
	}()
}
