package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/service"
	"github.com/use-agent/judfetch/webhook"
)

type fakeRunner struct {
	mu        sync.Mutex
	records   []models.ResultRecord
	searchErr error
	lastCfg   models.SessionConfig
	scopes    []string
	requested [][]models.ResultRecord
}

func (f *fakeRunner) Search(_ context.Context, cfg models.SessionConfig, progress models.ProgressFunc) (*models.SearchResult, error) {
	f.mu.Lock()
	f.lastCfg = cfg
	f.mu.Unlock()
	progress.Report(0.5, "halfway")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &models.SearchResult{Records: f.records, TotalPages: 3, PagesVisited: 2}, nil
}

func (f *fakeRunner) Download(_ context.Context, records []models.ResultRecord, scope string, _ models.ProgressFunc) (*service.Download, error) {
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.requested = append(f.requested, records)
	f.mu.Unlock()
	dl := &service.Download{}
	for _, r := range records {
		if strings.HasSuffix(r.Title, "3") {
			dl.Errors = append(dl.Errors, r.Label()+": artifact link not found")
			continue
		}
		dl.Files = append(dl.Files, r.Title+".pdf")
	}
	if len(dl.Files) > 0 {
		dl.ArchiveName = "裁判書合集_20240305_140709.zip"
		dl.Archive = []byte("PK")
	}
	return dl, nil
}

func testRecords(n int) []models.ResultRecord {
	out := make([]models.ResultRecord, n)
	for i := range out {
		out[i] = models.NewResultRecord(
			"judgment "+string(rune('0'+i%10)),
			"https://fjud.test/FJUD/data.aspx?id="+string(rune('a'+i)),
		)
	}
	return out
}

type fixedStats struct{ active, maxSessions int }

func (s fixedStats) Stats() (int, int) { return s.active, s.maxSessions }

func newTestRouter(runner Runner) (*gin.Engine, *Jobs) {
	gin.SetMode(gin.TestMode)
	jobs := NewJobs(time.Hour)
	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/health", Health(fixedStats{active: 1, maxSessions: 4}, time.Now()))
	v1.POST("/searches", PostSearch(runner, jobs))
	v1.GET("/searches/:id", GetSearch(jobs))
	v1.GET("/searches/:id/export", GetSearchExport(jobs))
	v1.POST("/searches/:id/downloads", PostDownload(runner, jobs))
	v1.GET("/downloads/:id", GetDownload(jobs))
	v1.GET("/downloads/:id/archive", GetDownloadArchive(jobs))
	return r, jobs
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// waitFor polls the status endpoint at path until the job leaves processing.
func waitFor(t *testing.T, r http.Handler, path string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := do(r, http.MethodGet, path, "")
		var body map[string]any
		json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != models.StatusProcessing {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job at %s never finished", path)
	return nil
}

func startSearch(t *testing.T, r http.Handler, body string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/searches", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /searches = %d: %s", w.Code, w.Body)
	}
	var resp models.SearchResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.ID, "search-") || resp.Status != models.StatusProcessing {
		t.Fatalf("response = %+v", resp)
	}
	return resp.ID
}

func TestPostSearch_Validation(t *testing.T) {
	r, jobs := newTestRouter(&fakeRunner{})
	defer jobs.Close()

	tests := []struct {
		name string
		body string
	}{
		{"missing keyword", `{}`},
		{"too many pages", `{"keyword":"詐欺","max_pages":26}`},
		{"bad webhook", `{"keyword":"詐欺","webhook_url":"not a url"}`},
		{"malformed", `{"keyword":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/searches", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestSearchLifecycle(t *testing.T) {
	runner := &fakeRunner{records: testRecords(25)}
	r, jobs := newTestRouter(runner)
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺","max_pages":2}`)
	body := waitFor(t, r, "/api/v1/searches/"+id+"?page=2&page_size=10")

	if body["status"] != models.StatusCompleted {
		t.Fatalf("status = %v", body["status"])
	}
	if body["total"].(float64) != 25 || body["total_pages"].(float64) != 3 {
		t.Errorf("total %v total_pages %v", body["total"], body["total_pages"])
	}
	if n := len(body["records"].([]any)); n != 10 {
		t.Errorf("page 2 holds %d records, want 10", n)
	}

	runner.mu.Lock()
	cfg := runner.lastCfg
	runner.mu.Unlock()
	if cfg.Keyword != "詐欺" || cfg.MaxPages != 2 || !cfg.Enrich || cfg.Dedup {
		t.Errorf("session config = %+v", cfg)
	}

	if w := do(r, http.MethodGet, "/api/v1/searches/"+id+"?page_size=5", ""); w.Code != http.StatusBadRequest {
		t.Errorf("page_size=5 status = %d, want 400", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/searches/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

func TestSearchFailure(t *testing.T) {
	runner := &fakeRunner{searchErr: models.NewScrapeError(models.ErrCodeNavigation, "navigation to search form failed", errors.New("net::ERR"))}
	r, jobs := newTestRouter(runner)
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	body := waitFor(t, r, "/api/v1/searches/"+id)
	if body["status"] != models.StatusFailed {
		t.Fatalf("status = %v", body["status"])
	}
	detail := body["error"].(map[string]any)
	if detail["code"] != models.ErrCodeNavigation {
		t.Errorf("error code = %v", detail["code"])
	}

	if w := do(r, http.MethodGet, "/api/v1/searches/"+id+"/export", ""); w.Code != http.StatusConflict {
		t.Errorf("export of failed search = %d, want 409", w.Code)
	}
}

func TestSearchExport(t *testing.T) {
	r, jobs := newTestRouter(&fakeRunner{records: testRecords(3)})
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	waitFor(t, r, "/api/v1/searches/"+id)

	w := do(r, http.MethodGet, "/api/v1/searches/"+id+"/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxMIME {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "UTF-8''") {
		t.Errorf("content disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("export is not a zip container")
	}
}

func TestDownloadLifecycle(t *testing.T) {
	runner := &fakeRunner{records: testRecords(5)}
	r, jobs := newTestRouter(runner)
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	waitFor(t, r, "/api/v1/searches/"+id)

	w := do(r, http.MethodPost, "/api/v1/searches/"+id+"/downloads", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST downloads = %d: %s", w.Code, w.Body)
	}
	var resp models.DownloadResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 5 {
		t.Errorf("total = %d, want 5", resp.Total)
	}

	body := waitFor(t, r, "/api/v1/downloads/"+resp.ID)
	if body["status"] != models.StatusPartial {
		t.Errorf("status = %v, want partial", body["status"])
	}
	if n := len(body["files"].([]any)); n != 4 {
		t.Errorf("files = %d, want 4", n)
	}
	if errs := body["errors"].([]any); len(errs) != 1 || errs[0] != "judgment 3: artifact link not found" {
		t.Errorf("errors = %v", errs)
	}

	w = do(r, http.MethodGet, "/api/v1/downloads/"+resp.ID+"/archive", "")
	if w.Code != http.StatusOK || w.Body.String() != "PK" {
		t.Errorf("archive = %d %q", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
}

func TestDownloadScopes(t *testing.T) {
	runner := &fakeRunner{records: testRecords(25)}
	r, jobs := newTestRouter(runner)
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	waitFor(t, r, "/api/v1/searches/"+id)

	tests := []struct {
		name   string
		body   string
		status int
		want   int
	}{
		{"all", `{"scope":"all"}`, http.StatusAccepted, 25},
		{"second page", `{"scope":"page","page":2,"page_size":10}`, http.StatusAccepted, 10},
		{"last page", `{"scope":"page","page":3,"page_size":10}`, http.StatusAccepted, 5},
		{"single item", `{"scope":"item","index":7}`, http.StatusAccepted, 1},
		{"page out of range", `{"scope":"page","page":9}`, http.StatusBadRequest, 0},
		{"item out of range", `{"scope":"item","index":26}`, http.StatusBadRequest, 0},
		{"unknown scope", `{"scope":"some"}`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/searches/"+id+"/downloads", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body)
			}
			if tt.status != http.StatusAccepted {
				return
			}
			var resp models.DownloadResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Total != tt.want {
				t.Errorf("total = %d, want %d", resp.Total, tt.want)
			}
			waitFor(t, r, "/api/v1/downloads/"+resp.ID)
		})
	}
}

func TestDownloadArchive_NothingDownloaded(t *testing.T) {
	runner := &fakeRunner{records: []models.ResultRecord{models.NewResultRecord("judgment 3", "https://fjud.test/x")}}
	r, jobs := newTestRouter(runner)
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	waitFor(t, r, "/api/v1/searches/"+id)

	w := do(r, http.MethodPost, "/api/v1/searches/"+id+"/downloads", `{"scope":"item","index":1}`)
	var resp models.DownloadResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	body := waitFor(t, r, "/api/v1/downloads/"+resp.ID)
	if body["status"] != models.StatusFailed {
		t.Errorf("status = %v, want failed", body["status"])
	}

	w = do(r, http.MethodGet, "/api/v1/downloads/"+resp.ID+"/archive", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("archive status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r, jobs := newTestRouter(&fakeRunner{})
	defer jobs.Close()

	w := do(r, http.MethodGet, "/api/v1/health", "")
	var resp models.HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "healthy" || resp.ActiveSessions != 1 || resp.MaxSessions != 4 || resp.Version != Version {
		t.Errorf("health = %+v", resp)
	}
}

func TestJobsExpire(t *testing.T) {
	jobs := NewJobs(time.Hour)
	defer jobs.Close()

	old := jobs.newSearch("old")
	old.Complete(&models.SearchResult{})
	old.CreatedAt = time.Now().Add(-2 * time.Hour).Unix()
	running := jobs.newSearch("running")
	running.CreatedAt = old.CreatedAt
	fresh := jobs.newSearch("fresh")
	fresh.Complete(&models.SearchResult{})

	jobs.expire(time.Now())

	if _, ok := jobs.search(old.ID); ok {
		t.Error("expired job still present")
	}
	if _, ok := jobs.search(running.ID); !ok {
		t.Error("processing job expired")
	}
	if _, ok := jobs.search(fresh.ID); !ok {
		t.Error("fresh job expired")
	}
}

func TestMapErrorToStatus(t *testing.T) {
	tests := map[string]int{
		models.ErrCodeInvalidInput: http.StatusBadRequest,
		models.ErrCodeNotReady:     http.StatusConflict,
		models.ErrCodeTimeout:      http.StatusGatewayTimeout,
		models.ErrCodeBrowserCrash: http.StatusServiceUnavailable,
		"SOMETHING_ELSE":           http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := mapErrorToStatus(code); got != want {
			t.Errorf("mapErrorToStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestGetSearch_PageFarPastTheEnd(t *testing.T) {
	r, jobs := newTestRouter(&fakeRunner{records: testRecords(30)})
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	waitFor(t, r, "/api/v1/searches/"+id)

	w := do(r, http.MethodGet, "/api/v1/searches/"+id+"?page=368934881474191033&page_size=50", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var resp models.SearchStatusResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Records) != 0 || resp.Total != 30 {
		t.Errorf("records %d total %d, want 0 and 30", len(resp.Records), resp.Total)
	}
}

// blockingRunner holds every run until its context ends.
type blockingRunner struct {
	started chan struct{}
}

func (b *blockingRunner) Search(ctx context.Context, _ models.SessionConfig, _ models.ProgressFunc) (*models.SearchResult, error) {
	close(b.started)
	<-ctx.Done()
	return nil, models.NewScrapeError(models.ErrCodeTimeout, "search cancelled", ctx.Err())
}

func (b *blockingRunner) Download(ctx context.Context, _ []models.ResultRecord, _ string, _ models.ProgressFunc) (*service.Download, error) {
	<-ctx.Done()
	return &service.Download{}, nil
}

func TestJobsClose_CancelsRunningSearch(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	r, jobs := newTestRouter(runner)

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("search never started")
	}

	closed := make(chan struct{})
	go func() {
		jobs.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return while a search was running")
	}

	job, ok := jobs.search(id)
	if !ok {
		t.Fatal("job vanished")
	}
	if job.Status() != models.StatusFailed {
		t.Errorf("status after Close = %q, want %q", job.Status(), models.StatusFailed)
	}
	jobs.Close()
}

// panickingRunner completes searches and crashes on downloads.
type panickingRunner struct{ fakeRunner }

func (p *panickingRunner) Download(context.Context, []models.ResultRecord, string, models.ProgressFunc) (*service.Download, error) {
	panic("browser crashed")
}

func TestDownload_PanicFailsJob(t *testing.T) {
	runner := &panickingRunner{fakeRunner{records: testRecords(1)}}
	r, jobs := newTestRouter(runner)
	defer jobs.Close()

	id := startSearch(t, r, `{"keyword":"詐欺"}`)
	waitFor(t, r, "/api/v1/searches/"+id)

	w := do(r, http.MethodPost, "/api/v1/searches/"+id+"/downloads", `{"scope":"item","index":1}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST downloads = %d: %s", w.Code, w.Body)
	}
	var resp models.DownloadResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	body := waitFor(t, r, "/api/v1/downloads/"+resp.ID)
	if body["status"] != models.StatusFailed {
		t.Errorf("status = %v, want failed", body["status"])
	}
	if w := do(r, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health after a crashed job = %d", w.Code)
	}
}

func TestSearchWebhook(t *testing.T) {
	events := make(chan webhook.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		if req.Header.Get(webhook.SignatureHeader) != webhook.Sign("s3cret", body) {
			http.Error(w, "bad signature", http.StatusUnauthorized)
			return
		}
		var ev webhook.Event
		json.Unmarshal(body, &ev)
		events <- ev
	}))
	defer srv.Close()

	r, jobs := newTestRouter(&fakeRunner{records: testRecords(25)})
	defer jobs.Close()
	jobs.Notifier = &webhook.Notifier{Client: srv.Client(), Delays: []time.Duration{0}}

	id := startSearch(t, r, `{"keyword":"詐欺","max_pages":2,"webhook_url":"`+srv.URL+`","webhook_secret":"s3cret"}`)

	select {
	case ev := <-events:
		if ev.Type != webhook.SearchCompleted || ev.JobID != id {
			t.Errorf("event = %+v", ev)
		}
		if ev.Search == nil || ev.Search.Total != 25 || ev.Search.TotalPages != 3 || ev.Search.Status != models.StatusCompleted {
			t.Errorf("search payload = %+v", ev.Search)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never delivered")
	}
}
