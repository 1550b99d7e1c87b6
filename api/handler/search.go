package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/export"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/webhook"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PostSearch returns a handler for POST /api/v1/searches.
// It validates the request, creates a search job and runs the search in
// the background.
func PostSearch(runner Runner, jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		req.Defaults()

		cfg := models.SessionConfig{
			Keyword:  req.Keyword,
			MaxPages: req.MaxPages,
			Dedup:    req.Dedup,
			Enrich:   *req.Enrich,
		}

		job := jobs.newSearch(req.Keyword)
		job.WebhookURL = req.WebhookURL
		job.WebhookSecret = req.WebhookSecret

		jobs.start(job.ID, job.Fail, func(ctx context.Context) {
			runSearch(ctx, runner, jobs.Notifier, job, cfg)
		})

		c.JSON(http.StatusAccepted, models.SearchResponse{
			ID:     job.ID,
			Status: models.StatusProcessing,
		})
	}
}

func runSearch(ctx context.Context, runner Runner, notifier *webhook.Notifier, job *models.SearchJob, cfg models.SessionConfig) {
	start := time.Now()
	res, err := runner.Search(ctx, cfg, job.Report)
	if err != nil {
		slog.Warn("search failed", "id", job.ID, "keyword", cfg.Keyword, "error", err)
		job.Fail(err)
	} else {
		job.Complete(res)
	}

	notifier.Notify(webhook.Target{URL: job.WebhookURL, Secret: job.WebhookSecret},
		webhook.SearchEvent(job.View(1, models.DefaultPageSize), time.Since(start), time.Now()))
}

// GetSearch returns a handler for GET /api/v1/searches/:id.
// Records are paged with ?page= and ?page_size=.
func GetSearch(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.search(c.Param("id"))
		if !ok {
			respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "search job not found")
			return
		}

		page, err := queryInt(c, "page", 1)
		if err != nil || page < 1 {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "page must be a positive integer")
			return
		}
		pageSize, err := queryInt(c, "page_size", models.DefaultPageSize)
		if err != nil || pageSize < models.MinPageSize || pageSize > models.MaxPageSize {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput,
				fmt.Sprintf("page_size must be between %d and %d", models.MinPageSize, models.MaxPageSize))
			return
		}

		c.JSON(http.StatusOK, job.View(page, pageSize))
	}
}

// GetSearchExport returns a handler for GET /api/v1/searches/:id/export.
// It streams the records of a completed search as a spreadsheet.
func GetSearchExport(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := completedSearch(c, jobs)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, job.Records()); err != nil {
			slog.Error("spreadsheet export failed", "id", job.ID, "error", err)
			respondError(c, http.StatusInternalServerError, models.ErrCodeInternal, "failed to build spreadsheet")
			return
		}
		attachment(c, export.XLSXName)
		c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
	}
}

// completedSearch loads the job named by :id and writes an error response
// unless it completed.
func completedSearch(c *gin.Context, jobs *Jobs) (*models.SearchJob, bool) {
	job, ok := jobs.search(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "search job not found")
		return nil, false
	}
	switch job.Status() {
	case models.StatusCompleted:
		return job, true
	case models.StatusProcessing:
		respondError(c, http.StatusConflict, models.ErrCodeNotReady, "search is still processing")
	default:
		respondError(c, http.StatusConflict, models.ErrCodeNotReady, "search did not complete")
	}
	return nil, false
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// attachment sets a Content-Disposition that survives non-ASCII names.
func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="download"; filename*=UTF-8''%s`, url.PathEscape(name)))
}
