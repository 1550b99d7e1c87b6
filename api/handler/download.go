package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/webhook"
)

// PostDownload returns a handler for POST /api/v1/searches/:id/downloads.
// It selects records of a completed search by scope and downloads their
// artifacts in the background. An empty body downloads every record.
func PostDownload(runner Runner, jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		search, ok := completedSearch(c, jobs)
		if !ok {
			return
		}

		var req models.DownloadRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		req.Defaults()

		records, err := req.Select(search.Records())
		if err != nil {
			respondScrapeError(c, err)
			return
		}

		job := jobs.newDownload(search.ID, len(records))
		job.WebhookURL = req.WebhookURL
		job.WebhookSecret = req.WebhookSecret

		jobs.start(job.ID, job.Fail, func(ctx context.Context) {
			runDownload(ctx, runner, jobs.Notifier, job, records, req.Scope)
		})

		c.JSON(http.StatusAccepted, models.DownloadResponse{
			ID:     job.ID,
			Status: models.StatusProcessing,
			Total:  len(records),
		})
	}
}

func runDownload(ctx context.Context, runner Runner, notifier *webhook.Notifier, job *models.DownloadJob, records []models.ResultRecord, scope string) {
	dl, err := runner.Download(ctx, records, scope, job.Report)
	if err != nil {
		slog.Warn("download failed", "id", job.ID, "error", err)
		job.Fail(err)
	} else {
		job.Complete(dl.Files, dl.Errors, dl.ArchiveName, dl.Archive)
	}

	notifier.Notify(webhook.Target{URL: job.WebhookURL, Secret: job.WebhookSecret},
		webhook.DownloadEvent(job.View(), time.Now()))
}

// GetDownload returns a handler for GET /api/v1/downloads/:id.
func GetDownload(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.download(c.Param("id"))
		if !ok {
			respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "download job not found")
			return
		}
		c.JSON(http.StatusOK, job.View())
	}
}

// GetDownloadArchive returns a handler for GET /api/v1/downloads/:id/archive.
func GetDownloadArchive(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.download(c.Param("id"))
		if !ok {
			respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "download job not found")
			return
		}
		if job.Status() == models.StatusProcessing {
			respondError(c, http.StatusConflict, models.ErrCodeNotReady, "download is still processing")
			return
		}
		name, archive := job.Archive()
		if archive == nil {
			respondError(c, http.StatusNotFound, models.ErrCodeArtifactNotFound, "no artifacts were downloaded")
			return
		}
		attachment(c, name)
		c.Data(http.StatusOK, "application/zip", archive)
	}
}
