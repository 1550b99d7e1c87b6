package handler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/service"
	"github.com/use-agent/judfetch/webhook"
)

// Runner performs searches and downloads. *service.Service satisfies it.
type Runner interface {
	Search(ctx context.Context, cfg models.SessionConfig, progress models.ProgressFunc) (*models.SearchResult, error)
	Download(ctx context.Context, records []models.ResultRecord, scope string, progress models.ProgressFunc) (*service.Download, error)
}

// Jobs holds in-flight and finished search and download jobs. Finished
// jobs older than the TTL are expired by a background goroutine. Running
// jobs share one context that Close cancels.
type Jobs struct {
	searches  sync.Map
	downloads sync.Map
	ttl       time.Duration

	// Notifier reports finished jobs to their webhook.
	Notifier *webhook.Notifier

	ctx       context.Context
	cancel    context.CancelFunc
	running   sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewJobs starts a store that forgets jobs after ttl.
func NewJobs(ttl time.Duration) *Jobs {
	ctx, cancel := context.WithCancel(context.Background())
	j := &Jobs{
		ttl:      ttl,
		Notifier: webhook.NewNotifier(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go j.expireLoop()
	return j
}

// Close cancels every running job, waits for them to return and stops
// the expiry goroutine. Jobs cancelled this way end as failed or partial.
func (j *Jobs) Close() {
	j.closeOnce.Do(func() {
		j.cancel()
		j.running.Wait()
		close(j.done)
	})
}

// start runs fn in the background under the store's context. A panic in
// fn fails the job through fail and leaves the server running.
func (j *Jobs) start(id string, fail func(error), fn func(ctx context.Context)) {
	j.running.Add(1)
	go func() {
		defer j.running.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("job panicked", "id", id, "panic", r, "stack", string(debug.Stack()))
				fail(fmt.Errorf("job %s panicked: %v", id, r))
			}
		}()
		fn(j.ctx)
	}()
}

func (j *Jobs) expireLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.expire(time.Now())
		case <-j.done:
			return
		}
	}
}

func (j *Jobs) expire(now time.Time) {
	cutoff := now.Add(-j.ttl).Unix()
	j.searches.Range(func(key, value any) bool {
		job := value.(*models.SearchJob)
		if job.CreatedAt < cutoff && job.Status() != models.StatusProcessing {
			j.searches.Delete(key)
		}
		return true
	})
	j.downloads.Range(func(key, value any) bool {
		job := value.(*models.DownloadJob)
		if job.CreatedAt < cutoff && job.Status() != models.StatusProcessing {
			j.downloads.Delete(key)
		}
		return true
	})
}

func (j *Jobs) newSearch(keyword string) *models.SearchJob {
	job := models.NewSearchJob("search-"+uuid.NewString(), keyword)
	j.searches.Store(job.ID, job)
	return job
}

func (j *Jobs) search(id string) (*models.SearchJob, bool) {
	v, ok := j.searches.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.SearchJob), true
}

func (j *Jobs) newDownload(searchID string, total int) *models.DownloadJob {
	job := models.NewDownloadJob("download-"+uuid.NewString(), searchID, total)
	j.downloads.Store(job.ID, job)
	return job
}

func (j *Jobs) download(id string) (*models.DownloadJob, bool) {
	v, ok := j.downloads.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.DownloadJob), true
}
