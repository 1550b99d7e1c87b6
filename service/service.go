// Package service runs searches and artifact downloads end to end, each in
// its own browsing session.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/cache"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/export"
	"github.com/use-agent/judfetch/harvester"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/poll"
	"github.com/use-agent/judfetch/retrieval"
)

// Service ties the collector, enricher and retrieval pipeline to a browser.
type Service struct {
	Opener     browser.Opener
	Collector  *harvester.Collector
	Enricher   *harvester.Enricher
	Pipeline   *retrieval.Pipeline
	UserAgents config.UserAgentPool
	TempDir    string
	Now        func() time.Time
}

// New wires a Service from configuration. detailCache may be nil.
func New(opener browser.Opener, cfg *config.Config, pool config.UserAgentPool, detailCache *cache.Cache) *Service {
	clock := poll.RealClock
	downloader := retrieval.NewDownloader(cfg.Retrieval, cfg.Browser.DefaultProxy, cfg.Site.ResultBase, pool)

	return &Service{
		Opener:    opener,
		Collector: harvester.NewCollector(cfg.Site, cfg.Timing, clock),
		Enricher: &harvester.Enricher{
			Base:     cfg.Site.ResultBase,
			Timeout:  cfg.Timing.DetailTimeout,
			Interval: cfg.Timing.PollInterval,
			Clock:    clock,
			Cache:    detailCache,
		},
		Pipeline: &retrieval.Pipeline{
			Fetcher: &retrieval.Fetcher{
				Base:     cfg.Site.ResultBase,
				Timeout:  cfg.Timing.DetailTimeout,
				Interval: cfg.Timing.PollInterval,
				Clock:    clock,
				Getter:   downloader,
			},
			Opener:     opener,
			UserAgents: pool,
			Workers:    cfg.Retrieval.Workers,
		},
		UserAgents: pool,
		TempDir:    cfg.Retrieval.TempDir,
		Now:        time.Now,
	}
}

// Search collects the results of cfg.Keyword and, when cfg.Enrich is set,
// reads every record's detail fields in the same session.
func (s *Service) Search(ctx context.Context, cfg models.SessionConfig, progress models.ProgressFunc) (*models.SearchResult, error) {
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = s.UserAgents
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ua := config.UserAgentPool(cfg.UserAgents).Pick()
	sess, err := s.Opener.Open(ctx, ua)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Debug("close search session", "error", err)
		}
	}()

	start := time.Now()
	collectProgress, enrichProgress := progress, models.ProgressFunc(nil)
	if cfg.Enrich {
		collectProgress = scale(progress, 0, 0.5)
		enrichProgress = scale(progress, 0.5, 1)
	}

	col, err := s.Collector.Collect(ctx, sess, cfg, collectProgress)
	if err != nil {
		return nil, err
	}
	if cfg.Enrich && len(col.Records) > 0 {
		s.Enricher.EnrichAll(ctx, sess, col.Records, enrichProgress)
		if err := ctx.Err(); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "search cancelled while reading details", err)
		}
	}
	progress.Report(1, fmt.Sprintf("found %d judgments", len(col.Records)))

	slog.Info("search completed",
		"keyword", cfg.Keyword,
		"records", len(col.Records),
		"pages_visited", col.PagesVisited,
		"total_pages", col.TotalPages,
		"near_duplicate_pages", len(col.NearDuplicates),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return &models.SearchResult{
		Records:      col.Records,
		TotalPages:   col.TotalPages,
		PagesVisited: col.PagesVisited,
		SinglePage:   col.SinglePage,

		NearDuplicatePages: col.NearDuplicates,
	}, nil
}

// Download is the outcome of one artifact download run. Archive is nil
// when nothing was downloaded.
type Download struct {
	Files       []string
	Errors      []string
	ArchiveName string
	Archive     []byte
}

// Download fetches the artifacts of records into a temporary directory,
// packs the successes into a zip archive and removes the directory.
func (s *Service) Download(ctx context.Context, records []models.ResultRecord, scope string, progress models.ProgressFunc) (*Download, error) {
	dir, err := os.MkdirTemp(s.TempDir, "judfetch-*")
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "failed to create download directory", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("remove download directory", "dir", dir, "error", err)
		}
	}()

	var sess browser.Session
	if !s.Pipeline.OwnsSessions() {
		sess, err = s.Opener.Open(ctx, s.UserAgents.Pick())
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				slog.Debug("close download session", "error", err)
			}
		}()
	}

	res := s.Pipeline.Run(ctx, sess, records, dir, progress)
	out := &Download{Errors: res.Errors}
	for _, p := range res.Paths {
		out.Files = append(out.Files, filepath.Base(p))
	}
	slog.Info("download completed", "requested", len(records), "downloaded", len(res.Paths), "failed", len(res.Errors))

	if len(res.Paths) == 0 {
		return out, nil
	}
	entries, err := export.ReadEntries(res.Paths)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeDownloadFailed, "failed to read downloaded artifacts", err)
	}
	var buf bytes.Buffer
	if err := export.WriteZip(&buf, entries); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "failed to build archive", err)
	}
	out.ArchiveName = export.ArchiveName(scope, s.Now())
	out.Archive = buf.Bytes()
	return out, nil
}

// scale maps a sub-task's [0, 1] progress onto [lo, hi] of p.
func scale(p models.ProgressFunc, lo, hi float64) models.ProgressFunc {
	if p == nil {
		return nil
	}
	return func(fraction float64, message string) {
		p.Report(lo+fraction*(hi-lo), message)
	}
}
