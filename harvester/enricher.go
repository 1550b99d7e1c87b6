package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/cache"
	"github.com/use-agent/judfetch/extract"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/poll"
)

// Enricher reads case number, date and category from detail pages.
type Enricher struct {
	Base     string
	Timeout  time.Duration
	Interval time.Duration
	Clock    poll.Clock

	// Cache memoizes successful reads by URL. Optional.
	Cache *cache.Cache
}

// Enrich opens url in a fresh page of sess and reads its labeled rows. It
// never fails: absent rows yield models.NotFound and an unreadable page
// yields models.FailedEnrichment.
func (e *Enricher) Enrich(ctx context.Context, sess browser.Session, url string) models.Enrichment {
	url = extract.ResolveURL(e.Base, url)
	if e.Cache != nil {
		if hit, ok := e.Cache.Get(url); ok {
			return hit
		}
	}

	fields, err := e.read(ctx, sess, url)
	if err != nil {
		slog.Warn("reading detail page failed", "url", url, "error", err)
		return models.FailedEnrichment()
	}
	if e.Cache != nil {
		e.Cache.Set(url, fields)
	}
	return fields
}

func (e *Enricher) read(ctx context.Context, sess browser.Session, url string) (models.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return models.Enrichment{}, fmt.Errorf("open detail page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close detail page", "error", err)
		}
	}()

	html, err := LoadDetail(ctx, page, url, e.Clock, e.Timeout, e.Interval)
	if err != nil {
		return models.Enrichment{}, err
	}
	return extract.DetailFields(html)
}

// EnrichAll fills the detail fields of every record in place, one page at
// a time.
func (e *Enricher) EnrichAll(ctx context.Context, sess browser.Session, records []models.ResultRecord, progress models.ProgressFunc) {
	for i := range records {
		if ctx.Err() != nil {
			return
		}
		records[i].Apply(e.Enrich(ctx, sess, records[i].URL))
		progress.Report(float64(i+1)/float64(len(records)),
			fmt.Sprintf("reading details %d/%d: %s", i+1, len(records), records[i].Label()))
	}
}

// LoadDetail navigates page to url, waits for the detail root and returns
// the rendered HTML.
func LoadDetail(ctx context.Context, page browser.Page, url string, clock poll.Clock, timeout, interval time.Duration) (string, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return "", categorizeError(err, "navigation to detail page failed")
	}
	err := poll.Until(ctx, clock, timeout, interval, func(ctx context.Context) (bool, error) {
		return page.Has(ctx, extract.SelDetailRoot)
	})
	if err != nil {
		return "", categorizeError(fmt.Errorf("wait for detail root: %w", err), "detail page did not render")
	}
	return page.HTML(ctx)
}
