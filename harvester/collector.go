package harvester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/extract"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/poll"
)

// Collection is what a search produced.
type Collection struct {
	Records      []models.ResultRecord
	TotalPages   int
	PagesVisited int
	SinglePage   bool

	// NearDuplicates lists the pages whose titles nearly matched the page
	// before them. Their records are kept unless dedup drops them.
	NearDuplicates []int
}

// Collector runs a query and pages through its results.
type Collector struct {
	Site     config.SiteConfig
	Timing   config.TimingConfig
	Clock    poll.Clock
	Locator  *FrameLocator
	Detector *TransitionDetector
}

// NewCollector wires a Collector with the standard locator and detector.
func NewCollector(site config.SiteConfig, timing config.TimingConfig, clock poll.Clock) *Collector {
	return &Collector{
		Site:    site,
		Timing:  timing,
		Clock:   clock,
		Locator: NewFrameLocator(site.FrameName, site.ResultsEndpoint, clock, timing.FrameTimeout, timing.PollInterval),
		Detector: &TransitionDetector{
			Clock:        clock,
			Settle:       timing.NextSettle,
			RetrySettle:  timing.RetrySettle,
			TitleTimeout: timing.TitleTimeout,
			Interval:     timing.PollInterval,
			Attempts:     timing.TransitionAttempts,

			NearDuplicateBits: timing.NearDuplicateBits,
		},
	}
}

// Collect submits cfg.Keyword and gathers result records from up to
// cfg.MaxPages pages, in page order. A query without results yields an
// empty collection, not an error. Faults while paging end the loop early
// and keep what was collected so far. Only a failure to load or submit the
// search form is returned as an error.
func (c *Collector) Collect(ctx context.Context, sess browser.Session, cfg models.SessionConfig, progress models.ProgressFunc) (*Collection, error) {
	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open search page", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close search page", "error", err)
		}
	}()

	progress.Report(0, "opening search form")
	if err := c.submit(ctx, page, cfg.Keyword); err != nil {
		return nil, err
	}

	progress.Report(0, "locating result list")
	loc, err := c.Locator.Locate(ctx, page)
	if err != nil {
		if errors.Is(err, ErrFrameNotFound) {
			slog.Info("search returned no results", "keyword", cfg.Keyword)
			progress.Report(1, "no results found")
			return &Collection{}, nil
		}
		return nil, categorizeError(err, "locating result list failed")
	}

	if loc.SinglePage {
		return c.collectSinglePage(ctx, loc.Surface, cfg, progress)
	}
	return c.collectPages(ctx, page, loc, cfg, progress)
}

func (c *Collector) submit(ctx context.Context, page browser.Page, keyword string) error {
	navCtx, cancel := context.WithTimeout(ctx, c.Timing.NavigationTimeout)
	defer cancel()

	if err := page.Navigate(navCtx, c.Site.EntryURL); err != nil {
		return categorizeError(err, "navigation to search form failed")
	}
	if err := page.Fill(navCtx, extract.SelKeyword, keyword); err != nil {
		return categorizeError(err, "filling keyword failed")
	}
	if err := page.Click(navCtx, extract.SelSubmit); err != nil {
		return categorizeError(err, "submitting search failed")
	}
	return poll.Sleep(ctx, c.Clock, c.Timing.SearchSettle)
}

func (c *Collector) collectSinglePage(ctx context.Context, surface browser.Surface, cfg models.SessionConfig, progress models.ProgressFunc) (*Collection, error) {
	html, err := surface.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, "reading result page failed")
	}
	acc := newAccumulator(c.Site.ResultBase, cfg.Dedup)
	n := acc.add(html)
	progress.Report(1, fmt.Sprintf("found %d judgments", n))
	return &Collection{
		Records:      acc.records,
		TotalPages:   1,
		PagesVisited: 1,
		SinglePage:   true,
	}, nil
}

func (c *Collector) collectPages(ctx context.Context, page browser.Page, loc *Located, cfg models.SessionConfig, progress models.ProgressFunc) (*Collection, error) {
	surface := loc.Surface
	acc := newAccumulator(c.Site.ResultBase, cfg.Dedup)
	visited := 0
	lastHTML := ""
	var ctxErr error

	for pageNo := 1; pageNo <= cfg.MaxPages; pageNo++ {
		html, err := surface.HTML(ctx)
		if err != nil {
			if ctxErr = ctx.Err(); ctxErr != nil {
				break
			}
			slog.Warn("reading result page failed, relocating result frame", "page", pageNo, "error", err)
			next := c.relocate(ctx, page)
			if next == nil {
				break
			}
			surface = next
			if html, err = surface.HTML(ctx); err != nil {
				slog.Warn("reading relocated result frame failed", "page", pageNo, "error", err)
				break
			}
		}

		lastHTML = html
		n := acc.add(html)
		visited++
		progress.Report(float64(pageNo)/float64(cfg.MaxPages),
			fmt.Sprintf("page %d/%d | this page: %d | total: %d", pageNo, cfg.MaxPages, n, len(acc.records)))

		if pageNo == cfg.MaxPages {
			break
		}
		if !extract.HasNext(html) {
			slog.Info("last result page reached", "page", pageNo)
			break
		}

		outcome, err := c.Detector.Advance(ctx, surface)
		if err != nil {
			if ctxErr = ctx.Err(); ctxErr != nil {
				break
			}
			slog.Warn("page transition failed, relocating result frame", "page", pageNo, "error", err)
			next := c.relocate(ctx, page)
			if next == nil {
				break
			}
			surface = next
			continue
		}
		switch outcome {
		case Unconfirmed:
			slog.Warn("page transition unconfirmed, continuing with current content",
				"page", pageNo,
				"titles", describeSnapshot(extract.Snapshot(html)),
			)
		case NearDuplicate:
			acc.nearDuplicates = append(acc.nearDuplicates, pageNo+1)
			progress.Report(float64(pageNo)/float64(cfg.MaxPages),
				fmt.Sprintf("page %d looks like page %d served again", pageNo+1, pageNo))
		}
	}

	if html, err := surface.HTML(ctx); err == nil {
		lastHTML = html
	}
	totalPages := visited
	if lastHTML != "" {
		totalPages = max(extract.EstimateTotalPages(lastHTML), visited)
	}

	progress.Report(1, fmt.Sprintf("collected %d judgments (%d/%d pages)", len(acc.records), visited, totalPages))
	return &Collection{
		Records:        acc.records,
		TotalPages:     totalPages,
		PagesVisited:   visited,
		NearDuplicates: acc.nearDuplicates,
	}, ctxErr
}

func (c *Collector) relocate(ctx context.Context, page browser.Page) browser.Surface {
	loc, err := c.Locator.Relocate(ctx, page)
	if err != nil {
		slog.Warn("result frame lost, keeping partial results", "error", err)
		return nil
	}
	return loc.Surface
}

// accumulator appends per-page extractions in visitation order.
type accumulator struct {
	base    string
	dedup   bool
	seen    map[string]struct{}
	records []models.ResultRecord

	nearDuplicates []int
}

func newAccumulator(base string, dedup bool) *accumulator {
	return &accumulator{base: base, dedup: dedup, seen: make(map[string]struct{})}
}

// add extracts the titles of html and returns how many were on the page.
func (a *accumulator) add(html string) int {
	links, err := extract.Titles(html)
	if err != nil {
		slog.Warn("parsing result page failed", "error", err)
		return 0
	}
	for _, l := range links {
		rec := models.NewResultRecord(l.Text, extract.ResolveURL(a.base, l.Href))
		if a.dedup {
			if _, dup := a.seen[rec.URL]; dup {
				continue
			}
			a.seen[rec.URL] = struct{}{}
		}
		a.records = append(a.records, rec)
	}
	return len(links)
}
