// Package retrieval downloads judgment artifacts for collected records.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/extract"
	"github.com/use-agent/judfetch/harvester"
	"github.com/use-agent/judfetch/poll"
)

// ErrArtifactLinkNotFound is returned when a detail page has no artifact
// export link.
var ErrArtifactLinkNotFound = errors.New("artifact link not found")

// Getter fetches the bytes behind an absolute URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Fetcher saves the artifact of a single detail page.
type Fetcher struct {
	Base     string
	Timeout  time.Duration
	Interval time.Duration
	Clock    poll.Clock
	Getter   Getter
}

// Fetch opens url in a fresh page of sess, names the artifact after the
// page's case number and category, downloads it and writes it into dir.
// It returns the written path.
func (f *Fetcher) Fetch(ctx context.Context, sess browser.Session, url, dir string) (string, error) {
	url = extract.ResolveURL(f.Base, url)

	loadCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	html, err := f.load(loadCtx, sess, url)
	cancel()
	if err != nil {
		return "", err
	}

	fields, err := extract.DetailFields(html)
	if err != nil {
		return "", fmt.Errorf("read detail page: %w", err)
	}
	href, ok := extract.ArtifactHref(html)
	if !ok {
		return "", ErrArtifactLinkNotFound
	}
	artifactURL := extract.ResolveURL(f.Base, href)

	body, err := f.Getter.Get(ctx, artifactURL)
	if err != nil {
		return "", err
	}

	path, err := writeUnique(dir, Filename(fields.CaseNumber, fields.CaseCategory), body)
	if err != nil {
		return "", err
	}
	slog.Debug("artifact saved", "url", url, "path", path, "bytes", len(body))
	return path, nil
}

func (f *Fetcher) load(ctx context.Context, sess browser.Session, url string) (string, error) {
	page, err := sess.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("open detail page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close detail page", "error", err)
		}
	}()
	return harvester.LoadDetail(ctx, page, url, f.Clock, f.Timeout, f.Interval)
}
