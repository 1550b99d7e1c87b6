// Package harvester drives a browsing session through the judgment search:
// it finds the result frame, pages through results and reads detail pages.
package harvester

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/extract"
	"github.com/use-agent/judfetch/poll"
)

// ErrFrameNotFound means no strategy produced a surface listing results.
// For a search this means the query matched nothing.
var ErrFrameNotFound = errors.New("result frame not found")

// Strategy proposes the surface holding the result list. Find returns nil
// when the strategy has nothing to offer on this page.
type Strategy struct {
	Name string
	Find func(ctx context.Context, page browser.Page) (browser.Surface, error)

	// TopLevel marks the fallback that reads results off the page itself.
	TopLevel bool
}

// ByName finds the frame whose name or id is name.
func ByName(name string) Strategy {
	return Strategy{
		Name: "name",
		Find: func(ctx context.Context, page browser.Page) (browser.Surface, error) {
			return page.FrameByName(ctx, name)
		},
	}
}

// ByURL finds the first frame whose location contains substr.
func ByURL(substr string) Strategy {
	return Strategy{
		Name: "url",
		Find: func(ctx context.Context, page browser.Page) (browser.Surface, error) {
			frames, err := page.Frames(ctx)
			if err != nil {
				return nil, err
			}
			for _, f := range frames {
				u, err := f.URL(ctx)
				if err != nil {
					continue
				}
				if strings.Contains(u, substr) {
					return f, nil
				}
			}
			return nil, nil
		},
	}
}

// FirstFrame takes whatever frame comes first in the document.
func FirstFrame() Strategy {
	return Strategy{
		Name: "first-frame",
		Find: func(ctx context.Context, page browser.Page) (browser.Surface, error) {
			frames, err := page.Frames(ctx)
			if err != nil || len(frames) == 0 {
				return nil, err
			}
			return frames[0], nil
		},
	}
}

// TopLevel reads results straight from the page.
func TopLevel() Strategy {
	return Strategy{
		Name:     "top-level",
		TopLevel: true,
		Find: func(_ context.Context, page browser.Page) (browser.Surface, error) {
			return page, nil
		},
	}
}

// Located is the outcome of a successful Locate.
type Located struct {
	Surface  browser.Surface
	Strategy string

	// SinglePage is set when results came from the top-level page. The
	// site rendered them without pagination, so there is nothing to page.
	SinglePage bool
}

// FrameLocator runs its strategies in order until one yields a surface with
// at least one result title.
type FrameLocator struct {
	Strategies []Strategy
	Clock      poll.Clock
	Timeout    time.Duration
	Interval   time.Duration
}

// NewFrameLocator returns the standard chain: frame by name, frame by
// results endpoint, first frame, then the top-level page.
func NewFrameLocator(frameName, resultsEndpoint string, clock poll.Clock, timeout, interval time.Duration) *FrameLocator {
	return &FrameLocator{
		Strategies: []Strategy{
			ByName(frameName),
			ByURL(resultsEndpoint),
			FirstFrame(),
			TopLevel(),
		},
		Clock:    clock,
		Timeout:  timeout,
		Interval: interval,
	}
}

// Locate polls the strategy chain until a surface lists results or the
// timeout elapses, in which case it returns ErrFrameNotFound.
func (l *FrameLocator) Locate(ctx context.Context, page browser.Page) (*Located, error) {
	return l.locate(ctx, page, l.Strategies)
}

// Relocate is Locate without the top-level fallback. It recovers the
// result frame after a fault mid-pagination.
func (l *FrameLocator) Relocate(ctx context.Context, page browser.Page) (*Located, error) {
	frameOnly := make([]Strategy, 0, len(l.Strategies))
	for _, s := range l.Strategies {
		if !s.TopLevel {
			frameOnly = append(frameOnly, s)
		}
	}
	return l.locate(ctx, page, frameOnly)
}

func (l *FrameLocator) locate(ctx context.Context, page browser.Page, strategies []Strategy) (*Located, error) {
	var found *Located
	err := poll.Until(ctx, l.Clock, l.Timeout, l.Interval, func(ctx context.Context) (bool, error) {
		found = tryStrategies(ctx, page, strategies)
		return found != nil, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrFrameNotFound
	}
	slog.Debug("result surface located", "strategy", found.Strategy, "singlePage", found.SinglePage)
	return found, nil
}

func tryStrategies(ctx context.Context, page browser.Page, strategies []Strategy) *Located {
	for _, s := range strategies {
		surface, err := s.Find(ctx, page)
		if err != nil {
			slog.Debug("locator strategy failed", "strategy", s.Name, "error", err)
			continue
		}
		if surface == nil {
			continue
		}
		ok, err := surface.Has(ctx, extract.SelTitle)
		if err != nil || !ok {
			continue
		}
		return &Located{Surface: surface, Strategy: s.Name, SinglePage: s.TopLevel}
	}
	return nil
}
