// Package browser defines the browsing surfaces the harvester and the
// artifact fetcher drive. The go-rod implementation lives in package scraper.
package browser

import (
	"context"
	"errors"
)

// ErrNoElement is returned when an interaction targets a selector that
// matches nothing.
var ErrNoElement = errors.New("browser: element not found")

// Surface is a readable, clickable document: a top-level page or one of its
// frames.
type Surface interface {
	// URL is the document's current location.
	URL(ctx context.Context) (string, error)

	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)

	// Has reports whether selector currently matches an element.
	Has(ctx context.Context, selector string) (bool, error)

	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error
}

// Page is a top-level tab inside a Session.
type Page interface {
	Surface

	// Navigate loads url and waits for the document to settle.
	Navigate(ctx context.Context, url string) error

	// Fill replaces the value of the input matching selector.
	Fill(ctx context.Context, selector, text string) error

	// FrameByName returns the frame whose name or id is name, or nil when
	// there is none.
	FrameByName(ctx context.Context, name string) (Surface, error)

	// Frames lists the page's child frames in document order.
	Frames(ctx context.Context) ([]Surface, error)

	// Close releases the tab.
	Close() error
}

// Session is one isolated browser context with its own cookies, viewport
// and user agent.
type Session interface {
	// NewPage opens a tab in the session.
	NewPage(ctx context.Context) (Page, error)

	// UserAgent is the user agent chosen when the session was opened.
	UserAgent() string

	// Close disposes of the context and every page opened in it.
	Close() error
}

// Opener creates sessions.
type Opener interface {
	Open(ctx context.Context, userAgent string) (Session, error)
}
