// Package scraper drives a real Chromium through go-rod. It implements the
// browser interfaces on top of incognito browser contexts.
package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/models"
)

// Scraper owns the browser process and hands out isolated sessions.
// It is safe for concurrent use.
type Scraper struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	slots   chan struct{}
	active  atomic.Int32
}

// NewScraper launches the browser with the stealth flag set.
func NewScraper(cfg config.BrowserConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "zh-TW")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &Scraper{
		browser: b,
		cfg:     cfg,
		slots:   make(chan struct{}, max(cfg.MaxSessions, 1)),
	}, nil
}

// Open starts a session in a fresh incognito context whose pages all
// present userAgent. It blocks while MaxSessions sessions are open.
func (s *Scraper) Open(ctx context.Context, userAgent string) (browser.Session, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "no browsing session available", ctx.Err())
	}

	incognito, err := s.browser.Incognito()
	if err != nil {
		<-s.slots
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}

	s.active.Add(1)
	slog.Debug("session opened", "active", s.active.Load())
	return &session{
		owner:     s,
		browser:   incognito,
		userAgent: userAgent,
	}, nil
}

// Stats reports open sessions and the session cap.
func (s *Scraper) Stats() (active, maxSessions int) {
	return int(s.active.Load()), cap(s.slots)
}

// Close kills the browser process. Call it on graceful shutdown to prevent
// zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("close browser", "error", err)
	}
	slog.Info("scraper shutdown complete")
}

func (s *Scraper) release() {
	s.active.Add(-1)
	<-s.slots
}
