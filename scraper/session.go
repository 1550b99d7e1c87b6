package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/judfetch/browser"
	"github.com/ysmood/gson"
)

const acceptLanguage = "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7"

// session is one incognito browser context.
type session struct {
	owner     *Scraper
	browser   *rod.Browser
	userAgent string
	once      sync.Once
}

func (s *session) UserAgent() string { return s.userAgent }

// NewPage opens a tab with stealth, the session's user agent, the viewport
// and resource blocking installed before any navigation.
func (s *session) NewPage(ctx context.Context) (browser.Page, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.userAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		slog.Warn("user agent override failed", "error", err)
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": acceptLanguage}),
	}).Call(p); err != nil {
		slog.Warn("extra headers failed", "error", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.owner.cfg.ViewportWidth,
		Height:            s.owner.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("viewport override failed", "error", err)
	}

	return &page{
		frame:  frame{p: p},
		router: setupHijack(p, s.owner.cfg.BlockedResourceTypes),
	}, nil
}

// Close disposes the incognito context and every page in it.
func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		err = s.browser.Close()
		s.owner.release()
		slog.Debug("session closed", "active", s.owner.active.Load())
	})
	return err
}

// frame is a rendering surface: a tab or an embedded frame's document.
type frame struct {
	p *rod.Page
}

func (f *frame) URL(ctx context.Context) (string, error) {
	res, err := f.p.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (f *frame) HTML(ctx context.Context) (string, error) {
	return f.p.Context(ctx).HTML()
}

func (f *frame) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := f.p.Context(ctx).Has(selector)
	return has, err
}

func (f *frame) Click(ctx context.Context, selector string) error {
	el, err := f.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (f *frame) element(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := f.p.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%s: %w", selector, browser.ErrNoElement)
	}
	return el, nil
}

// page is a top-level tab.
type page struct {
	frame
	router *rod.HijackRouter
}

func (p *page) Navigate(ctx context.Context, url string) error {
	cp := p.p.Context(ctx)
	if err := cp.Navigate(url); err != nil {
		return err
	}
	if err := cp.WaitLoad(); err != nil {
		return err
	}
	if err := cp.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "url", url, "error", err)
	}
	return nil
}

func (p *page) Fill(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		slog.Debug("select input text", "selector", selector, "error", err)
	}
	return el.Input(text)
}

func (p *page) FrameByName(ctx context.Context, name string) (browser.Surface, error) {
	sel := fmt.Sprintf(`iframe[name=%q], iframe[id=%q]`, name, name)
	has, el, err := p.p.Context(ctx).Has(sel)
	if err != nil || !has {
		return nil, err
	}
	fp, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("enter frame %s: %w", name, err)
	}
	return &frame{p: fp}, nil
}

func (p *page) Frames(ctx context.Context) ([]browser.Surface, error) {
	els, err := p.p.Context(ctx).Elements("iframe")
	if err != nil {
		return nil, err
	}
	out := make([]browser.Surface, 0, len(els))
	for _, el := range els {
		fp, err := el.Frame()
		if err != nil {
			slog.Debug("skip unreachable frame", "error", err)
			continue
		}
		out = append(out, &frame{p: fp})
	}
	return out, nil
}

// Close stops request interception and closes the tab.
func (p *page) Close() error {
	if p.router != nil {
		if err := p.router.Stop(); err != nil {
			slog.Debug("stop hijack router", "error", err)
		}
	}
	return p.p.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
