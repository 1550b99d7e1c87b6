// Package browsertest provides an in-memory browser whose documents are
// canned HTML, for testing code written against package browser.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/extract"
)

// Doc is a fake document. Its HTML can be swapped by click handlers to
// simulate in-place navigation.
type Doc struct {
	mu      sync.Mutex
	url     string
	html    string
	name    string
	clicks  map[string]int
	onClick map[string]func(d *Doc) error
	htmlErr error
}

// NewDoc returns a document at url holding html.
func NewDoc(url, html string) *Doc {
	return &Doc{
		url:     url,
		html:    html,
		clicks:  make(map[string]int),
		onClick: make(map[string]func(d *Doc) error),
	}
}

// Named sets the frame name used by FrameByName.
func (d *Doc) Named(name string) *Doc {
	d.name = name
	return d
}

// OnClick registers fn to run when selector is clicked.
func (d *Doc) OnClick(selector string, fn func(d *Doc) error) *Doc {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick[selector] = fn
	return d
}

// SetHTML replaces the document content.
func (d *Doc) SetHTML(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.html = html
}

// SetURL replaces the document location.
func (d *Doc) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// FailHTML makes every HTML call return err until cleared with nil.
func (d *Doc) FailHTML(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.htmlErr = err
}

// Clicks reports how often selector was clicked.
func (d *Doc) Clicks(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks[selector]
}

func (d *Doc) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Doc) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.htmlErr != nil {
		return "", d.htmlErr
	}
	return d.html, nil
}

func (d *Doc) Has(ctx context.Context, selector string) (bool, error) {
	html, err := d.HTML(ctx)
	if err != nil {
		return false, err
	}
	return extract.Has(html, selector)
}

func (d *Doc) Click(ctx context.Context, selector string) error {
	ok, err := d.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("click %s: %w", selector, browser.ErrNoElement)
	}

	d.mu.Lock()
	d.clicks[selector]++
	fn := d.onClick[selector]
	d.mu.Unlock()

	if fn != nil {
		return fn(d)
	}
	return nil
}

// Site maps URLs to the top-level document served on navigation, with the
// frames attached to each.
type Site struct {
	mu     sync.Mutex
	pages  map[string]*Doc
	frames map[string][]*Doc
	navErr map[string]error

	sessionsOpened int
	sessionsClosed int
	pagesOpened    int
	pagesClosed    int
}

// NewSite returns an empty site.
func NewSite() *Site {
	return &Site{
		pages:  make(map[string]*Doc),
		frames: make(map[string][]*Doc),
		navErr: make(map[string]error),
	}
}

// Serve registers doc at url with the given child frames.
func (s *Site) Serve(url string, doc *Doc, frames ...*Doc) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = doc
	s.frames[url] = frames
	return s
}

// FailNavigation makes navigating to url return err.
func (s *Site) FailNavigation(url string, err error) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navErr[url] = err
	return s
}

// Open implements browser.Opener.
func (s *Site) Open(_ context.Context, userAgent string) (browser.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionsOpened++
	return &session{site: s, userAgent: userAgent}, nil
}

// Stats reports sessions opened/closed and pages opened/closed.
func (s *Site) Stats() (sessionsOpened, sessionsClosed, pagesOpened, pagesClosed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionsOpened, s.sessionsClosed, s.pagesOpened, s.pagesClosed
}

type session struct {
	site      *Site
	userAgent string
}

func (s *session) NewPage(context.Context) (browser.Page, error) {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	s.site.pagesOpened++
	return &Page{site: s.site, Doc: NewDoc("about:blank", "<html></html>")}, nil
}

func (s *session) UserAgent() string { return s.userAgent }

func (s *session) Close() error {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	s.site.sessionsClosed++
	return nil
}

// Page is a fake top-level tab.
type Page struct {
	*Doc
	site   *Site
	frames []*Doc
}

// NewPage returns a standalone page showing doc with frames, for tests that
// do not need a Site.
func NewPage(doc *Doc, frames ...*Doc) *Page {
	return &Page{Doc: doc, site: NewSite(), frames: frames}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.site.navErr[url]; err != nil {
		return err
	}
	doc, ok := p.site.pages[url]
	if !ok {
		return fmt.Errorf("navigate %s: 404", url)
	}
	p.Doc = doc
	p.frames = p.site.frames[url]
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, _ string) error {
	ok, err := p.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("fill %s: %w", selector, browser.ErrNoElement)
	}
	return nil
}

func (p *Page) FrameByName(_ context.Context, name string) (browser.Surface, error) {
	for _, f := range p.frames {
		if f.name == name {
			return f, nil
		}
	}
	return nil, nil
}

func (p *Page) Frames(context.Context) ([]browser.Surface, error) {
	out := make([]browser.Surface, len(p.frames))
	for i, f := range p.frames {
		out[i] = f
	}
	return out, nil
}

func (p *Page) Close() error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.pagesClosed++
	return nil
}

// ResultPage renders a result list with the given titles. Each title links
// to data.aspx?id=<title>. When next is set a next-page control is added.
func ResultPage(titles []string, next bool) string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for i, t := range titles {
		fmt.Fprintf(&b, `<tr><td><a id="hlTitle_%d" href="data.aspx?id=%s">%s</a></td></tr>`, i, t, t)
	}
	b.WriteString("</table>")
	if next {
		b.WriteString(`<a id="hlNext" href="#">next</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// Titles returns n titles named prefix-1..prefix-n.
func Titles(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return out
}
