package harvester

import (
	"time"

	"github.com/use-agent/judfetch/browser/browsertest"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/poll"
)

const (
	entryURL   = "https://fjud.test/FJUD/default.aspx"
	resultBase = "https://fjud.test/FJUD/"
	frameURL   = "https://fjud.test/FJUD/data.aspx?ty=JUDBOOK&q=abc"
	searchForm = `<html><body><input id="txtKW"><input id="btnSimpleQry" type="submit"></body></html>`
)

func testSite() config.SiteConfig {
	return config.SiteConfig{
		EntryURL:        entryURL,
		ResultBase:      resultBase,
		Host:            "https://fjud.test",
		FrameName:       "iframe-data",
		ResultsEndpoint: "FJUD/data.aspx",
	}
}

func testTiming() config.TimingConfig {
	return config.TimingConfig{
		NavigationTimeout:  time.Minute,
		DetailTimeout:      30 * time.Second,
		FrameTimeout:       20 * time.Second,
		TitleTimeout:       20 * time.Second,
		SearchSettle:       5 * time.Second,
		NextSettle:         3 * time.Second,
		RetrySettle:        2 * time.Second,
		TransitionAttempts: 3,
		NearDuplicateBits:  3,
		PollInterval:       time.Second,
	}
}

// pagedFrame serves pages[0] and moves to the next entry of pages on every
// click of the next control. The last page has no next control.
func pagedFrame(pages ...[]string) *browsertest.Doc {
	idx := 0
	render := func() string {
		return browsertest.ResultPage(pages[idx], idx < len(pages)-1)
	}
	doc := browsertest.NewDoc(frameURL, render()).Named("iframe-data")
	doc.OnClick("a#hlNext", func(d *browsertest.Doc) error {
		if idx < len(pages)-1 {
			idx++
		}
		d.SetHTML(render())
		return nil
	})
	return doc
}

func newTestCollector(clock poll.Clock) *Collector {
	return NewCollector(testSite(), testTiming(), clock)
}
