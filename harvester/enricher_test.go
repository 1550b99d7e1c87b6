package harvester

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/judfetch/browser/browsertest"
	"github.com/use-agent/judfetch/cache"
	"github.com/use-agent/judfetch/models"
	"github.com/use-agent/judfetch/poll"
)

const detailPage = `<html><body><div id="jud">
<div class="row"><div class="col-th">裁判字號：</div><div class="col-td">臺灣臺北地方法院 112 年度訴字第 1 號刑事判決</div></div>
<div class="row"><div class="col-th">裁判日期：</div><div class="col-td">民國 112 年 05 月 04 日</div></div>
<div class="row"><div class="col-th">裁判案由：</div><div class="col-td">詐欺</div></div>
</div><a id="hlExportPDF" href="/EXPORTFILE/reformat.aspx?id=A1">PDF</a></body></html>`

func newTestEnricher(c *cache.Cache) *Enricher {
	return &Enricher{
		Base:     resultBase,
		Timeout:  30 * time.Second,
		Interval: time.Second,
		Clock:    poll.NewFakeClock(),
		Cache:    c,
	}
}

func TestEnrich(t *testing.T) {
	ok := resultBase + "data.aspx?id=ok"
	partial := resultBase + "data.aspx?id=partial"
	rootless := resultBase + "data.aspx?id=rootless"
	broken := resultBase + "data.aspx?id=broken"

	site := browsertest.NewSite().
		Serve(ok, browsertest.NewDoc(ok, detailPage)).
		Serve(partial, browsertest.NewDoc(partial, `<div id="jud"><div class="row">裁判案由：<div class="col-td">竊盜</div></div></div>`)).
		Serve(rootless, browsertest.NewDoc(rootless, `<html><body>系統忙碌中</body></html>`)).
		FailNavigation(broken, context.DeadlineExceeded)

	tests := []struct {
		name string
		url  string
		want models.Enrichment
	}{
		{"all fields", "data.aspx?id=ok", models.Enrichment{
			CaseNumber:   "臺灣臺北地方法院 112 年度訴字第 1 號刑事判決",
			CaseDate:     "民國 112 年 05 月 04 日",
			CaseCategory: "詐欺",
		}},
		{"missing rows", partial, models.Enrichment{
			CaseNumber:   models.NotFound,
			CaseDate:     models.NotFound,
			CaseCategory: "竊盜",
		}},
		{"no root container", rootless, models.FailedEnrichment()},
		{"navigation timeout", broken, models.FailedEnrichment()},
	}

	sess, _ := site.Open(context.Background(), "ua")
	defer sess.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestEnricher(nil).Enrich(context.Background(), sess, tt.url)
			if got != tt.want {
				t.Errorf("Enrich() = %+v, want %+v", got, tt.want)
			}
		})
	}

	_, _, opened, closed := site.Stats()
	if opened != len(tests) || closed != opened {
		t.Errorf("pages opened %d closed %d, want every page released", opened, closed)
	}
}

func TestEnrich_Cache(t *testing.T) {
	url := resultBase + "data.aspx?id=ok"
	site := browsertest.NewSite().Serve(url, browsertest.NewDoc(url, detailPage))
	sess, _ := site.Open(context.Background(), "ua")
	defer sess.Close()

	c := cache.New(10, time.Hour)
	defer c.Close()
	e := newTestEnricher(c)

	first := e.Enrich(context.Background(), sess, url)
	second := e.Enrich(context.Background(), sess, url)
	if first != second || first.CaseCategory != "詐欺" {
		t.Errorf("first %+v second %+v", first, second)
	}
	if _, _, opened, _ := site.Stats(); opened != 1 {
		t.Errorf("opened %d pages, want the second read served from cache", opened)
	}
}

func TestEnrichAll(t *testing.T) {
	url := resultBase + "data.aspx?id=ok"
	site := browsertest.NewSite().
		Serve(url, browsertest.NewDoc(url, detailPage)).
		FailNavigation(resultBase+"data.aspx?id=gone", errors.New("net::ERR_ABORTED"))
	sess, _ := site.Open(context.Background(), "ua")
	defer sess.Close()

	records := []models.ResultRecord{
		models.NewResultRecord("ok", url),
		models.NewResultRecord("gone", resultBase+"data.aspx?id=gone"),
	}
	var log progressLog
	newTestEnricher(nil).EnrichAll(context.Background(), sess, records, log.report)

	if records[0].CaseCategory != "詐欺" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].CaseNumber != models.Failed || records[1].CaseDate != models.Failed {
		t.Errorf("records[1] = %+v, want failed sentinels", records[1])
	}
	if len(log.fractions) != 2 || log.fractions[1] != 1 {
		t.Errorf("progress = %v", log.fractions)
	}
}
