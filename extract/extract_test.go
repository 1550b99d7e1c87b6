package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/use-agent/judfetch/models"
)

const resultPage = `<html><body>
<table>
  <tr><td><a id="hlTitle_0" href="data.aspx?ty=JD&amp;id=A1">臺灣臺北地方法院 112 年度訴字第 1 號刑事判決</a></td></tr>
  <tr><td><a id="hlTitle_1" href="data.aspx?ty=JD&amp;id=A2">  臺灣高等法院
      113 年度上字第 2 號民事判決 </a></td></tr>
  <tr><td><a id="hlOther" href="other.aspx">not a title</a></td></tr>
</table>
<div id="divPager">第 1 / 7 頁，共 7 頁</div>
<select id="ddlPage"><option>1</option><option>2</option><option>3</option></select>
<a id="hlNext" href="#">下一頁</a>
</body></html>`

func TestTitles(t *testing.T) {
	links, err := Titles(resultPage)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d titles, want 2", len(links))
	}
	if links[0].Href != "data.aspx?ty=JD&id=A1" {
		t.Errorf("href = %q", links[0].Href)
	}
	if links[1].Text != "臺灣高等法院 113 年度上字第 2 號民事判決" {
		t.Errorf("text = %q, want whitespace collapsed", links[1].Text)
	}
}

func TestSnapshot(t *testing.T) {
	snap := Snapshot(resultPage)
	if len(snap) != 2 {
		t.Fatalf("snapshot = %v", snap)
	}
	if !SameSnapshot(snap, Snapshot(resultPage)) {
		t.Error("identical pages should produce the same snapshot")
	}
	reordered := []string{snap[1], snap[0]}
	if SameSnapshot(snap, reordered) {
		t.Error("order must matter")
	}
	if SameSnapshot(snap, snap[:1]) {
		t.Error("length must matter")
	}
	if len(Snapshot("<html></html>")) != 0 {
		t.Error("page without titles should have an empty snapshot")
	}
}

func TestEstimateTotalPages(t *testing.T) {
	next := `<a id="hlNext">next</a>`
	tests := []struct {
		name string
		html string
		want int
	}{
		{"no next control", `<a id="hlTitle_0">x</a><div id="divPager">共 9 頁</div>`, 1},
		{"pager total", next + `<div id="divPager">共 12 頁</div>`, 12},
		{"pager slash", next + `<div id="divPager">第 2 / 5 頁</div>`, 5},
		{"pager english", next + `<div id="divPager">Page 1 of 4</div>`, 4},
		{"page selector", next + `<div id="divPager">n/a</div><select id="ddlPage"><option>1</option><option>2</option><option>3</option></select>`, 3},
		{"next only", next, 2},
		{"full page", resultPage, 7},
		{"empty", ``, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTotalPages(tt.html); got != tt.want {
				t.Errorf("EstimateTotalPages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHasNext(t *testing.T) {
	if !HasNext(resultPage) {
		t.Error("expected next control")
	}
	if HasNext(`<a id="hlNextPage">x</a>`) {
		t.Error("id must match exactly")
	}
}

func TestDetailFields(t *testing.T) {
	full := `<div id="jud">
  <div class="row"><div class="col-th">裁判字號：</div><div class="col-td">臺灣臺北地方法院 112 年度訴字第 1 號刑事判決</div></div>
  <div class="row"><div class="col-th">裁判日期：</div><div class="col-td">民國 112 年 05 月 04 日</div></div>
  <div class="row"><div class="col-th">裁判案由：</div><div class="col-td"> 詐欺 </div></div>
</div>`
	partial := `<div id="jud">
  <div class="row"><div class="col-th">裁判字號：</div><div class="col-td">最高法院 110 年度台上字第 3 號</div></div>
  <div class="row"><div class="col-th">裁判日期：</div></div>
</div>`

	tests := []struct {
		name    string
		html    string
		want    models.Enrichment
		wantErr error
	}{
		{
			name: "all rows",
			html: full,
			want: models.Enrichment{
				CaseNumber:   "臺灣臺北地方法院 112 年度訴字第 1 號刑事判決",
				CaseDate:     "民國 112 年 05 月 04 日",
				CaseCategory: "詐欺",
			},
		},
		{
			name: "missing rows fall back per field",
			html: partial,
			want: models.Enrichment{
				CaseNumber:   "最高法院 110 年度台上字第 3 號",
				CaseDate:     models.NotFound,
				CaseCategory: models.NotFound,
			},
		},
		{
			name:    "no root",
			html:    `<div class="row">裁判字號 <div class="col-td">x</div></div>`,
			want:    models.FailedEnrichment(),
			wantErr: ErrNoDetailRoot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetailFields(tt.html)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetailFields() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestArtifactHref(t *testing.T) {
	href, ok := ArtifactHref(`<div id="jud"></div><a id="hlExportPDF" href=" /EXPORTFILE/reformat.aspx?type=JD&amp;id=A1 ">PDF</a>`)
	if !ok || href != "/EXPORTFILE/reformat.aspx?type=JD&id=A1" {
		t.Errorf("ArtifactHref() = %q, %v", href, ok)
	}
	if _, ok := ArtifactHref(`<div id="jud"></div>`); ok {
		t.Error("expected no artifact link")
	}
	if _, ok := ArtifactHref(`<a id="hlExportPDF">PDF</a>`); ok {
		t.Error("link without href should not count")
	}
}

func TestHas(t *testing.T) {
	ok, err := Has(resultPage, SelTitle)
	if err != nil || !ok {
		t.Errorf("Has(title) = %v, %v", ok, err)
	}
	ok, err = Has(resultPage, SelDetailRoot)
	if err != nil || ok {
		t.Errorf("Has(detail root) = %v, %v", ok, err)
	}
	if _, err := Has(resultPage, "a[[["); err == nil {
		t.Error("expected a selector parse error")
	}
}

func TestResolveURL(t *testing.T) {
	base := "https://judgment.judicial.gov.tw/FJUD/"
	tests := []struct {
		ref  string
		want string
	}{
		{"data.aspx?ty=JD&id=A1", base + "data.aspx?ty=JD&id=A1"},
		{"/EXPORTFILE/reformat.aspx?id=A1", "https://judgment.judicial.gov.tw/EXPORTFILE/reformat.aspx?id=A1"},
		{"https://example.com/x.pdf", "https://example.com/x.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := ResolveURL(base, tt.ref); got != tt.want {
				t.Errorf("ResolveURL(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
	if got := ResolveURL(base, " data.aspx "); !strings.HasSuffix(got, "/FJUD/data.aspx") {
		t.Errorf("refs should be trimmed, got %q", got)
	}
}
