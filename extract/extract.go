// Package extract reads the judgment search service's markup. Every function
// works on an HTML snapshot so the same code serves live pages and tests.
package extract

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/judfetch/models"
	"golang.org/x/net/html"
)

// CSS selectors of the search form, result list and detail page.
const (
	SelKeyword     = "#txtKW"
	SelSubmit      = "#btnSimpleQry"
	SelTitle       = "a[id*='hlTitle']"
	SelNext        = "a#hlNext"
	SelPager       = "#divPager"
	SelPageOption  = "#ddlPage option"
	SelDetailRoot  = "#jud"
	SelDetailRow   = "#jud .row"
	SelDetailValue = ".col-td"
	SelArtifact    = "#hlExportPDF"
)

// Labels of the detail rows read by DetailFields.
const (
	LabelCaseNumber   = "裁判字號"
	LabelCaseDate     = "裁判日期"
	LabelCaseCategory = "裁判案由"
)

// ErrNoDetailRoot is returned when a detail page lacks its root container.
var ErrNoDetailRoot = errors.New("detail root container not found")

var (
	titleMatcher    = cascadia.MustCompile(SelTitle)
	nextMatcher     = cascadia.MustCompile(SelNext)
	pagerMatcher    = cascadia.MustCompile(SelPager)
	optionMatcher   = cascadia.MustCompile(SelPageOption)
	rootMatcher     = cascadia.MustCompile(SelDetailRoot)
	rowMatcher      = cascadia.MustCompile(SelDetailRow)
	valueMatcher    = cascadia.MustCompile(SelDetailValue)
	artifactMatcher = cascadia.MustCompile(SelArtifact)

	totalPagesPattern = regexp.MustCompile(`共\s*(\d+)\s*頁`)
	slashPagesPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)\s*頁`)
	ofPagesPattern    = regexp.MustCompile(`(?i)\bpage\s+\d+\s+of\s+(\d+)`)
)

// TitleLink is one result title anchor.
type TitleLink struct {
	Text string
	Href string
}

func parse(rawHTML string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Titles returns the result title anchors in document order.
func Titles(rawHTML string) ([]TitleLink, error) {
	doc, err := parse(rawHTML)
	if err != nil {
		return nil, err
	}
	var links []TitleLink
	doc.FindMatcher(titleMatcher).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, TitleLink{
			Text: cleanText(s.Text()),
			Href: strings.TrimSpace(href),
		})
	})
	return links, nil
}

// Snapshot returns the ordered title texts of a result page. It is the
// fingerprint used to tell one page from the next.
func Snapshot(rawHTML string) []string {
	links, err := Titles(rawHTML)
	if err != nil {
		return nil
	}
	texts := make([]string, len(links))
	for i, l := range links {
		texts[i] = l.Text
	}
	return texts
}

// SameSnapshot reports whether two snapshots hold the same texts in the
// same order.
func SameSnapshot(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasNext reports whether the result page offers a next-page control.
func HasNext(rawHTML string) bool {
	doc, err := parse(rawHTML)
	if err != nil {
		return false
	}
	return doc.FindMatcher(nextMatcher).Length() > 0
}

// EstimateTotalPages guesses the number of result pages.
//
// Without a next-page control the result fits on one page. Otherwise the
// pager text ("共 N 頁", "N / M 頁", "Page N of M") wins, then the number of
// options in the page selector, and finally 2, since a next control implies
// at least one more page. A document that cannot be read yields 1.
func EstimateTotalPages(rawHTML string) int {
	doc, err := parse(rawHTML)
	if err != nil {
		return 1
	}
	if doc.FindMatcher(nextMatcher).Length() == 0 {
		return 1
	}
	if n := parsePager(doc.FindMatcher(pagerMatcher).Text()); n > 0 {
		return n
	}
	if n := doc.FindMatcher(optionMatcher).Length(); n > 0 {
		return n
	}
	return 2
}

func parsePager(text string) int {
	for _, re := range []*regexp.Regexp{totalPagesPattern, slashPagesPattern, ofPagesPattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[len(m)-1])
		if err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// DetailFields scans the labeled rows of a detail page. Each absent row
// yields models.NotFound. A page without the root container returns
// ErrNoDetailRoot together with models.FailedEnrichment.
func DetailFields(rawHTML string) (models.Enrichment, error) {
	doc, err := parse(rawHTML)
	if err != nil {
		return models.FailedEnrichment(), err
	}
	if doc.FindMatcher(rootMatcher).Length() == 0 {
		return models.FailedEnrichment(), ErrNoDetailRoot
	}

	e := models.Enrichment{
		CaseNumber:   models.NotFound,
		CaseDate:     models.NotFound,
		CaseCategory: models.NotFound,
	}
	found := map[string]*string{
		LabelCaseNumber:   &e.CaseNumber,
		LabelCaseDate:     &e.CaseDate,
		LabelCaseCategory: &e.CaseCategory,
	}

	doc.FindMatcher(rowMatcher).Each(func(_ int, row *goquery.Selection) {
		text := row.Text()
		for label, dst := range found {
			if *dst != models.NotFound || !strings.Contains(text, label) {
				continue
			}
			if v := cleanText(row.FindMatcher(valueMatcher).First().Text()); v != "" {
				*dst = v
			}
		}
	})
	return e, nil
}

// ArtifactHref returns the raw href of the export link, if present.
func ArtifactHref(rawHTML string) (string, bool) {
	doc, err := parse(rawHTML)
	if err != nil {
		return "", false
	}
	href, ok := doc.FindMatcher(artifactMatcher).First().Attr("href")
	href = strings.TrimSpace(href)
	return href, ok && href != ""
}

// Has reports whether selector matches any element of rawHTML.
func Has(rawHTML, selector string) (bool, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return false, err
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return false, err
	}
	return cascadia.Query(doc, sel) != nil, nil
}

// ResolveURL makes ref absolute against base. Refs that are already
// absolute are returned unchanged; unparseable refs are appended to base.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(ref, "/")
	}
	return b.ResolveReference(r).String()
}
