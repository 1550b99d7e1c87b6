package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "judfetch API base URL")
	apiKey   = flag.String("api-key", "", "API key for authenticated requests")
	runs     = flag.Int("runs", 3, "Number of runs per keyword for averaging")
	maxPages = flag.Int("max-pages", 2, "Result pages per search")
	enrich   = flag.Bool("enrich", true, "Read detail fields of every judgment")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Keywords covering small, large and compound result sets.
var testKeywords = []struct {
	Label   string
	Keyword string
}{
	{"Fraud", "詐欺"},
	{"Theft", "竊盜"},
	{"Compound", "車禍 & 過失傷害"},
	{"Drugs", "毒品"},
	{"Rare", "光電板 & 漁電共生"},
}

// --- Request / Response types (mirrors models package) ---

type searchRequest struct {
	Keyword  string `json:"keyword"`
	MaxPages int    `json:"max_pages"`
	Enrich   *bool  `json:"enrich"`
}

type searchStatus struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	TotalPages   int          `json:"total_pages"`
	PagesVisited int          `json:"pages_visited"`
	Total        int          `json:"total"`
	Records      []record     `json:"records"`
	Error        *errorDetail `json:"error,omitempty"`
}

type record struct {
	CaseNumber string `json:"case_number"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run          int     `json:"run"`
	TotalMs      int64   `json:"total_ms"`
	Records      int     `json:"records"`
	PagesVisited int     `json:"pages_visited"`
	TotalPages   int     `json:"total_pages"`
	EnrichedPct  float64 `json:"enriched_percent"`
	Success      bool    `json:"success"`
	Error        string  `json:"error,omitempty"`
}

type keywordAverages struct {
	TotalMs     float64 `json:"total_ms"`
	Records     float64 `json:"records"`
	MsPerRecord float64 `json:"ms_per_record"`
	EnrichedPct float64 `json:"enriched_percent"`
}

type keywordResult struct {
	Keyword  string           `json:"keyword"`
	Label    string           `json:"label"`
	Runs     []runResult      `json:"runs"`
	Averages *keywordAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp      string          `json:"timestamp"`
	APIURL         string          `json:"api_url"`
	RunsPerKeyword int             `json:"runs_per_keyword"`
	MaxPages       int             `json:"max_pages"`
	Results        []keywordResult `json:"results"`
}

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	flag.Parse()

	fmt.Println("=== judfetch Benchmark Suite ===")
	fmt.Printf("API URL:       %s\n", *apiURL)
	fmt.Printf("Runs/keyword:  %d\n", *runs)
	fmt.Printf("Max pages:     %d\n", *maxPages)
	fmt.Printf("Output:        %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure judfetch is running (judfetch serve)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		APIURL:         *apiURL,
		RunsPerKeyword: *runs,
		MaxPages:       *maxPages,
	}

	for _, t := range testKeywords {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.Keyword)
		kr := keywordResult{Keyword: t.Keyword, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkSearch(t.Keyword, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d records  %d/%d pages\n", rr.TotalMs, rr.Records, rr.PagesVisited, rr.TotalPages)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			kr.Runs = append(kr.Runs, rr)
		}

		kr.Averages = computeAverages(kr.Runs)
		report.Results = append(report.Results, kr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func newRequest(method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest(method, *apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}
	return req, nil
}

// benchmarkSearch submits one search and polls until it finishes. The
// measured time covers submission to completion.
func benchmarkSearch(keyword string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(searchRequest{Keyword: keyword, MaxPages: *maxPages, Enrich: enrich})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	start := time.Now()
	req, err := newRequest(http.MethodPost, "/api/v1/searches", bodyBytes)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	var created searchStatus
	err = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if err != nil || created.ID == "" {
		rr.Error = fmt.Sprintf("search not created (status %d)", resp.StatusCode)
		return rr
	}

	var st searchStatus
	for {
		time.Sleep(time.Second)
		req, _ := newRequest(http.MethodGet, "/api/v1/searches/"+created.ID+"?page_size=50", nil)
		resp, err := client.Do(req)
		if err != nil {
			rr.Error = fmt.Sprintf("poll failed: %v", err)
			return rr
		}
		st = searchStatus{}
		err = json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()
		if err != nil {
			rr.Error = fmt.Sprintf("decode error: %v", err)
			return rr
		}
		if st.Status != "processing" {
			break
		}
	}

	rr.TotalMs = time.Since(start).Milliseconds()
	rr.Success = st.Status == "completed"
	rr.Records = st.Total
	rr.PagesVisited = st.PagesVisited
	rr.TotalPages = st.TotalPages
	rr.EnrichedPct = enrichedPercent(st.Records)
	if st.Error != nil {
		rr.Error = st.Error.Message
	}
	return rr
}

// enrichedPercent is the share of sampled records whose case number was read.
func enrichedPercent(records []record) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		switch r.CaseNumber {
		case "", "unknown", "not found", "failed":
		default:
			n++
		}
	}
	return 100 * float64(n) / float64(len(records))
}

func computeAverages(runs []runResult) *keywordAverages {
	var successCount int
	var avg keywordAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.Records += float64(r.Records)
		avg.EnrichedPct += r.EnrichedPct
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.Records /= n
	avg.EnrichedPct /= n
	if avg.Records > 0 {
		avg.MsPerRecord = avg.TotalMs / avg.Records
	}
	return &avg
}

func printTable(results []keywordResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Keyword\tAvg Latency\tRecords\tms/Record\tEnriched\n")
	fmt.Fprintf(w, "───────\t───────────\t───────\t─────────\t────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", r.Label)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.0f\t%.0f\t%.1f%%\n",
			r.Label,
			int64(r.Averages.TotalMs),
			r.Averages.Records,
			r.Averages.MsPerRecord,
			r.Averages.EnrichedPct,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
