package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiError mirrors the judfetch API error detail.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// jobResponse mirrors the judfetch job creation responses.
type jobResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Total  int       `json:"total"`
	Error  *apiError `json:"error"`
}

// searchStatusResponse mirrors GET /api/v1/searches/:id.
type searchStatusResponse struct {
	ID           string `json:"id"`
	Keyword      string `json:"keyword"`
	Status       string `json:"status"`
	TotalPages   int    `json:"total_pages"`
	PagesVisited int    `json:"pages_visited"`
	Total        int    `json:"total"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
	Records      []struct {
		Title        string `json:"title"`
		URL          string `json:"url"`
		CaseNumber   string `json:"case_number"`
		CaseDate     string `json:"case_date"`
		CaseCategory string `json:"case_category"`
	} `json:"records"`
	Error *apiError `json:"error"`
}

// downloadStatusResponse mirrors GET /api/v1/downloads/:id.
type downloadStatusResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Files       []string  `json:"files"`
	Errors      []string  `json:"errors"`
	ArchiveName string    `json:"archive_name"`
	Error       *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("JUDFETCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("JUDFETCH_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "JUDFETCH_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"judfetch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_judgments",
		mcp.WithDescription("Search Taiwan court judgments (Judicial Yuan FJUD) by keyword. Pages through the results and returns each judgment's title, case number, date, category and URL."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Query in the search site's syntax, e.g. '詐欺 & 車禍'"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Result pages to visit (1-25, default: 1)"),
		),
		mcp.WithBoolean("dedup",
			mcp.Description("Drop judgments whose URL already appeared on an earlier page (default: false)"),
		),
	)
	s.AddTool(searchTool, handleSearch(apiURL, apiKey))

	downloadTool := mcp.NewTool("download_judgments",
		mcp.WithDescription("Download the documents of judgments found by search_judgments into a zip archive held by the server. Returns the downloaded file names, per-item errors and the archive path."),
		mcp.WithString("search_id",
			mcp.Required(),
			mcp.Description("ID returned by search_judgments"),
		),
		mcp.WithString("scope",
			mcp.Description("Which judgments to download: 'all' (default), 'page' (one display page) or 'item' (one judgment)"),
			mcp.Enum("all", "page", "item"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based display page for scope 'page' (20 judgments per page)"),
		),
		mcp.WithNumber("index",
			mcp.Description("1-based judgment position for scope 'item'"),
		),
	)
	s.AddTool(downloadTool, handleDownload(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the judfetch API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func createJob(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) (*jobResponse, error) {
	respBody, err := apiPost(ctx, client, apiURL, apiKey, path, payload)
	if err != nil {
		return nil, err
	}
	var job jobResponse
	if err := json.Unmarshal(respBody, &job); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if job.Error != nil {
		return nil, fmt.Errorf("[%s] %s", job.Error.Code, job.Error.Message)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("job creation failed")
	}
	return &job, nil
}

func handleSearch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := request.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}

		payload := map[string]interface{}{"keyword": keyword}
		args := request.GetArguments()
		if maxPages, ok := args["max_pages"]; ok {
			payload["max_pages"] = maxPages
		}
		if dedup, ok := args["dedup"]; ok {
			payload["dedup"] = dedup
		}

		job, err := createJob(ctx, client, apiURL, apiKey, "/api/v1/searches", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search request failed: %v", err)), nil
		}

		endpoint := "/api/v1/searches/" + job.ID + "?page_size=50"
		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, endpoint)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling search failed: %v", err)), nil
		}

		var res searchStatusResponse
		if err := json.Unmarshal(resultBody, &res); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse search status: %v", err)), nil
		}
		if res.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", res.Error.Code, res.Error.Message)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Search %s for %q: %d judgments (%d/%d pages visited)\n\n",
			res.ID, res.Keyword, res.Total, res.PagesVisited, res.TotalPages))
		for i, r := range res.Records {
			sb.WriteString(fmt.Sprintf("%d. %s\n   %s | %s | %s\n   %s\n",
				i+1, r.Title, r.CaseNumber, r.CaseDate, r.CaseCategory, r.URL))
		}
		if res.Total > len(res.Records) {
			sb.WriteString(fmt.Sprintf("\n(showing first %d; download_judgments covers all of them)\n", len(res.Records)))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleDownload(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		searchID, err := request.RequireString("search_id")
		if err != nil {
			return mcp.NewToolResultError("search_id is required"), nil
		}

		payload := map[string]interface{}{}
		if scope := request.GetString("scope", ""); scope != "" {
			payload["scope"] = scope
		}
		args := request.GetArguments()
		if page, ok := args["page"]; ok {
			payload["page"] = page
		}
		if index, ok := args["index"]; ok {
			payload["index"] = index
		}

		job, err := createJob(ctx, client, apiURL, apiKey, "/api/v1/searches/"+searchID+"/downloads", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("download request failed: %v", err)), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/downloads/"+job.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling download failed: %v", err)), nil
		}

		var res downloadStatusResponse
		if err := json.Unmarshal(resultBody, &res); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse download status: %v", err)), nil
		}
		if res.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", res.Error.Code, res.Error.Message)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Download %s: %s (%d/%d documents)\n", res.ID, res.Status, len(res.Files), res.Total))
		if res.ArchiveName != "" {
			sb.WriteString(fmt.Sprintf("Archive: %s/api/v1/downloads/%s/archive (%s)\n", apiURL, res.ID, res.ArchiveName))
		}
		for _, f := range res.Files {
			sb.WriteString("  + " + f + "\n")
		}
		for _, e := range res.Errors {
			sb.WriteString("  ! " + e + "\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
