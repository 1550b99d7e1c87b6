package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/export"
	"github.com/use-agent/judfetch/models"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search judgments and export the results",
	Long: `Search runs one query, pages through up to --max-pages result pages and
writes the records to 裁判書查詢結果.xlsx in --out. With --download every
judgment document is fetched and packed into a zip archive next to it.`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()
	flags.StringP("keyword", "k", "", "query in the search site's syntax (required)")
	flags.IntP("max-pages", "n", 1, "result pages to visit (1-25)")
	flags.StringP("out", "o", ".", "output directory")
	flags.Bool("download", false, "download every judgment document into a zip archive")
	flags.IntP("workers", "w", 0, "browser sessions fetching documents (default $JUDFETCH_WORKERS)")
	flags.Bool("dedup", false, "drop records whose URL appeared on an earlier page")
	flags.Bool("no-enrich", false, "skip reading case fields from detail pages")
	flags.Bool("headful", false, "show the browser window")
	_ = searchCmd.MarkFlagRequired("keyword")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	keyword, _ := flags.GetString("keyword")
	maxPages, _ := flags.GetInt("max-pages")
	outDir, _ := flags.GetString("out")
	download, _ := flags.GetBool("download")
	workers, _ := flags.GetInt("workers")
	dedup, _ := flags.GetBool("dedup")
	noEnrich, _ := flags.GetBool("no-enrich")
	headful, _ := flags.GetBool("headful")

	cfg := config.Load()
	if workers > 0 {
		cfg.Retrieval.Workers = workers
	}
	if headful {
		cfg.Browser.Headless = false
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logError("create output directory: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStack(cfg)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.Close()

	res, err := st.service.Search(ctx, models.SessionConfig{
		Keyword:  keyword,
		MaxPages: maxPages,
		Dedup:    dedup,
		Enrich:   !noEnrich,
	}, printProgress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		logError("search failed: %v", err)
		return err
	}
	fmt.Fprintf(os.Stderr, "found %d judgments (%d/%d pages)\n", len(res.Records), res.PagesVisited, res.TotalPages)

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, res.Records); err != nil {
		logError("export failed: %v", err)
		return err
	}
	xlsxPath := filepath.Join(outDir, export.XLSXName)
	if err := os.WriteFile(xlsxPath, buf.Bytes(), 0o644); err != nil {
		logError("write %s: %v", xlsxPath, err)
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", xlsxPath)

	if !download || len(res.Records) == 0 {
		return nil
	}

	dl, err := st.service.Download(ctx, res.Records, models.ScopeAll, printProgress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		logError("download failed: %v", err)
		return err
	}
	for _, e := range dl.Errors {
		fmt.Fprintf(os.Stderr, "  failed: %s\n", e)
	}
	fmt.Fprintf(os.Stderr, "downloaded %d/%d judgments\n", len(dl.Files), len(res.Records))
	if dl.Archive == nil {
		return fmt.Errorf("no judgment documents were downloaded")
	}

	zipPath := filepath.Join(outDir, dl.ArchiveName)
	if err := os.WriteFile(zipPath, dl.Archive, 0o644); err != nil {
		logError("write %s: %v", zipPath, err)
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", zipPath)
	return nil
}

func printProgress(fraction float64, message string) {
	fmt.Fprintf(os.Stderr, "\r\033[K[%3.0f%%] %s", fraction*100, message)
}
