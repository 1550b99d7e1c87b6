// Package commands implements the CLI commands for judfetch.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/judfetch/cache"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/scraper"
	"github.com/use-agent/judfetch/service"
)

var rootCmd = &cobra.Command{
	Use:   "judfetch",
	Short: "Search Taiwan court judgments and download their documents",
	Long: `Judfetch queries the Judicial Yuan judgment search (FJUD), pages through
the results, reads each judgment's case number, date and category, and
downloads the judgment documents.

Examples:
  # Collect three result pages into a spreadsheet
  judfetch search --keyword "詐欺" --max-pages 3 --out ./results

  # Also download every judgment document into a zip archive
  judfetch search --keyword "詐欺 & 車禍" --download --workers 2

  # Run the HTTP API
  judfetch serve`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg := config.Load()
		logCfg := cfg.Log
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			logCfg.Level = v
		}
		if v, _ := cmd.Flags().GetString("log-format"); v != "" {
			logCfg.Format = v
		}
		initLogger(logCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default $JUDFETCH_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json, text (default $JUDFETCH_LOG_FORMAT)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// stack is everything a command needs to run searches.
type stack struct {
	scraper *scraper.Scraper
	cache   *cache.Cache
	service *service.Service
}

func (s *stack) Close() {
	s.cache.Close()
	s.scraper.Close()
}

// newStack launches the browser and wires the search service.
func newStack(cfg *config.Config) (*stack, error) {
	pool, err := config.LoadUserAgents(cfg.UserAgents)
	if err != nil {
		return nil, err
	}
	sc, err := scraper.NewScraper(cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("initialise scraper: %w", err)
	}
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	return &stack{
		scraper: sc,
		cache:   cc,
		service: service.New(sc, cfg, pool, cc),
	}, nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
