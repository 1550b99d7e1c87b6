package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/judfetch/api"
	"github.com/use-agent/judfetch/api/handler"
	"github.com/use-agent/judfetch/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	slog.Info("judfetch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
	)

	// ── 2. Launch browser and wire the service ──────────────────────
	st, err := newStack(cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		return err
	}
	defer st.Close()

	jobs := handler.NewJobs(cfg.Jobs.TTL)
	defer jobs.Close()

	// ── 3. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(st.service, st.scraper, jobs, cfg, startTime)

	// ── 4. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Running searches and downloads end failed or partial; their
	// sessions close before Chrome goes down with st.Close().
	jobs.Close()
	slog.Info("judfetch stopped")
	return nil
}
