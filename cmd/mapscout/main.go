package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/mapscout/api"
	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/cache"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/scraper"
	"github.com/use-agent/mapscout/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("mapscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
	)

	// ── 3. Initialise scraper (browsers launch per scrape) ──────────
	sc := scraper.New(browser.NewRodLauncher(cfg.Browser), cfg.Scraper,
		scraper.WithLogger(slog.Default()),
	)

	// ── 4. Initialise cache ─────────────────────────────────────────
	var cc *cache.Cache
	if cfg.Cache.Enabled {
		cc = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		defer cc.Close()
	}

	// ── 5. Initialise job manager ───────────────────────────────────
	manager := jobs.NewManager(sc, jobs.Options{
		MaxSessions: cfg.Browser.MaxSessions,
		Retention:   cfg.Jobs.Retention,
		Cache:       cc,
		Notifier:    webhook.NewSender(cfg.Webhook),
		Logger:      slog.Default(),
	})

	// ── 6. Setup router ─────────────────────────────────────────────
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	startTime := time.Now()
	router := api.NewRouter(rootCtx, manager, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Running jobs are canceled; their browser sessions close on the way out.
	jobsCtx, jobsCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer jobsCancel()
	if err := manager.Close(jobsCtx); err != nil {
		slog.Error("jobs did not stop in time", "error", err)
	}

	slog.Info("mapscout stopped")
}

// initLogger installs the configured logger as the slog default.
func initLogger(cfg config.LogConfig) {
	slog.SetDefault(config.NewLogger(cfg, os.Stdout))
}
