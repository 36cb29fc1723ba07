// Package main wires together the crawl service binary. The same
// executable serves HTTP traffic and, when started with -worker, runs
// the job loop inside a pool-managed worker process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mfeit/textcrawler/internal/api"
	"github.com/mfeit/textcrawler/internal/config"
	"github.com/mfeit/textcrawler/internal/crawl"
	"github.com/mfeit/textcrawler/internal/logging"
	"github.com/mfeit/textcrawler/internal/metrics"
	"github.com/mfeit/textcrawler/internal/pool"
	"github.com/mfeit/textcrawler/internal/runner"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	workerMode := flag.Bool("worker", false, "Run as a pool worker process")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *workerMode {
		if err := runWorker(ctx, cfg, logger.Named("worker")); err != nil {
			logger.Error("worker exited with error", zap.Error(err))
			os.Exit(1)
		}
		return
	}
	runServer(ctx, stop, *cfgPath, cfg, logger)
}

// runWorker is the worker-process entry point: build the fetch
// pipeline once, then serve jobs from stdin until the parent closes
// the pipe.
func runWorker(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	fetcher, closeFetcher := buildFetcher(cfg, logger)
	defer closeFetcher()

	crawler := crawl.New(fetcher, crawl.Config{
		MaxDepth:    cfg.Crawler.MaxDepth,
		Parallelism: cfg.Crawler.PageConcurrency,
	}, logger)

	return runner.Serve(ctx, os.Stdin, os.Stdout, runner.NewJobFunc(crawler, logger), logger)
}

// buildFetcher prefers the chromium renderer and falls back to the
// plain Colly fetcher when the browser cannot start.
func buildFetcher(cfg config.Config, logger *zap.Logger) (crawl.Fetcher, func()) {
	if cfg.Headless.Enabled {
		renderer, err := crawl.NewChromedpFetcher(crawl.RendererConfig{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		})
		if err == nil {
			return renderer, renderer.Close
		}
		logger.Warn("chromium renderer init failed, using plain fetcher", zap.Error(err))
	}
	fetcher := crawl.NewCollyFetcher(crawl.CollyConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.NavTimeout(),
	})
	return fetcher, func() {}
}

func runServer(ctx context.Context, stop context.CancelFunc, cfgPath string, cfg config.Config, logger *zap.Logger) {
	metrics.Init()

	manager := pool.NewManager(cfg.WorkerCount(), pool.SelfCommand(cfgPath), logger.Named("pool"))
	// Startup init is best-effort: Submit self-heals an unset pool.
	if err := manager.EnsureInitialized(); err != nil {
		logger.Warn("worker pool init deferred to first job", zap.Error(err))
	}

	apiServer := api.NewServer(manager, logger.Named("api"))
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("pool_workers", cfg.WorkerCount()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	manager.Shutdown()
	logger.Info("shutdown complete")
}
