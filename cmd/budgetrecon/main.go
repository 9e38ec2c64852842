package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetrecon/internal/backend"
	"budgetrecon/internal/cache"
	"budgetrecon/internal/cli"
	"budgetrecon/internal/files"
	"budgetrecon/internal/fx"
	apphttp "budgetrecon/internal/http"
	"budgetrecon/internal/report"
	"budgetrecon/internal/scheduler"
	"budgetrecon/internal/services"
)

const (
	workbookCacheSize = 64
	shutdownTimeout   = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("budgetrecon")
	cfg := cli.LoadAndValidateConfig(logger)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Downloaded workbook bytes, swept once a minute
	blobs := cache.NewLRUCache[[]byte](workbookCacheSize, files.DownloadTTL)
	caches := cache.NewManager()
	caches.Register("workbooks", blobs)
	caches.StartCleanup(time.Minute)

	fileSvc := files.NewService(be.Registry, be.Upload, be.Grids, blobs, be.Readers...)

	static, err := fx.StaticRates(cfg.StaticRates)
	if err != nil {
		logger.Error("Invalid static rates", "error", err)
		os.Exit(1)
	}
	providers, err := fx.ProvidersByName(cfg.RateProviders, &http.Client{Timeout: cfg.RateTimeout}, static)
	if err != nil {
		logger.Error("Invalid rate providers", "error", err, "providers", cfg.RateProviders)
		os.Exit(1)
	}
	rates := fx.NewSource(fx.NewRateCache(cfg.RateTTL), cfg.RateTimeout, providers...)

	reports := report.NewService(fileSvc, rates, be.Classifications, cfg.ReportTimeout)
	classifications := services.NewClassificationService(fileSvc, be.Classifications, be.Publisher, cfg.DefaultStatusLabel())

	checks := make([]apphttp.ReadyCheck, 0, len(be.Checks))
	for _, c := range be.Checks {
		checks = append(checks, apphttp.ReadyCheck{Name: c.Name, Check: c.Check})
	}
	srv := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		ReadyChecks: checks,
	}, fileSvc, reports, rates, classifications)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	sched := scheduler.New(ctx, 2*cfg.RateTimeout)
	if err := sched.Register("rates-refresh", cfg.RateRefreshCron, func(ctx context.Context) error {
		_, err := rates.Refresh(ctx)
		return err
	}); err != nil {
		logger.Error("Failed to schedule rate refresh", "error", err)
		os.Exit(1)
	}
	sched.Start()
	go func() {
		// A failed warm-up leaves reports to fetch on demand.
		_ = sched.RunNow("rates-refresh")
	}()

	logger.Info("Starting budgetrecon server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"upload_store", cfg.UploadStore,
		"rate_providers", rates.Providers())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.Stop(stopCtx)
	caches.Stop()
	if err := be.Close(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
