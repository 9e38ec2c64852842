package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetrecon/internal/amqp"
	"budgetrecon/internal/cli"
	gsheet "budgetrecon/internal/sheets/google"
	"budgetrecon/internal/scheduler"
	"budgetrecon/internal/storage"
	"budgetrecon/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	resyncTimeout   = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("budgetrecon-worker")
	logger.Info("Starting budgetrecon-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" || cfg.GoogleSpreadsheetID == "" {
		logger.Error("The worker needs AMQP_URL and GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	// The database is authoritative; the spreadsheet is a mirror.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		TabPrefix:     cfg.ClassificationTabPrefix,
		Credentials:   cfg.Google,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, sheetsClient, sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	// Catch up on messages missed while the worker was down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	go func() {
		err := amqpClient.ConsumeClassificationSync(ctx, syncWorker.HandleSyncMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	sched := scheduler.New(ctx, resyncTimeout)
	if err := sched.Register("full-resync", cfg.ResyncCron, func(ctx context.Context) error {
		n, err := syncWorker.FullResync(ctx)
		logger.Info("Full resync finished", "synced", n)
		return err
	}); err != nil {
		logger.Error("Failed to schedule full resync", "error", err)
		os.Exit(1)
	}
	sched.Start()

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.Stop(stopCtx)
	logger.Info("Worker shutdown complete")
}
