package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tesoreria/internal/amqp"
	"tesoreria/internal/cli"
	"tesoreria/internal/export/google"
	"tesoreria/internal/notify"
	"tesoreria/internal/roster"
	"tesoreria/internal/treasury"
	"tesoreria/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting tesoreria-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	st := cli.InitStore(logger, cfg)
	defer st.Close()

	svc := treasury.New(st, roster.NewFile(cfg.RosterPath), nil)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided, nothing to do")
		os.Exit(1)
	}
	sheetsClient, err := google.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exportWorker := worker.NewExportWorker(svc, sheetsClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Publish a fresh report on startup so a restart never leaves a stale
	// sheet behind.
	if err := exportWorker.Refresh(ctx); err != nil {
		logger.Error("Startup report refresh failed", "error", err)
	}

	// Consume change messages if AMQP is configured; otherwise rely on the
	// periodic refresh alone.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			handler := func(change notify.Change) error {
				return exportWorker.HandleChange(ctx, change)
			}
			if err := amqpClient.ConsumeChanges(ctx, handler); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Change consumption failed", "error", err)
				}
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - refreshing on the export interval only")
	}

	ticker := time.NewTicker(cfg.ExportInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := exportWorker.Refresh(ctx); err != nil {
					logger.Error("Periodic report refresh failed", "error", err)
				}
			}
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		cancel()
	})
	cli.WaitForShutdown(shutdownCtx, done)
}
