package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentRecurring})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Materialized occurrences go through the transaction service so they
	// reach the ledger worker like any manually entered transaction
	var publisher services.SyncPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing in SQLite-only mode", "error", err)
	} else {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	txService := services.NewTransactionService(repo, publisher)
	processor := services.NewRecurringProcessor(repo, txService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring transaction processor configured",
		"cron", cfg.RecurringCronSpec,
		"sqlite_db", cfg.SQLiteDBPath)

	// Catch up on anything that came due while the worker was down
	logger.Info("Running initial recurring transaction processing...")
	if count, err := processor.ProcessDue(ctx, time.Now()); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "transactions_created", count)
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.RecurringCronSpec, func() {
		logger.Info("Processing due recurring transactions...")
		count, err := processor.ProcessDue(ctx, time.Now())
		if err != nil {
			logger.Error("Scheduled processing failed", "error", err)
			return
		}
		logger.Info("Scheduled processing complete", "transactions_created", count)
	})
	if err != nil {
		logger.Error("Invalid cron expression", "error", err, "cron", cfg.RecurringCronSpec)
		os.Exit(1)
	}
	scheduler.Start()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down recurring-worker...")
	cancel()

	// Let an in-flight sweep finish before exiting
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("Recurring-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
