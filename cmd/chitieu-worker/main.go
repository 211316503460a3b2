package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chitieu/internal/amqp"
	"chitieu/internal/config"
	applog "chitieu/internal/log"
	"chitieu/internal/storage"
	"chitieu/internal/worker"
)

const (
	backupRetention = 10
	backupDebounce  = 5 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting chitieu-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	backupWorker := worker.NewBackupWorker(store, cfg.BackupDir, backupRetention, backupDebounce)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot once at startup so a fresh deployment has a baseline backup
	// even before the first change event arrives.
	if path, err := backupWorker.Snapshot(ctx); err != nil {
		logger.Error("Startup snapshot failed", "error", err)
	} else {
		logger.Info("Startup snapshot written", "path", path)
	}

	// Change events arrive over AMQP when configured; without it the
	// periodic timer alone drives snapshots.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			if err := amqpClient.ConsumeEvents(ctx, backupWorker.HandleEvent); err != nil {
				if err != context.Canceled {
					logger.Error("Event consumption failed", "error", err)
				}
				cancel()
			}
		}()
		logger.Info("Consuming change events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - running on the periodic timer only")
	}

	go func() {
		if err := backupWorker.Run(ctx, cfg.BackupInterval); err != nil && err != context.Canceled {
			logger.Error("Backup loop failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Final snapshot on the way out so nothing written since the last tick
	// is lost.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if path, err := backupWorker.Snapshot(shutdownCtx); err != nil {
		logger.Error("Final snapshot failed", "error", err)
	} else {
		logger.Info("Final snapshot written", "path", path)
	}

	logger.Info("Worker shutdown complete")
}
