package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mkarlsen/world-engine/internal/config"
	"github.com/mkarlsen/world-engine/internal/logger"
	"github.com/mkarlsen/world-engine/internal/services/queue"
	"github.com/mkarlsen/world-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting World Engine archive worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	events := queue.NewTurnEventQueue(queueClient, log)
	log.Info("Queue service initialized successfully")

	archiveDir := filepath.Join(cfg.DataDir, "archive")
	archiver := worker.NewArchiver(events, archiveDir, log)
	log.Info("Archiver initialized successfully", "archive_dir", archiveDir)

	// Create and start worker
	w := worker.New(events, archiver, queueClient.GetRedisClient(), log, os.Getenv("WORKER_ID"))

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start worker in goroutine
	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, sweeping event feeds...")

	// Wait for shutdown signal
	<-quit
	log.Info("Worker shutdown signal received")

	// Stop worker
	w.Stop()

	// Give worker time to finish the current sweep
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
