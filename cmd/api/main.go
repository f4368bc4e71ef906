package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarlsen/world-engine/internal/config"
	"github.com/mkarlsen/world-engine/internal/engine"
	"github.com/mkarlsen/world-engine/internal/handlers"
	"github.com/mkarlsen/world-engine/internal/logger"
	"github.com/mkarlsen/world-engine/internal/middleware"
	"github.com/mkarlsen/world-engine/internal/services"
	"github.com/mkarlsen/world-engine/internal/services/queue"
	"github.com/mkarlsen/world-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting World Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"oracle_provider", cfg.OracleProvider,
		"storage_backend", cfg.StorageBackend,
		"model_name", cfg.ModelName)

	var oracleService services.OracleService
	switch cfg.OracleProvider {
	case config.OracleAnthropic:
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		oracleService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		log.Info("Using Anthropic oracle provider")
	case config.OracleOllama:
		oracleService = services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log)
		log.Info("Using Ollama oracle provider", "url", cfg.OllamaURL)
	case config.OracleMock:
		oracleService = services.NewMockOracle()
		log.Warn("Using mock oracle provider; all decisions are canned")
	default:
		log.Error("Invalid oracle provider specified", "provider", cfg.OracleProvider, "supported", []string{"anthropic", "ollama", "mock"})
		os.Exit(1)
	}

	// The turn event feed rides on Redis. With file storage and no queue
	// client, the engine simply skips publishing.
	var store storage.Storage
	var events *queue.TurnEventQueue
	var queueClient *queue.Client

	switch cfg.StorageBackend {
	case config.StorageRedis:
		redisStore, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, 0, log)
		if err != nil {
			log.Error("Failed to create redis storage", "error", err)
			os.Exit(1)
		}
		store = redisStore

		queueClient, err = queue.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("Failed to connect to event queue", "error", err)
			os.Exit(1)
		}
		events = queue.NewTurnEventQueue(queueClient, log)
	case config.StorageFile:
		store = storage.NewFileStorage(cfg.SnapshotDir, cfg.DataDir, log)
		log.Info("Using file storage; turn event feed disabled", "snapshot_dir", cfg.SnapshotDir)
	default:
		log.Error("Invalid storage backend specified", "backend", cfg.StorageBackend, "supported", []string{"file", "redis"})
		os.Exit(1)
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.Ping(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	eng := engine.New(store, oracleService, events, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, oracleService, log)
	mux.Handle("/health", healthHandler)

	worldHandler := handlers.NewWorldHandler(eng, log)
	mux.Handle("/v1/worlds", worldHandler)
	mux.Handle("/v1/worlds/", worldHandler)

	utteranceHandler := handlers.NewUtteranceHandler(eng, log)
	mux.Handle("/v1/utterance", utteranceHandler)

	actionHandler := handlers.NewActionHandler(eng, log)
	mux.Handle("/v1/actions", actionHandler)
	mux.Handle("/v1/actions/", actionHandler)

	modificationHandler := handlers.NewModificationHandler(eng, log)
	mux.Handle("/v1/modifications", modificationHandler)

	changeHandler := handlers.NewChangeHandler(eng, log)
	mux.Handle("/v1/changes", changeHandler)

	talkHandler := handlers.NewTalkHandler(eng, log)
	mux.Handle("/v1/talk", talkHandler)

	templateHandler := handlers.NewTemplateHandler(log, store)
	mux.Handle("/v1/templates", templateHandler)
	mux.Handle("/v1/templates/", templateHandler)

	if events != nil {
		eventsHandler := handlers.NewEventsHandler(events, log)
		mux.Handle("/v1/events/", eventsHandler)
	}

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing event queue connection", "error", err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
