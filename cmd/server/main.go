package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"relaychat-backend/internal/api"
	"relaychat-backend/internal/config"
	"relaychat-backend/internal/crypto"
	"relaychat-backend/internal/events"
	"relaychat-backend/internal/handlers"
	"relaychat-backend/internal/logging"
	"relaychat-backend/internal/services"
	"relaychat-backend/internal/store"
	"relaychat-backend/internal/store/memstore"
	"relaychat-backend/internal/store/postgres"
	"relaychat-backend/internal/store/sqlite"
	"relaychat-backend/internal/webhook"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("Starting RelayChat Backend...", zap.String("store_backend", cfg.StoreBackend))

	// 2. Open the store
	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	// --- Create AEAD Cipher for Encryption ---
	aead, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("Failed to create AES-GCM cipher", zap.Error(err))
	}

	// 3. Initialize Dependencies (Relay, Services, Handlers)
	hub := events.NewHub(64, logger)
	relay := webhook.NewRelay(nil, cfg.WebhookTimeout, logger)
	tester := webhook.NewTester(relay, relay.Timeout(), cfg.WebhookTestReset, logger)

	authService := services.NewAuthService(st, cfg, logger)
	webhookService := services.NewWebhookService(st, aead, relay, tester, hub, logger)
	chatService := services.NewChatService(st, webhookService, hub, logger)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:    handlers.NewAuthHandler(authService, logger),
		SessionHandler: handlers.NewSessionHandler(chatService, logger),
		MessageHandler: handlers.NewMessageHandler(chatService, logger),
		WebhookHandler: handlers.NewWebhookHandler(webhookService, chatService, logger),
		WSHandler:      handlers.NewWSHandler(hub, api.OriginChecker(cfg.AllowedOrigins), logger),
		Config:         cfg,
		Logger:         logger,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// A blocking webhook test may take the full relay timeout.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.WebhookTimeout + 20*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Could not listen", zap.String("port", cfg.HTTPPort), zap.Error(err))
		}
		logger.Info("Server listener routine stopped")
	}()

	<-stopChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("Server shutdown complete")
}

// openStore builds the backend selected by STORE_BACKEND.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		return memstore.New(), nil

	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLitePath, logger)

	default:
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("Database migrations applied")
		}

		dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dbCancel()

		dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating connection pool: %w", err)
		}
		if err := dbpool.Ping(dbCtx); err != nil {
			dbpool.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		logger.Info("Database connection pool established")
		return postgres.NewPostgresStore(dbpool, logger), nil
	}
}
