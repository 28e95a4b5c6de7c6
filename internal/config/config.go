package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends understood by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string
	StoreBackend    string
	DatabaseURL     string
	SQLitePath      string
	RunMigrations   bool
	JWTSecret       string
	TokenExpiration time.Duration
	EncryptionKey   []byte // Raw key bytes (32 for AES-256)

	WebhookTimeout   time.Duration
	WebhookTestReset time.Duration

	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// .env is a development convenience; production sets real env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLitePath:   getEnv("SQLITE_PATH", "relaychat.db"),
		JWTSecret:    getEnv("JWT_SECRET", "default-super-secret-key"), // CHANGE THIS IN PRODUCTION!
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q (want postgres, sqlite or memory)", cfg.StoreBackend)
	}

	runMigrations, err := strconv.ParseBool(getEnv("RUN_MIGRATIONS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_MIGRATIONS: %w", err)
	}
	cfg.RunMigrations = runMigrations

	tokenExpHours, err := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	if err != nil || tokenExpHours <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: must be a positive integer")
	}
	cfg.TokenExpiration = time.Hour * time.Duration(tokenExpHours)

	// 64 hex characters for a 32 byte AES-256 key.
	encryptionKeyHex := getEnv("ENCRYPTION_KEY", "")
	if encryptionKeyHex == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY environment variable is not set")
	}
	key, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ENCRYPTION_KEY from hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex characters) long, got %d bytes", len(key))
	}
	cfg.EncryptionKey = key

	if cfg.WebhookTimeout, err = time.ParseDuration(getEnv("WEBHOOK_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}
	if cfg.WebhookTestReset, err = time.ParseDuration(getEnv("WEBHOOK_TEST_RESET", "3s")); err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TEST_RESET: %w", err)
	}

	origins := getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
