package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/labstack/gommon/random"
)

// Config carries all environment-driven settings.
type Config struct {
	Port          int
	DatabaseURL   string
	AdminSecret   string
	JWTSecret     string
	AdminTokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	BackupBucket   string

	ChargeRateLimit  int
	ChargeRateWindow time.Duration

	ReconcileInterval time.Duration
}

// Load reads configuration from the environment. DATABASE_URL and
// ADMIN_SECRET are required; everything else has development defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              8080,
		AdminTokenTTL:     time.Hour,
		RedisAddr:         "localhost:6379",
		MinioEndpoint:     "localhost:9000",
		MinioAccessKey:    "minioadmin",
		MinioSecretKey:    "minioadmin",
		BackupBucket:      "wordledger-backups",
		ChargeRateLimit:   60,
		ChargeRateWindow:  time.Minute,
		ReconcileInterval: 24 * time.Hour,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.AdminSecret = os.Getenv("ADMIN_SECRET")
	if cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ADMIN_SECRET environment variable is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = random.String(32)
		log.Printf("WARNING: JWT_SECRET not set, using a generated secret; admin tokens will not survive restarts")
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = db
		}
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		cfg.MinioEndpoint = endpoint
	}
	if key := os.Getenv("MINIO_ACCESS_KEY"); key != "" {
		cfg.MinioAccessKey = key
	}
	if key := os.Getenv("MINIO_SECRET_KEY"); key != "" {
		cfg.MinioSecretKey = key
	}
	cfg.MinioUseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	if bucket := os.Getenv("BACKUP_BUCKET"); bucket != "" {
		cfg.BackupBucket = bucket
	}

	return cfg, nil
}
