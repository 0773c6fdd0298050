package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Config struct {
	ServerPort         int
	StoreDriver        string
	DatabaseURL        string
	BoltPath           string
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	PhaseRefreshCron   string
	MatchWriteRetries  int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	retries, err := intEnv("MATCH_WRITE_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("MATCH_WRITE_RETRIES must not be negative, got %d", retries)
	}

	var level slog.Level
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
		}
	}

	cfg := &Config{
		ServerPort:         port,
		StoreDriver:        strings.ToLower(stringEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		BoltPath:           stringEnv("BOLT_PATH", "data/volleyball.db"),
		LogLevel:           level,
		CORSAllowedOrigins: splitList(stringEnv("CORS_ALLOWED_ORIGINS", "*")),
		PhaseRefreshCron:   stringEnv("PHASE_REFRESH_CRON", "@every 1m"),
		MatchWriteRetries:  retries,
		R2AccountID:        os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreBolt:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the %s store", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
