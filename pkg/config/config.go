// Package config loads ledger configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Gemini        GeminiConfig
	Extraction    ExtractionConfig
	Dedup         DedupConfig
	Recurring     RecurringConfig
	Search        SearchConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type ExtractionConfig struct {
	ConfidenceFloor       float64
	FallbackEnabled       bool
	EmailTwoStepThreshold int
	ReparseDelay          time.Duration
	SyncWorkers           int
	SyncBatchSize         int
	HomeCurrency          string
}

type DedupConfig struct {
	WindowDays         int
	MerchantSimilarity float64
}

type RecurringConfig struct {
	UpcomingDays    int
	RebuildSchedule string
}

type SearchConfig struct {
	// IndexPath is empty for an in-memory index
	IndexPath string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5469),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "ledger-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", ""),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 30*time.Second),
		},
		Extraction: ExtractionConfig{
			ConfidenceFloor:       getEnvAsFloat("EXTRACTION_CONFIDENCE_FLOOR", 0.5),
			FallbackEnabled:       getEnvAsBool("EXTRACTION_FALLBACK_ENABLED", false),
			EmailTwoStepThreshold: getEnvAsInt("EXTRACTION_EMAIL_TWO_STEP_THRESHOLD", 1500),
			ReparseDelay:          getEnvAsDuration("EXTRACTION_REPARSE_DELAY", 500*time.Millisecond),
			SyncWorkers:           getEnvAsInt("SYNC_WORKERS", 4),
			SyncBatchSize:         getEnvAsInt("SYNC_BATCH_SIZE", 100),
			HomeCurrency:          getEnv("HOME_CURRENCY", "INR"),
		},
		Dedup: DedupConfig{
			WindowDays:         getEnvAsInt("DEDUP_WINDOW_DAYS", 2),
			MerchantSimilarity: getEnvAsFloat("DEDUP_MERCHANT_SIMILARITY", 0.8),
		},
		Recurring: RecurringConfig{
			UpcomingDays:    getEnvAsInt("RECURRING_UPCOMING_DAYS", 7),
			RebuildSchedule: getEnv("RECURRING_REBUILD_SCHEDULE", "0 3 * * *"),
		},
		Search: SearchConfig{
			IndexPath: getEnv("SEARCH_INDEX_PATH", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Extraction.FallbackEnabled {
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required when the model fallback is enabled")
		}
		if cfg.Gemini.Model == "" {
			return nil, errors.New("GEMINI_MODEL is required when the model fallback is enabled")
		}
	}

	if f := cfg.Extraction.ConfidenceFloor; f < 0 || f > 1 {
		return nil, fmt.Errorf("EXTRACTION_CONFIDENCE_FLOOR must be within [0, 1], got %v", f)
	}
	if s := cfg.Dedup.MerchantSimilarity; s <= 0 || s > 1 {
		return nil, fmt.Errorf("DEDUP_MERCHANT_SIMILARITY must be within (0, 1], got %v", s)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
