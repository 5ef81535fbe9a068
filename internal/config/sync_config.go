package config

import (
	"fmt"
	"os"
	"time"
)

// SyncConfig holds tuning knobs for the product/order synchronization
// pipeline. It is built once at startup and passed into components as an
// immutable value.
type SyncConfig struct {
	// Pricing
	DefaultMarginRate float64 `json:"default_margin_rate"`
	MinMarginRate     float64 `json:"min_margin_rate"`
	MaxMarginRate     float64 `json:"max_margin_rate"`

	// Batching
	BatchSize   int `json:"batch_size"`
	WorkerCount int `json:"worker_count"`

	// Retries
	MaxRetries     int           `json:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`

	// Timeouts
	HTTPTimeout time.Duration `json:"http_timeout"`
	TaskTimeout time.Duration `json:"task_timeout"`

	// Token lifecycle
	TokenTTL time.Duration `json:"token_ttl"`

	// Task cleanup
	CleanupAge time.Duration `json:"cleanup_age"`

	// Order relay polling
	OrderPollInterval time.Duration `json:"order_poll_interval"`
}

// LoadSyncConfig loads sync configuration from environment with defaults
func LoadSyncConfig() *SyncConfig {
	return &SyncConfig{
		DefaultMarginRate: getFloatEnv("SYNC_DEFAULT_MARGIN", 0.3),
		MinMarginRate:     getFloatEnv("SYNC_MIN_MARGIN", 0.1),
		MaxMarginRate:     getFloatEnv("SYNC_MAX_MARGIN", 0.5),

		BatchSize:   getIntEnv("SYNC_BATCH_SIZE", 50),
		WorkerCount: getIntEnv("SYNC_WORKERS", 5),

		MaxRetries:     getIntEnv("SYNC_MAX_RETRIES", 3),
		RetryBaseDelay: getDurationEnv("SYNC_RETRY_BASE_DELAY", 2*time.Second),

		HTTPTimeout: getDurationEnv("SYNC_HTTP_TIMEOUT", 30*time.Second),
		TaskTimeout: getDurationEnv("SYNC_TASK_TIMEOUT", 10*time.Minute),

		TokenTTL: getDurationEnv("SUPPLIER_TOKEN_TTL", 30*24*time.Hour),

		CleanupAge: getDurationEnv("TASK_CLEANUP_AGE", 24*time.Hour),

		OrderPollInterval: getDurationEnv("ORDER_POLL_INTERVAL", 5*time.Minute),
	}
}

// Helper functions for environment variables

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
