package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger
	PersistDebounce  time.Duration
	UndoHistoryLimit int
	SeedFile         string

	// Worker
	BandRolloverCron string

	// Filter result cache
	FilterCacheSize int
	FilterCacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budget-blocks.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget_blocks"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		PersistDebounce:  getEnvDuration("PERSIST_DEBOUNCE", 500*time.Millisecond),
		UndoHistoryLimit: getEnvInt("UNDO_HISTORY_LIMIT", 50),
		SeedFile:         getEnv("SEED_FILE", ""),

		BandRolloverCron: getEnv("BAND_ROLLOVER_CRON", "5 0 * * *"),

		FilterCacheSize: getEnvInt("FILTER_CACHE_SIZE", 64),
		FilterCacheTTL:  getEnvDuration("FILTER_CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.PersistDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid persist debounce %v: must not be negative", c.PersistDebounce))
	} else if c.PersistDebounce > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid persist debounce %v: must be at most 1 minute", c.PersistDebounce))
	}

	if c.UndoHistoryLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid undo history limit %d: must be at least 1", c.UndoHistoryLimit))
	} else if c.UndoHistoryLimit > 1000 {
		errors = append(errors, fmt.Sprintf("invalid undo history limit %d: must be at most 1000", c.UndoHistoryLimit))
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if _, err := cron.ParseStandard(c.BandRolloverCron); err != nil {
		errors = append(errors, fmt.Sprintf("invalid band rollover schedule '%s': %v", c.BandRolloverCron, err))
	}

	if c.FilterCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid filter cache size %d: must be at least 1", c.FilterCacheSize))
	}
	if c.FilterCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid filter cache ttl %v: must be at least 1 second", c.FilterCacheTTL))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
