package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Store
	DataBackend  string
	SQLiteDBPath string

	// Change bus
	AMQPURL      string
	AMQPExchange string

	// Session
	AccountID string

	// Ledger and subscriptions
	LedgerMaxAttempts  int
	SubscriptionBuffer int

	// Point-read cache (0 disables)
	CacheSize int
	CacheTTL  time.Duration

	// Observability
	LogLevel    string
	MetricsAddr string

	// Google Sheets export
	ExportEnabled         bool
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCategoriesSheet string
	ExportInterval        time.Duration
}

func Load() *Config {
	return &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pocketbook.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pocketbook.changes"),

		AccountID: getEnv("ACCOUNT_ID", ""),

		LedgerMaxAttempts:  getEnvInt("LEDGER_MAX_ATTEMPTS", 10),
		SubscriptionBuffer: getEnvInt("SUBSCRIPTION_BUFFER", 64),

		CacheSize: getEnvInt("CACHE_SIZE", 0),
		CacheTTL:  getEnvDuration("CACHE_TTL", 30*time.Second),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		ExportEnabled:         getEnvBool("EXPORT_ENABLED", false),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleCategoriesSheet: getEnv("GOOGLE_CATEGORIES_SHEET_NAME", "Categories"),
		ExportInterval:        getEnvDuration("EXPORT_INTERVAL", 5*time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

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
		if c.DataBackend == "memory" {
			errors = append(errors, "AMQP change bus requires the sqlite backend")
		}
	}

	if c.LedgerMaxAttempts < 1 || c.LedgerMaxAttempts > 100 {
		errors = append(errors, fmt.Sprintf("invalid ledger max attempts %d: must be between 1 and 100", c.LedgerMaxAttempts))
	}
	if c.SubscriptionBuffer < 1 || c.SubscriptionBuffer > 10000 {
		errors = append(errors, fmt.Sprintf("invalid subscription buffer %d: must be between 1 and 10000", c.SubscriptionBuffer))
	}

	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.CacheSize > 0 && c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid metrics address '%s': %v", c.MetricsAddr, err))
		}
	}

	// Validate Google Sheets configuration if export is enabled
	if c.ExportEnabled {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when export is enabled")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when export is enabled")
		}
		if c.AccountID == "" {
			errors = append(errors, "ACCOUNT_ID is required when export is enabled")
		}
		if c.ExportInterval < time.Second {
			errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
		}
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
