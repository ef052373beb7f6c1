// Package config loads process configuration from the environment.
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

	"ledger/internal/core"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// AMQP. An empty URL disables publishing; alerts are then written
	// straight to the notifications table.
	AMQPURL        string
	AMQPExchange   string
	AMQPAlertQueue string

	// Metrics endpoint of ledger-worker. Empty disables it.
	MetricsAddr string

	// Workers
	RecurringInterval        time.Duration
	BudgetRefreshInterval    time.Duration
	BudgetRefreshConcurrency int

	// Google Sheets budget report. Empty spreadsheet ID disables it.
	GoogleSpreadsheetID      string
	GoogleReportSheetName    string
	GoogleCredentialsFile    string
	GoogleServiceAccountJSON string

	LogLevel string

	// Engine defaults
	DefaultCurrency       string
	DefaultSplitMethod    string
	DefaultAlertThreshold int
	DefaultBudgetPeriod   string
}

func Load() *Config {
	return &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPAlertQueue: getEnv("AMQP_ALERT_QUEUE", "budget_alerts"),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RecurringInterval:        getEnvDuration("RECURRING_INTERVAL", time.Hour),
		BudgetRefreshInterval:    getEnvDuration("BUDGET_REFRESH_INTERVAL", 15*time.Minute),
		BudgetRefreshConcurrency: getEnvInt("BUDGET_REFRESH_CONCURRENCY", 4),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName:    getEnv("GOOGLE_REPORT_SHEET_NAME", "Budgets"),
		GoogleCredentialsFile:    getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DefaultCurrency:       getEnv("DEFAULT_CURRENCY", "TRY"),
		DefaultSplitMethod:    getEnv("DEFAULT_SPLIT_METHOD", string(core.SplitEqual)),
		DefaultAlertThreshold: getEnvInt("DEFAULT_ALERT_THRESHOLD", 80),
		DefaultBudgetPeriod:   getEnv("DEFAULT_BUDGET_PERIOD", string(core.PeriodMonthly)),
	}
}

// Defaults returns the engine defaults carried by c.
func (c *Config) Defaults() core.Defaults {
	return core.Defaults{
		Currency:       c.DefaultCurrency,
		SplitMethod:    core.SplitMethod(c.DefaultSplitMethod),
		AlertThreshold: c.DefaultAlertThreshold,
		BudgetPeriod:   core.BudgetPeriod(c.DefaultBudgetPeriod),
	}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPAlertQueue == "" {
			errors = append(errors, "AMQP alert queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid metrics address '%s': %v", c.MetricsAddr, err))
		}
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}
	if c.BudgetRefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid budget refresh interval %v: must be at least 1 second", c.BudgetRefreshInterval))
	}
	if c.BudgetRefreshConcurrency < 1 || c.BudgetRefreshConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid budget refresh concurrency %d: must be between 1 and 64", c.BudgetRefreshConcurrency))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleReportSheetName == "" {
			errors = append(errors, "Google report sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "Google credentials are required when a spreadsheet ID is set (GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS)")
		}
	}
	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if err := c.Defaults().Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid engine defaults: %v", err))
	}

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
