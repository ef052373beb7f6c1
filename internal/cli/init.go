// Package cli holds the start-up and shutdown steps shared by
// cmd/ledger-worker and cmd/notify-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/config"
	ledgerlog "ledger/internal/log"
	"ledger/internal/storage"
)

// SetupLogger builds a tint logger at level for component and installs it
// as the slog default.
func SetupLogger(level, component string) *ledgerlog.Logger {
	logger := ledgerlog.New(ledgerlog.Config{
		Level:     ledgerlog.ParseLevel(level),
		Component: component,
		Output:    os.Stderr,
	})
	ledgerlog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it
// is invalid. Validation problems are printed before any logger exists.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		bootstrap := SetupLogger("info", ledgerlog.ComponentApp)
		bootstrap.Error("Configuration validation failed", ledgerlog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository, running migrations, or exits.
func InitSQLite(logger *ledgerlog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", ledgerlog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown returns a context carrying logger that is cancelled on
// SIGINT or SIGTERM, and a channel closed once cleanup has run or timeout has
// elapsed.
func GracefulShutdown(logger *ledgerlog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(ledgerlog.NewContext(context.Background(), logger))
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ends.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Every runs fn immediately and then on every tick until ctx is done. fn
// receives the tick time.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context, now time.Time)) {
	fn(ctx, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(ctx, now)
		}
	}
}
