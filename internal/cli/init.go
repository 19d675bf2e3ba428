// Package cli provides common CLI initialization utilities shared by
// cmd/pocketbook and cmd/pocketbook-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pocketbook/internal/backend"
	"pocketbook/internal/config"
	"pocketbook/internal/core"
	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging at the given level and makes
// it the process default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentCLI,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig(logger *log.Logger) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return nil, err
	}
	return cfg, nil
}

// OpenBackend opens the configured document store. m may be nil.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config, m *metrics.Metrics) (*backend.Backend, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	b, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend), m).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, "backend", cfg.DataBackend)
		return nil, err
	}
	return b, nil
}

// ResolveSession picks the account to act for: override when set,
// otherwise ACCOUNT_ID.
func ResolveSession(cfg *config.Config, override string) (core.Session, error) {
	id := strings.TrimSpace(override)
	if id == "" {
		id = strings.TrimSpace(cfg.AccountID)
	}
	s := core.Session{AccountID: id}
	if err := s.Validate(); err != nil {
		return core.Session{}, fmt.Errorf("no account selected (set ACCOUNT_ID or --account): %w", err)
	}
	return s, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
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

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
