// Package cli holds the start-up steps shared by cmd/purchaseflow and
// cmd/sheets-export.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"purchaseflow/internal/backend"
	"purchaseflow/internal/config"
	"purchaseflow/internal/log"
)

// SetupLogger builds the process logger at level and installs it as the
// slog default. An unknown level falls back to info with a warning.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	lvl, err := log.ParseLevel(level)
	if err == nil {
		cfg.Level = lvl
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadConfig loads and validates the configuration. exportRequired adds
// the spreadsheet export checks.
func LoadConfig(configFile, envFile string, exportRequired bool) (*config.Config, error) {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exportRequired {
		if err := cfg.ValidateExport(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// BuildStore assembles the Data Store from cfg. Event publishing is only
// wired when withEvents is set.
func BuildStore(ctx context.Context, logger *log.Logger, cfg *config.Config, withEvents bool) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !withEvents {
		bcfg.AMQPURL = ""
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return res, nil
}

// WithStore builds the store, runs fn with it and releases it whatever fn
// returned. Cleanup errors are joined to fn's error.
func WithStore(ctx context.Context, logger *log.Logger, cfg *config.Config, withEvents bool, fn func(context.Context, *backend.Result) error) error {
	res, err := BuildStore(ctx, logger, cfg, withEvents)
	if err != nil {
		return err
	}
	return runAndCleanup(ctx, res, fn)
}

func runAndCleanup(ctx context.Context, res *backend.Result, fn func(context.Context, *backend.Result) error) (err error) {
	defer func() {
		if res.Cleanup == nil {
			return
		}
		if cerr := res.Cleanup(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("release store: %w", cerr))
		}
	}()
	return fn(ctx, res)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}
