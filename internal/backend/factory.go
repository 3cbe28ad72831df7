package backend

import (
	"context"
	"errors"
	"fmt"

	"purchaseflow/internal/amqp"
	"purchaseflow/internal/log"
	"purchaseflow/internal/remote"
	"purchaseflow/internal/storage"
	"purchaseflow/internal/store"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewNop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create wires the remote client, the fallback KV and the optional event
// publisher into a store. An AMQP broker that cannot be reached only
// disables publishing.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []func() error
	cleanup := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	kv, closeKV, err := f.createKV(config)
	if err != nil {
		return nil, err
	}
	if closeKV != nil {
		cleanups = append(cleanups, closeKV)
	}

	var rem store.Remote
	if config.APIBaseURL != "" {
		client, err := remote.New(config.APIBaseURL,
			remote.WithCSRFToken(config.APICSRFToken),
			remote.WithTimeout(config.APITimeout),
			remote.WithLogger(f.logger.WithComponent(log.ComponentRemote).Logger))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create API client: %w", err)
		}
		rem = client
		f.logger.InfoContext(ctx, "Initialized API client", "base_url", config.APIBaseURL)
	} else {
		f.logger.InfoContext(ctx, "No API base URL configured, running in fallback mode")
	}

	opts := []store.Option{store.WithLogger(f.logger)}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, "", f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			opts = append(opts, store.WithPublisher(client))
			cleanups = append(cleanups, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP publisher", "exchange", config.AMQPExchange)
		}
	}

	s := store.New(rem, storage.NewLocalState(kv), opts...)
	return &Result{Store: s, Remote: rem, Cleanup: cleanup}, nil
}

func (f *DefaultFactory) createKV(config Config) (storage.KV, func() error, error) {
	switch config.Fallback {
	case SQLiteFallback:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize SQLite fallback: %w", err)
		}
		f.logger.Info("Initialized SQLite fallback", "db_path", config.SQLiteDBPath)
		return kv, kv.Close, nil
	case MemoryFallback:
		f.logger.Info("Initialized memory fallback")
		return storage.NewMemoryKV(), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported fallback backend: %s", config.Fallback)
}
