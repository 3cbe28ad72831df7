package backend

import (
	"context"
	"time"

	"purchaseflow/internal/store"
)

// CleanupFunc releases resources opened by the factory.
type CleanupFunc func() error

// Result holds the assembled store and its cleanup.
type Result struct {
	Store *store.Store
	// Remote is nil when no API base URL is configured.
	Remote  store.Remote
	Cleanup CleanupFunc
}

// Factory builds a store from configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation
type Config struct {
	APIBaseURL   string
	APICSRFToken string
	APITimeout   time.Duration

	Fallback     FallbackType
	SQLiteDBPath string

	// AMQP is optional; an empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
}

// FallbackType selects where the fallback collections are kept.
type FallbackType string

const (
	SQLiteFallback FallbackType = "sqlite"
	MemoryFallback FallbackType = "memory"
)

func (ft FallbackType) String() string {
	return string(ft)
}

func (ft FallbackType) IsValid() bool {
	switch ft {
	case SQLiteFallback, MemoryFallback:
		return true
	default:
		return false
	}
}
