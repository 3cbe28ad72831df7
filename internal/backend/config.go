package backend

import (
	"errors"
	"fmt"

	"purchaseflow/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	fallback := FallbackType(appConfig.FallbackBackend)
	if !fallback.IsValid() {
		return Config{}, fmt.Errorf("invalid fallback backend in config: %s", appConfig.FallbackBackend)
	}

	return Config{
		APIBaseURL:   appConfig.APIBaseURL,
		APICSRFToken: appConfig.APICSRFToken,
		APITimeout:   appConfig.APITimeout,
		Fallback:     fallback,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Fallback.IsValid() {
		return fmt.Errorf("invalid fallback backend: %s", c.Fallback)
	}
	if c.Fallback == SQLiteFallback && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite fallback")
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return errors.New("AMQP exchange is required when AMQP URL is set")
	}
	return nil
}
