package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"purchaseflow/internal/log"
)

// Fallback backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port            string        `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Write requests allowed per client per minute, and the comma-separated
	// CIDRs whose forwarding headers are honoured (empty: private ranges).
	RateLimitPerMinute int    `koanf:"rate_limit_per_minute"`
	TrustedProxies     string `koanf:"trusted_proxies"`

	// Purchases API. An empty base URL runs in fallback mode only.
	APIBaseURL   string        `koanf:"api_base_url"`
	APICSRFToken string        `koanf:"api_csrf_token"`
	APITimeout   time.Duration `koanf:"api_timeout"`

	// How long API reports are reused for the same period. Zero disables.
	ReportCacheTTL time.Duration `koanf:"report_cache_ttl"`

	// Local fallback
	FallbackBackend string `koanf:"fallback_backend"`
	SQLiteDBPath    string `koanf:"sqlite_db_path"`

	// Presentation
	Currency string `koanf:"currency"`
	LogLevel string `koanf:"log_level"`

	// AMQP events. An empty URL disables publishing.
	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`
	AMQPQueue    string `koanf:"amqp_queue"`

	// Google Sheets export
	GoogleSpreadsheetID      string `koanf:"google_spreadsheet_id"`
	GoogleSheetName          string `koanf:"google_sheet_name"`
	GoogleServiceAccountJSON string `koanf:"google_service_account_json"`
	GoogleServiceAccountFile string `koanf:"google_service_account_file"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":                  "8081",
		"shutdown_timeout":      "10s",
		"rate_limit_per_minute": 60,
		"api_base_url":          "http://localhost:8000/",
		"api_timeout":           "10s",
		"report_cache_ttl":      "30s",
		"fallback_backend":      BackendSQLite,
		"sqlite_db_path":        "./data/purchaseflow.db",
		"currency":              "FCFA",
		"log_level":             "info",
		"amqp_exchange":         "purchaseflow",
		"amqp_queue":            "purchase_events",
		"google_sheet_name":     "Achats",
	}
}

// Load layers, lowest priority first: built-in defaults, the optional YAML
// file at configFile, the optional dotenv file at envFile, then the process
// environment. Keys are the lower-cased variable names (PORT is "port").
func Load(configFile, envFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	if envFile != "" {
		envMap, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			m := make(map[string]any, len(envMap))
			for key, value := range envMap {
				m[envKey(key)] = value
			}
			if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func envKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxyCIDRs() {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.APIBaseURL != "" {
		if u, err := url.Parse(c.APIBaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}
	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 5m", c.APITimeout))
	}

	if c.ReportCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}

	switch c.FallbackBackend {
	case BackendSQLite:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite fallback")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("invalid fallback backend '%s': must be one of [%s %s]", c.FallbackBackend, BackendSQLite, BackendMemory))
	}

	if strings.TrimSpace(c.Currency) == "" {
		errs = append(errs, "currency cannot be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// TrustedProxyCIDRs splits TrustedProxies, dropping empty entries.
func (c *Config) TrustedProxyCIDRs() []string {
	var out []string
	for _, part := range strings.Split(c.TrustedProxies, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateExport checks the settings the spreadsheet export needs on top
// of Validate.
func (c *Config) ValidateExport() error {
	var errs []string
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "Google Spreadsheet ID is required for the export")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); err != nil {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("export configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// String renders the settings for the startup log, with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "port=%s api_base_url=%s api_timeout=%s csrf_token=%s ",
		c.Port, orNone(c.APIBaseURL), c.APITimeout, mask(c.APICSRFToken))
	fmt.Fprintf(&b, "fallback_backend=%s sqlite_db_path=%s currency=%s log_level=%s ",
		c.FallbackBackend, c.SQLiteDBPath, c.Currency, c.LogLevel)
	fmt.Fprintf(&b, "amqp_url=%s amqp_exchange=%s google_spreadsheet_id=%s",
		maskURL(c.AMQPURL), c.AMQPExchange, orNone(c.GoogleSpreadsheetID))
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "<not configured>"
	}
	return s
}

func mask(s string) string {
	if s == "" {
		return "<not configured>"
	}
	return "****"
}

// maskURL hides the user info of a URL.
func maskURL(raw string) string {
	if raw == "" {
		return "<not configured>"
	}
	parts := strings.Split(raw, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return raw
}
