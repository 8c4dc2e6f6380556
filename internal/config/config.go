// Package config handles loading and validating aiom configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jkaninda/aiom/internal/storage"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for aiom.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.aiom/data. Override: AIOM_DATA_DIR env var.
	Server        ServerConfig         `json:"server" yaml:"server"`
	Storage       *storage.Config      `json:"storage,omitempty" yaml:"storage,omitempty"` // nil = SQLite default (derived from data dir)
	Odoo          OdooConfig           `json:"odoo" yaml:"odoo"`
	Tenant        TenantConfig         `json:"tenant" yaml:"tenant"`
	RateLimit     RateLimitConfig      `json:"rate_limit" yaml:"rate_limit"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = metrics on /metrics, tracing off
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	ListenAddr          string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080"
	EnableDocs          bool              `json:"enable_docs" yaml:"enable_docs"`
	MaxRequestSizeBytes int64             `json:"max_request_size_bytes" yaml:"max_request_size_bytes"`
	APIKeyUserMapping   map[string]string `json:"api_key_user_mapping" yaml:"api_key_user_mapping"` // API key → user ID.
}

// Addr returns the listen address, defaulting to ":8080".
func (s ServerConfig) Addr() string {
	if s.ListenAddr != "" {
		return s.ListenAddr
	}
	return ":8080"
}

// OdooConfig configures the upstream ERP connection.
// URL and API key can be set here or via ODOO_URL / ODOO_API_KEY env vars;
// environment variables take precedence over config values.
type OdooConfig struct {
	URL      string `json:"url" yaml:"url"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Override: ODOO_API_KEY env var.
	TimeoutS int    `json:"timeout_s" yaml:"timeout_s"`                 // Default: 10
}

// Timeout returns the RPC timeout as a duration.
func (o OdooConfig) Timeout() time.Duration {
	if o.TimeoutS > 0 {
		return time.Duration(o.TimeoutS) * time.Second
	}
	return 10 * time.Second
}

// TenantConfig configures bootstrap tenancy.
type TenantConfig struct {
	// DefaultName is created at startup when no tenant exists.
	DefaultName string `json:"default_name" yaml:"default_name"` // Default: "default"
}

// Name returns the default tenant name.
func (t TenantConfig) Name() string {
	if t.DefaultName != "" {
		return t.DefaultName
	}
	return "default"
}

// RateLimitConfig configures the per-user token bucket rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"` // 0 = unlimited.
	BurstSize         int `json:"burst_size" yaml:"burst_size"`                   // 0 = defaults to RequestsPerMinute.
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// MetricsPath returns the metrics route, defaulting to "/metrics".
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "aiom"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/aiom.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".aiom", "config.yaml")
}

// Load reads, parses, and validates the config file at path. YAML and JSON
// are both accepted, decided by extension.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a runnable zero-config setup: SQLite under the data dir,
// no auth mapping, unlimited rate limit. Odoo stays unconfigured — company
// view sections then report auth errors instead of failing startup.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		// validate only fails on contradictory explicit settings, which a
		// zero config cannot contain.
		panic(err)
	}
	return cfg
}

// applyEnv applies environment overrides. Env vars take precedence over
// config file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("AIOM_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("AIOM_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("AIOM_DB_DSN"); v != "" {
		if c.Storage == nil {
			c.Storage = &storage.Config{}
		}
		c.Storage.Driver = storage.DriverPostgres
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("ODOO_URL"); v != "" {
		c.Odoo.URL = v
	}
	if v := os.Getenv("ODOO_DATABASE"); v != "" {
		c.Odoo.Database = v
	}
	if v := os.Getenv("ODOO_USERNAME"); v != "" {
		c.Odoo.Username = v
	}
	if v := os.Getenv("ODOO_API_KEY"); v != "" {
		c.Odoo.APIKey = v
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.DataDir = filepath.Join(home, ".aiom", "data")
		}
	}
}

func (c *Config) validate() error {
	if c.Storage != nil && c.Storage.Driver == storage.DriverPostgres && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required for the postgres driver (set AIOM_DB_DSN env var)")
	}
	if c.Odoo.URL != "" {
		if c.Odoo.Database == "" {
			return fmt.Errorf("odoo.database is required when odoo.url is set")
		}
		if c.Odoo.Username == "" {
			return fmt.Errorf("odoo.username is required when odoo.url is set")
		}
		if c.Odoo.APIKey == "" {
			return fmt.Errorf("odoo.api_key is required when odoo.url is set (set ODOO_API_KEY env var)")
		}
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must not be negative")
	}
	if tr := c.tracing(); tr != nil && tr.Enabled && tr.Endpoint == "" {
		return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

func (c *Config) tracing() *TracingConfig {
	if c.Observability == nil {
		return nil
	}
	return c.Observability.Tracing
}

// StorageConfig returns the effective storage configuration, defaulting to
// SQLite under the data dir.
func (c *Config) StorageConfig() storage.Config {
	if c.Storage != nil {
		cfg := *c.Storage
		if cfg.Driver == "" {
			cfg.Driver = storage.DefaultDriver
		}
		if cfg.Driver == storage.DriverSQLite && cfg.SQLite.Path == "" {
			cfg.SQLite.Path = filepath.Join(c.DataDir, "aiom.db")
		}
		return cfg
	}
	return storage.Config{
		Driver: storage.DefaultDriver,
		SQLite: storage.SQLiteConfig{Path: filepath.Join(c.DataDir, "aiom.db")},
	}
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
