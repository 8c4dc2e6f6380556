// Package storage defines the unified Store interface that abstracts all
// persistence operations. Two backends are provided: SQLite (default,
// zero-config) and PostgreSQL (production/multi-tenant).
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/assistant"
)

// Store is the unified persistence interface. Sub-store accessors return
// domain-specific interfaces sharing the same underlying connection.
type Store interface {
	Tenants() assistant.TenantStore
	Conversations() assistant.ConversationStore
	ToolCalls() assistant.ToolCallStore

	// EnsureTenant creates the named tenant if absent and returns its ID.
	// Used at bootstrap for single-tenant installs.
	EnsureTenant(ctx context.Context, name string) (uuid.UUID, error)

	// EnsureMember creates the user if absent and enrolls them in the
	// tenant. Idempotent. Used at bootstrap to seed the configured
	// API-key users so their requests pass the membership guard.
	EnsureMember(ctx context.Context, tenantID uuid.UUID, userID, email string) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Driver returns the storage driver name ("sqlite" or "postgres").
	Driver() string
}

// Config holds storage configuration for driver selection.
type Config struct {
	Driver   string         `json:"driver" yaml:"driver"` // "sqlite" (default) or "postgres"
	SQLite   SQLiteConfig   `json:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	JournalMode string `json:"journal_mode" yaml:"journal_mode"` // "wal" (default)
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"`
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"`
}

// DefaultDriver is the default storage driver.
const DefaultDriver = "sqlite"

// DriverSQLite is the SQLite driver name.
const DriverSQLite = "sqlite"

// DriverPostgres is the PostgreSQL driver name.
const DriverPostgres = "postgres"
