package postgres

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
// It wraps the existing DB and lazily creates sub-store repositories.
type Store struct {
	pgDB *DB

	mu            sync.Mutex
	tenants       *TenantRepository
	conversations assistant.ConversationStore
	toolCalls     assistant.ToolCallStore
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// NewStore wraps an existing DB as a unified Store.
func NewStore(pgDB *DB) *Store {
	return &Store{pgDB: pgDB}
}

func (s *Store) Migrate(_ context.Context) error {
	// PostgreSQL migration is done in Open() via autoMigrate.
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pgDB.Ping(ctx)
}

func (s *Store) Close() error {
	return s.pgDB.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

// GormDB returns the underlying GORM DB for direct access when needed.
func (s *Store) GormDB() *DB {
	return s.pgDB
}

func (s *Store) EnsureTenant(ctx context.Context, name string) (uuid.UUID, error) {
	return s.tenantRepo().EnsureTenant(ctx, name)
}

func (s *Store) EnsureMember(ctx context.Context, tenantID uuid.UUID, userID, email string) error {
	return s.tenantRepo().EnsureMember(ctx, tenantID, userID, email)
}

// --- Sub-store accessors ---

func (s *Store) Tenants() assistant.TenantStore {
	return s.tenantRepo()
}

func (s *Store) tenantRepo() *TenantRepository {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tenants == nil {
		s.tenants = NewTenantRepository(s.pgDB.GormDB())
	}
	return s.tenants
}

func (s *Store) Conversations() assistant.ConversationStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations == nil {
		s.conversations = NewConversationRepository(s.pgDB.GormDB())
	}
	return s.conversations
}

func (s *Store) ToolCalls() assistant.ToolCallStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toolCalls == nil {
		s.toolCalls = NewToolCallRepository(s.pgDB.GormDB())
	}
	return s.toolCalls
}
