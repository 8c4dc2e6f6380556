//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/domain"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping integration test")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db, err := Open(Config{DSN: dsn}, logger)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testTenant(t *testing.T, db *DB) uuid.UUID {
	t.Helper()
	repo := NewTenantRepository(db.GormDB())
	id, err := repo.EnsureTenant(context.Background(), fmt.Sprintf("test-%s", uuid.New().String()[:8]))
	if err != nil {
		t.Fatalf("creating test tenant: %v", err)
	}
	return id
}

func TestToolCallIdempotencyKeyUnique(t *testing.T) {
	db := testDB(t)
	tenantID := testTenant(t, db)
	ctx := context.Background()

	convRepo := NewConversationRepository(db.GormDB())
	conv, err := convRepo.GetOrCreateProposalThread(ctx, tenantID, "it-user")
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	msg, err := convRepo.AppendMessage(ctx, conv.ID, tenantID, "user", "create task: x")
	if err != nil {
		t.Fatalf("message: %v", err)
	}

	repo := NewToolCallRepository(db.GormDB())
	key := "assistant:propose:v1:" + uuid.New().String()
	tc := &domain.ToolCall{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ToolName:       "assistant.create_task",
		ToolCallID:     key,
		InputArguments: json.RawMessage(`{"title":"x"}`),
		Status:         domain.StatusProposed,
	}
	if err := repo.Create(ctx, tc); err != nil {
		t.Fatalf("first create: %v", err)
	}

	dup := *tc
	dup.ID = uuid.New()
	if err := repo.Create(ctx, &dup); !errors.Is(err, assistant.ErrDuplicateToolCall) {
		t.Errorf("err = %v, want ErrDuplicateToolCall", err)
	}
}

func TestTransitionToRunning_ConcurrentExecutes(t *testing.T) {
	db := testDB(t)
	tenantID := testTenant(t, db)
	ctx := context.Background()

	convRepo := NewConversationRepository(db.GormDB())
	conv, _ := convRepo.GetOrCreateProposalThread(ctx, tenantID, "it-user")
	msg, _ := convRepo.AppendMessage(ctx, conv.ID, tenantID, "user", "create task: y")

	repo := NewToolCallRepository(db.GormDB())
	tc := &domain.ToolCall{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ToolName:       "assistant.create_task",
		ToolCallID:     "assistant:propose:v1:" + uuid.New().String(),
		Status:         domain.StatusPending,
	}
	if err := repo.Create(ctx, tc); err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TransitionToRunning(ctx, tc.ID, time.Now().UTC())
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d transitions won, want exactly 1", wins)
	}
}
