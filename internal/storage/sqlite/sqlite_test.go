package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/domain"
	"github.com/jkaninda/aiom/internal/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "aiom.db")}, logger)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureTenantIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.EnsureTenant(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}
	second, err := s.EnsureTenant(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("EnsureTenant again: %v", err)
	}
	if first != second {
		t.Errorf("tenant IDs differ: %s vs %s", first, second)
	}

	tenant, err := s.Tenants().FindByID(ctx, first)
	if err != nil || tenant == nil {
		t.Fatalf("FindByID: tenant=%v err=%v", tenant, err)
	}
	if tenant.Slug != "acme-corp" {
		t.Errorf("slug = %q", tenant.Slug)
	}
	if !tenant.IsActive {
		t.Error("new tenant must be active")
	}
}

func TestMembership(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tenantID, err := s.EnsureTenant(ctx, "Acme")
	if err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}

	repo := s.tenantRepo()
	if err := repo.EnsureMember(ctx, tenantID, "user-1", "u1@acme.test"); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	// Second call is a no-op, not an error.
	if err := repo.EnsureMember(ctx, tenantID, "user-1", "u1@acme.test"); err != nil {
		t.Fatalf("EnsureMember again: %v", err)
	}

	ok, err := s.Tenants().IsMember(ctx, tenantID, "user-1")
	if err != nil || !ok {
		t.Errorf("IsMember(user-1) = %v, %v", ok, err)
	}
	ok, err = s.Tenants().IsMember(ctx, tenantID, "stranger")
	if err != nil || ok {
		t.Errorf("IsMember(stranger) = %v, %v", ok, err)
	}

	admin, err := s.Tenants().IsAdmin(ctx, "user-1")
	if err != nil || admin {
		t.Errorf("IsAdmin(user-1) = %v, %v", admin, err)
	}
}

// A fresh install must leave the configured API-key users able to pass the
// membership guard: migrate, ensure the default tenant, enroll each mapped
// user through the Store interface — exactly the serve bootstrap sequence.
func TestBootstrapEnrollsAPIKeyUsers(t *testing.T) {
	var store storage.Store = testStore(t)
	ctx := context.Background()

	tenantID, err := store.EnsureTenant(ctx, "default")
	if err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}

	apiKeyUsers := map[string]string{"key-a": "alice", "key-b": "bob"}
	for _, userID := range apiKeyUsers {
		if err := store.EnsureMember(ctx, tenantID, userID, ""); err != nil {
			t.Fatalf("EnsureMember(%s): %v", userID, err)
		}
	}

	for _, userID := range apiKeyUsers {
		ok, err := store.Tenants().IsMember(ctx, tenantID, userID)
		if err != nil {
			t.Fatalf("IsMember(%s): %v", userID, err)
		}
		if !ok {
			t.Errorf("user %s not enrolled in the bootstrap tenant", userID)
		}
	}
}

func TestProposalThreadPerUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tenantID, _ := s.EnsureTenant(ctx, "Acme")

	conv1, err := s.Conversations().GetOrCreateProposalThread(ctx, tenantID, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProposalThread: %v", err)
	}
	again, err := s.Conversations().GetOrCreateProposalThread(ctx, tenantID, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProposalThread again: %v", err)
	}
	if conv1.ID != again.ID {
		t.Error("same user must reuse the thread")
	}

	other, err := s.Conversations().GetOrCreateProposalThread(ctx, tenantID, "user-2")
	if err != nil {
		t.Fatalf("GetOrCreateProposalThread user-2: %v", err)
	}
	if other.ID == conv1.ID {
		t.Error("different users must not share a thread")
	}

	found, err := s.Conversations().FindForUser(ctx, conv1.ID, "user-1")
	if err != nil || found == nil {
		t.Errorf("FindForUser owner: %v, %v", found, err)
	}
	found, err = s.Conversations().FindForUser(ctx, conv1.ID, "user-2")
	if err != nil || found != nil {
		t.Errorf("FindForUser non-owner must return nil, got %v, %v", found, err)
	}
}

func TestAppendMessageSequencing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tenantID, _ := s.EnsureTenant(ctx, "Acme")
	conv, _ := s.Conversations().GetOrCreateProposalThread(ctx, tenantID, "user-1")

	for i := 1; i <= 3; i++ {
		msg, err := s.Conversations().AppendMessage(ctx, conv.ID, tenantID, "user", "hello")
		if err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
		if msg.SeqNum != i {
			t.Errorf("seq = %d, want %d", msg.SeqNum, i)
		}
	}
}

func seedToolCall(t *testing.T, s *Store, tenantID uuid.UUID, key string, status domain.ToolCallStatus) *domain.ToolCall {
	t.Helper()
	ctx := context.Background()
	conv, err := s.Conversations().GetOrCreateProposalThread(ctx, tenantID, "user-1")
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	msg, err := s.Conversations().AppendMessage(ctx, conv.ID, tenantID, "user", "create task: x")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	tc := &domain.ToolCall{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ToolName:       "assistant.create_task",
		ToolCallID:     key,
		InputArguments: json.RawMessage(`{"title":"x"}`),
		Status:         status,
		Record: domain.CallRecord{
			Proposal: domain.ProposalContext{
				TenantID:  tenantID.String(),
				UserID:    "user-1",
				ToolID:    "assistant.create_task",
				RiskLevel: domain.RiskMedium,
			},
		},
	}
	if err := s.ToolCalls().Create(ctx, tc); err != nil {
		t.Fatalf("creating tool call: %v", err)
	}
	return tc
}

func TestToolCallDuplicateKey(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tenantID, _ := s.EnsureTenant(ctx, "Acme")

	first := seedToolCall(t, s, tenantID, "assistant:propose:v1:abc", domain.StatusProposed)

	dup := *first
	dup.ID = uuid.New()
	err := s.ToolCalls().Create(ctx, &dup)
	if !errors.Is(err, assistant.ErrDuplicateToolCall) {
		t.Errorf("err = %v, want ErrDuplicateToolCall", err)
	}

	found, err := s.ToolCalls().FindByToolCallID(ctx, first.ToolCallID)
	if err != nil || found == nil || found.ID != first.ID {
		t.Errorf("FindByToolCallID = %v, %v", found, err)
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tenantID, _ := s.EnsureTenant(ctx, "Acme")

	tc := seedToolCall(t, s, tenantID, "assistant:propose:v1:rt", domain.StatusProposed)

	found, err := s.ToolCalls().FindByID(ctx, tc.ID)
	if err != nil || found == nil {
		t.Fatalf("FindByID: %v, %v", found, err)
	}
	if found.Record.Proposal.TenantID != tenantID.String() {
		t.Errorf("record tenant = %q", found.Record.Proposal.TenantID)
	}
	if string(found.InputArguments) != `{"title":"x"}` {
		t.Errorf("input = %s", found.InputArguments)
	}

	now := time.Now().UTC()
	found.Status = domain.StatusFailed
	found.ErrorMessage = "rejected"
	found.CompletedAt = &now
	found.Record.Approval = &domain.ApprovalRecord{Decision: "rejected", RejectedBy: "user-1", Reason: "rejected"}
	if err := s.ToolCalls().Update(ctx, found); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reread, _ := s.ToolCalls().FindByID(ctx, tc.ID)
	if reread.Status != domain.StatusFailed || reread.ErrorMessage != "rejected" {
		t.Errorf("reread = %s %q", reread.Status, reread.ErrorMessage)
	}
	if reread.Record.Approval == nil || reread.Record.Approval.Decision != "rejected" {
		t.Errorf("approval record = %+v", reread.Record.Approval)
	}
}

func TestTransitionToRunningIsExclusive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tenantID, _ := s.EnsureTenant(ctx, "Acme")

	tc := seedToolCall(t, s, tenantID, "assistant:propose:v1:cas", domain.StatusPending)

	const racers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ToolCalls().TransitionToRunning(ctx, tc.ID, time.Now().UTC())
			if err != nil {
				t.Errorf("TransitionToRunning: %v", err)
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

	found, _ := s.ToolCalls().FindByID(ctx, tc.ID)
	if found.Status != domain.StatusRunning {
		t.Errorf("status = %s, want running", found.Status)
	}
}
