package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/domain"
)

// Compile-time interface check.
var _ assistant.ToolCallStore = (*ToolCallRepository)(nil)

// ToolCallRepository implements assistant.ToolCallStore with PostgreSQL.
type ToolCallRepository struct {
	db *gorm.DB
}

// NewToolCallRepository creates a ToolCallRepository.
func NewToolCallRepository(db *gorm.DB) *ToolCallRepository {
	return &ToolCallRepository{db: db}
}

// Create persists a new tool call. A unique-index violation on the
// idempotency key is translated to assistant.ErrDuplicateToolCall.
func (r *ToolCallRepository) Create(ctx context.Context, tc *domain.ToolCall) error {
	now := time.Now().UTC()
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt = now
	}
	tc.UpdatedAt = now

	model, err := toToolCallModel(tc)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return assistant.ErrDuplicateToolCall
		}
		return fmt.Errorf("creating tool call: %w", err)
	}
	return nil
}

// FindByID returns the tool call, or nil if unknown.
func (r *ToolCallRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ToolCall, error) {
	var model ToolCallModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up tool call: %w", err)
	}
	return toToolCallDomain(&model)
}

// FindByToolCallID looks up by idempotency key; nil if absent.
func (r *ToolCallRepository) FindByToolCallID(ctx context.Context, toolCallID string) (*domain.ToolCall, error) {
	var model ToolCallModel
	err := r.db.WithContext(ctx).First(&model, "tool_call_id = ?", toolCallID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up tool call by key: %w", err)
	}
	return toToolCallDomain(&model)
}

// Update writes status, record, error message, and timestamps.
func (r *ToolCallRepository) Update(ctx context.Context, tc *domain.ToolCall) error {
	tc.UpdatedAt = time.Now().UTC()
	model, err := toToolCallModel(tc)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&ToolCallModel{}).
		Where("id = ?", tc.ID).
		Updates(map[string]any{
			"status":        model.Status,
			"record":        model.Record,
			"error_message": model.ErrorMessage,
			"started_at":    model.StartedAt,
			"completed_at":  model.CompletedAt,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("updating tool call: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("tool call %s not found", tc.ID)
	}
	return nil
}

// TransitionToRunning conditionally moves pending → running. The WHERE
// clause on the current status makes this a compare-and-set: exactly one
// concurrent caller observes RowsAffected == 1.
func (r *ToolCallRepository) TransitionToRunning(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ToolCallModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":     string(domain.StatusRunning),
			"started_at": startedAt,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("transitioning tool call to running: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
