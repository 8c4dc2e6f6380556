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
var _ assistant.ConversationStore = (*ConversationRepository)(nil)

// ConversationRepository implements assistant.ConversationStore with
// PostgreSQL.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a ConversationRepository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreateProposalThread returns the user's assistant-proposals
// conversation within the tenant, creating it on first use.
func (r *ConversationRepository) GetOrCreateProposalThread(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.Conversation, error) {
	var existing ConversationModel
	err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("user_id = ? AND title = ?", userID, assistant.ProposalThreadTitle).
		First(&existing).Error

	if err == nil {
		// Touch updated_at.
		r.db.WithContext(ctx).Model(&existing).Update("updated_at", time.Now().UTC())
		return toConversationDomain(&existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	now := time.Now().UTC()
	model := ConversationModel{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Title:     assistant.ProposalThreadTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return toConversationDomain(&model), nil
}

// FindForUser returns the conversation only if it is owned by the user.
func (r *ConversationRepository) FindForUser(ctx context.Context, convID uuid.UUID, userID string) (*domain.Conversation, error) {
	var model ConversationModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", convID, userID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}
	return toConversationDomain(&model), nil
}

// AppendMessage atomically appends a message with the next sequence number.
// The transaction re-reads MAX(seq_num) so concurrent appends never collide;
// the unique (conversation_id, seq_num) index backs this up.
func (r *ConversationRepository) AppendMessage(ctx context.Context, convID, tenantID uuid.UUID, role, content string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		err := tx.Model(&MessageModel{}).
			Where("conversation_id = ?", convID).
			Select("COALESCE(MAX(seq_num), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return fmt.Errorf("getting max seq_num: %w", err)
		}

		model = MessageModel{
			ID:             uuid.New(),
			ConversationID: convID,
			TenantID:       tenantID,
			SeqNum:         maxSeq + 1,
			Role:           role,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toMessageDomain(&model), nil
}
