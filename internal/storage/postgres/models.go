package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantModel maps to the "tenants" table.
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	Slug      string    `gorm:"not null;uniqueIndex"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (TenantModel) TableName() string { return "tenants" }

// UserModel maps to the "users" table. ExternalID is the identity supplied
// by the authentication layer and is what request handlers carry around.
type UserModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID string    `gorm:"not null;uniqueIndex"`
	Email      string
	IsAdmin    bool `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (UserModel) TableName() string { return "users" }

// TenantMemberModel maps to the "tenant_members" join table.
type TenantMemberModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"primaryKey"` // External user ID.
	CreatedAt time.Time
}

func (TenantMemberModel) TableName() string { return "tenant_members" }

// ConversationModel maps to the "ai_conversations" table.
type ConversationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    string    `gorm:"not null;index"`
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ConversationModel) TableName() string { return "ai_conversations" }

// MessageModel maps to the "ai_messages" table. SeqNum is unique per
// conversation and allocated transactionally.
type MessageModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_conv_seq"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index"`
	SeqNum         int       `gorm:"not null;uniqueIndex:idx_messages_conv_seq"`
	Role           string    `gorm:"not null"`
	Content        string    `gorm:"type:text"`
	CreatedAt      time.Time
}

func (MessageModel) TableName() string { return "ai_messages" }

// ToolCallModel maps to the "ai_tool_calls" table. ToolCallID carries the
// idempotency key; its unique index is the deduplication guard.
type ToolCallModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index"`
	MessageID      uuid.UUID `gorm:"type:uuid;not null"`
	ToolName       string    `gorm:"not null;index"`
	ToolCallID     string    `gorm:"not null;uniqueIndex"`
	InputArguments string    `gorm:"type:text"`
	Status         string    `gorm:"not null;index"`
	Record         string    `gorm:"type:text"`
	ErrorMessage   string    `gorm:"type:text"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ToolCallModel) TableName() string { return "ai_tool_calls" }
