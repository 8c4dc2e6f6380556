package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jkaninda/aiom/internal/domain"
)

func toTenantDomain(m *TenantModel) *domain.Tenant {
	return &domain.Tenant{
		ID:        m.ID,
		Name:      m.Name,
		Slug:      m.Slug,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}

func toConversationDomain(m *ConversationModel) *domain.Conversation {
	return &domain.Conversation{
		ID:        m.ID,
		TenantID:  m.TenantID,
		UserID:    m.UserID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toMessageDomain(m *MessageModel) *domain.Message {
	return &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		TenantID:       m.TenantID,
		SeqNum:         m.SeqNum,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func toToolCallModel(tc *domain.ToolCall) (*ToolCallModel, error) {
	record, err := json.Marshal(tc.Record)
	if err != nil {
		return nil, fmt.Errorf("encoding call record: %w", err)
	}
	return &ToolCallModel{
		ID:             tc.ID,
		ConversationID: tc.ConversationID,
		MessageID:      tc.MessageID,
		ToolName:       tc.ToolName,
		ToolCallID:     tc.ToolCallID,
		InputArguments: string(tc.InputArguments),
		Status:         string(tc.Status),
		Record:         string(record),
		ErrorMessage:   tc.ErrorMessage,
		StartedAt:      tc.StartedAt,
		CompletedAt:    tc.CompletedAt,
		CreatedAt:      tc.CreatedAt,
		UpdatedAt:      tc.UpdatedAt,
	}, nil
}

func toToolCallDomain(m *ToolCallModel) (*domain.ToolCall, error) {
	var record domain.CallRecord
	if m.Record != "" {
		if err := json.Unmarshal([]byte(m.Record), &record); err != nil {
			return nil, fmt.Errorf("decoding call record %s: %w", m.ID, err)
		}
	}
	return &domain.ToolCall{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		MessageID:      m.MessageID,
		ToolName:       m.ToolName,
		ToolCallID:     m.ToolCallID,
		InputArguments: json.RawMessage(m.InputArguments),
		Status:         domain.ToolCallStatus(m.Status),
		Record:         record,
		ErrorMessage:   m.ErrorMessage,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}
