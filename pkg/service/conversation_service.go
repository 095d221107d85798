package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRating        = errors.New("rating must be an integer between 1 and 5")
)

// ConversationService resolves conversations per (agent, visitor) and
// persists message turns.
type ConversationService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{
		db:     db,
		logger: utils.GetLogger(),
	}
}

// Resolve finds the conversation for a visitor session, in order:
// explicit client-supplied id, then the most recent conversation for
// (agentID, visitorID), then a newly created row.
func (s *ConversationService) Resolve(agentID, visitorID, conversationID string) (*models.Conversation, error) {
	if conversationID != "" {
		var conv models.Conversation
		err := s.db.Where("id = ?", conversationID).First(&conv).Error
		if err == nil {
			return &conv, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}
		// Unknown id supplied by the client, fall through to reuse/create.
	}

	var conv models.Conversation
	err := s.db.Where("agent_id = ? AND visitor_id = ?", agentID, visitorID).
		Order("created_at DESC").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conv = models.Conversation{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		VisitorID: visitorID,
	}
	if err := s.db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// LatestFor returns the id of the most recent conversation for
// (agentID, visitorID), or nil when the visitor has none.
func (s *ConversationService) LatestFor(agentID, visitorID string) (*string, error) {
	var conv models.Conversation
	err := s.db.Where("agent_id = ? AND visitor_id = ?", agentID, visitorID).
		Order("created_at DESC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}
	return &conv.ID, nil
}

// AppendUserMessage persists the visitor's message for a turn.
func (s *ConversationService) AppendUserMessage(conversationID, content string) error {
	msg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        content,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to persist user message: %w", err)
	}
	return nil
}

// CompleteTurn persists the assembled assistant message and bumps the
// conversation's message count by 2 for the finished turn.
func (s *ConversationService) CompleteTurn(conversationID, assistantText string) error {
	msg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantText,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to persist assistant message: %w", err)
	}
	err := s.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("message_count", gorm.Expr("message_count + 2")).Error
	if err != nil {
		return fmt.Errorf("failed to update message count: %w", err)
	}
	return nil
}

// Rate records a visitor's 1-5 rating. Re-rating overwrites the
// previous value.
func (s *ConversationService) Rate(conversationID string, rating *int) error {
	if rating == nil || *rating < 1 || *rating > 5 {
		return ErrInvalidRating
	}
	now := time.Now()
	result := s.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"rating":   *rating,
			"rated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to rate conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}
