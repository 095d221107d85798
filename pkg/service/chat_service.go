package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/config"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

var ErrEmptyHistory = errors.New("messages must contain at least one user message")

// ModelFactory builds a chat model for one request.
type ModelFactory func(context.Context) (einoModel.BaseChatModel, error)

// ChatService executes one visitor turn end to end: resolve the
// conversation, compose the prompt, stream the completion and persist
// the finished turn.
type ChatService struct {
	db            *gorm.DB
	agents        *AgentService
	conversations *ConversationService
	knowledge     *KnowledgeService
	createModel   ModelFactory
	timeout       time.Duration
	logger        *slog.Logger
}

func NewChatService(database *gorm.DB, cfg *config.AppConfig, agents *AgentService, conversations *ConversationService, knowledge *KnowledgeService, model *ModelService) *ChatService {
	timeout := time.Duration(cfg.ModelTimeoutSeconds()) * time.Second
	return NewChatServiceWithFactory(database, agents, conversations, knowledge, model.CreateChatModel, timeout)
}

// NewChatServiceWithFactory wires an explicit model factory. Tests use
// it to substitute the provider.
func NewChatServiceWithFactory(database *gorm.DB, agents *AgentService, conversations *ConversationService, knowledge *KnowledgeService, factory ModelFactory, timeout time.Duration) *ChatService {
	return &ChatService{
		db:            database,
		agents:        agents,
		conversations: conversations,
		knowledge:     knowledge,
		createModel:   factory,
		timeout:       timeout,
		logger:        utils.GetLogger(),
	}
}

// ChatStream starts a streaming completion for one turn. The returned
// conversation is nil when no agent context resolved (generic persona,
// nothing persisted). Chunks are delivered on the returned channel
// until the stream ends; the channel is then closed. Persistence after
// the stream is best effort and never surfaces to the caller.
func (s *ChatService) ChatStream(ctx context.Context, req *models.ChatRequest) (<-chan models.ChatChunk, *models.Conversation, error) {
	userText := lastUserMessage(req.Messages)
	if userText == "" {
		return nil, nil, ErrEmptyHistory
	}

	// Agent lookup failure of any kind falls back to the generic
	// persona with no persistence.
	var agent *models.Agent
	if req.AgentID != "" {
		found, err := s.agents.Get(req.AgentID)
		if err != nil {
			if !errors.Is(err, ErrAgentNotFound) {
				s.logger.Warn("agent lookup failed, using generic persona", "agent_id", req.AgentID, "error", err)
			}
		} else {
			agent = found
		}
	}

	var conv *models.Conversation
	prompt := DefaultSystemPrompt
	if agent != nil {
		resolved, err := s.conversations.Resolve(agent.ID, req.VisitorID, req.ConversationID)
		if err != nil {
			s.logger.Error("failed to resolve conversation", "agent_id", agent.ID, "error", err)
		} else {
			conv = resolved
		}

		snap, err := s.knowledge.Snapshot(agent.ID)
		if err != nil {
			s.logger.Error("failed to load knowledge snapshot", "agent_id", agent.ID, "error", err)
			snap = &KnowledgeSnapshot{}
		}
		prompt = ComposeSystemPrompt(PromptInput{
			Agent:         agent,
			Links:         snap.Links,
			Documents:     snap.Documents,
			CustomEntries: snap.CustomEntries,
		})

		if conv != nil {
			if err := s.conversations.AppendUserMessage(conv.ID, userText); err != nil {
				s.logger.Error("failed to persist user message", "conversation_id", conv.ID, "error", err)
			}
		}
	}

	modelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	chatModel, err := s.createModel(modelCtx)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	reader, err := chatModel.Stream(modelCtx, buildModelMessages(prompt, req.Messages))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	out := make(chan models.ChatChunk)
	go func() {
		defer close(out)
		defer cancel()
		defer reader.Close()

		var chunks []*schema.Message
		forwarding := true
		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				// Keep whatever was produced so far.
				s.logger.Error("completion stream failed mid-response", "error", err)
				break
			}
			chunks = append(chunks, msg)
			if !forwarding {
				continue
			}
			select {
			case out <- models.ChatChunk{Delta: msg.Content}:
			case <-ctx.Done():
				// Caller is gone; drain the stream so the turn can
				// still be persisted.
				forwarding = false
			}
		}

		if conv == nil || len(chunks) == 0 {
			return
		}
		full, err := schema.ConcatMessages(chunks)
		if err != nil {
			s.logger.Error("failed to assemble assistant message", "conversation_id", conv.ID, "error", err)
			return
		}
		if err := s.conversations.CompleteTurn(conv.ID, full.Content); err != nil {
			s.logger.Error("failed to persist assistant turn", "conversation_id", conv.ID, "error", err)
		}
	}()

	return out, conv, nil
}

func lastUserMessage(history []models.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func buildModelMessages(systemPrompt string, history []models.ChatMessage) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	return msgs
}
