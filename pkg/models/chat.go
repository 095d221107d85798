// API types for the visitor chat surface
package models

import (
	"github.com/easybot/easybot/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Conversation instead of db.Conversation

type Agent = db.Agent
type KnowledgeLink = db.KnowledgeLink
type KnowledgeDocument = db.KnowledgeDocument
type KnowledgeCustomEntry = db.KnowledgeCustomEntry
type Conversation = db.Conversation
type Message = db.Message
type QuestionCluster = db.QuestionCluster
type ClusteredMessage = db.ClusteredMessage

// Message role aliases
const (
	RoleUser      = db.RoleUser
	RoleAssistant = db.RoleAssistant
	RoleSystem    = db.RoleSystem
)

// ========== Chat API types ==========

// ChatMessage is one message in the request history sent by the widget.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat. AgentID is optional;
// without it (or when the agent cannot be found) the generic fallback
// persona answers and nothing is persisted.
type ChatRequest struct {
	AgentID        string        `json:"agent_id,omitempty"`
	VisitorID      string        `json:"visitor_id"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []ChatMessage `json:"messages"`
}

// ChatChunk is a single streamed delta sent to the widget as an SSE
// data event. End of stream is signalled by the literal [DONE] frame,
// and the conversation id travels in the X-Conversation-Id header.
type ChatChunk struct {
	Delta string `json:"delta"`
}

// RateRequest is the body of POST /api/v1/conversations/:id/rate.
// Rating is a pointer so a missing field is distinguishable from 0.
type RateRequest struct {
	Rating *int `json:"rating"`
}

// LatestConversationResponse is the body of GET /api/v1/conversations/latest.
type LatestConversationResponse struct {
	ConversationID *string `json:"conversation_id"`
}
