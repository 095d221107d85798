// Database models for visitor conversations
package db

import "time"

// Conversation represents a chat session between one agent and one
// anonymous visitor. Created lazily on the visitor's first message
// and reused for the rest of the session. MessageCount grows by 2 per
// completed turn; EndedAt exists in the schema but is not driven by
// core logic.
type Conversation struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	AgentID      string     `json:"agent_id" gorm:"index;size:36;not null"`
	VisitorID    string     `json:"visitor_id" gorm:"index;size:64;not null"`
	MessageCount int        `json:"message_count" gorm:"default:0"`
	Rating       *int       `json:"rating,omitempty"`
	RatedAt      *time.Time `json:"rated_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
