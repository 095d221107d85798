// Database model for chat messages
package db

import "time"

// Message is a single turn half in a conversation. Append-only: a
// completed turn writes one user row before the model call and one
// assistant row after the stream finishes. Assistant content is
// markdown-flavored plain text.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"index;size:36;not null"`
	Role           string    `json:"role" gorm:"size:20;not null"` // user, assistant
	Content        string    `json:"content" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
