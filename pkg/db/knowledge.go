// Database models for the per-agent knowledge base
package db

import "time"

// KnowledgeLink is a labelled URL the agent can refer visitors to.
type KnowledgeLink struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	AgentID   string    `json:"agent_id" gorm:"index;size:36;not null"`
	Label     string    `json:"label" gorm:"size:200;not null"`
	URL       string    `json:"url" gorm:"size:2000;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (KnowledgeLink) TableName() string {
	return "knowledge_links"
}

// KnowledgeDocument is an uploaded file whose extracted summary feeds
// the system prompt. A document is prompt-eligible only once Summary
// is non-nil (ingestion completed).
type KnowledgeDocument struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	AgentID     string    `json:"agent_id" gorm:"index;size:36;not null"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	FileType    string    `json:"file_type" gorm:"size:10"` // PDF, TXT, DOC, DOCX
	FileSize    int64     `json:"file_size"`
	StoragePath string    `json:"storage_path" gorm:"size:500;not null"`
	Summary     *string   `json:"summary,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

// KnowledgeCustomEntry is a free-text knowledge entry written by the
// agent owner.
type KnowledgeCustomEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	AgentID   string    `json:"agent_id" gorm:"index;size:36;not null"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (KnowledgeCustomEntry) TableName() string {
	return "knowledge_custom"
}
