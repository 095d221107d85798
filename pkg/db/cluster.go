// Database models for question clustering
package db

import "time"

// QuestionCluster groups semantically similar visitor questions for
// an agent. Grows by merge (count increment) or creation; never
// shrinks.
type QuestionCluster struct {
	ID                     string    `json:"id" gorm:"primaryKey;size:36"`
	AgentID                string    `json:"agent_id" gorm:"index;size:36;not null"`
	RepresentativeQuestion string    `json:"representative_question" gorm:"type:text;not null"`
	QuestionCount          int       `json:"question_count" gorm:"default:0"`
	LastAsked              time.Time `json:"last_asked" gorm:"index"`
	CreatedAt              time.Time `json:"created_at"`
}

func (QuestionCluster) TableName() string {
	return "question_clusters"
}

// ClusteredMessage links a message to the cluster it was assigned to.
// The unique message id doubles as the exclusion filter that keeps a
// message from ever being clustered twice.
type ClusteredMessage struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex;size:36;not null"`
	ClusterID string    `json:"cluster_id" gorm:"index;size:36;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (ClusteredMessage) TableName() string {
	return "clustered_messages"
}
