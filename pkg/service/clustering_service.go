package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/config"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

const (
	clusterBatchSize = 50

	// Minimum cosine similarity for the embedding matcher to accept
	// an existing cluster.
	matchSimilarityThreshold = 0.82
)

// ClusterMatcher decides whether a new representative question belongs
// to one of an agent's existing clusters. It returns the index into
// existing, or -1 for no match.
type ClusterMatcher interface {
	Match(ctx context.Context, candidate string, existing []string) (int, error)
}

// questionGroup is one LLM-produced group of near-duplicate questions.
type questionGroup struct {
	RepresentativeQuestion string   `json:"representative_question"`
	SimilarQuestions       []string `json:"similar_questions"`
}

// ClusteringService incrementally groups visitor questions into
// persistent clusters.
type ClusteringService struct {
	db          *gorm.DB
	createModel func(context.Context) (einoModel.BaseChatModel, error)
	matcher     ClusterMatcher
	logger      *slog.Logger
}

func NewClusteringService(database *gorm.DB, cfg *config.AppConfig, model *ModelService) *ClusteringService {
	svc := &ClusteringService{
		db:          database,
		createModel: model.CreateChatModel,
		logger:      utils.GetLogger(),
	}
	if cfg.ClusterMatcher() == "embedding" {
		matcher, err := NewEmbeddingMatcher(cfg)
		if err != nil {
			svc.logger.Warn("failed to create embedding matcher, falling back to llm", "error", err)
		} else {
			svc.matcher = matcher
		}
	}
	if svc.matcher == nil {
		svc.matcher = &llmMatcher{createModel: model.CreateChatModel, logger: svc.logger}
	}
	return svc
}

// Run processes one batch of unclustered visitor questions for an
// agent. Already-linked messages are always excluded, so a message is
// never counted twice.
func (s *ClusteringService) Run(ctx context.Context, agentID string) (*models.ClusterResponse, error) {
	var msgs []models.Message
	err := s.db.
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.role = ? AND conversations.agent_id = ?", models.RoleUser, agentID).
		Where("messages.id NOT IN (SELECT message_id FROM clustered_messages)").
		Limit(clusterBatchSize).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select unclustered messages: %w", err)
	}
	if len(msgs) == 0 {
		return &models.ClusterResponse{Success: true, Message: "No messages to cluster"}, nil
	}

	groups, err := s.groupQuestions(ctx, msgs)
	if err != nil {
		return nil, err
	}

	byContent := make(map[string][]string, len(msgs))
	for _, m := range msgs {
		byContent[m.Content] = append(byContent[m.Content], m.ID)
	}

	clustered := 0
	merged := 0
	for _, group := range groups {
		n, err := s.mergeGroup(ctx, agentID, group, byContent)
		if err != nil {
			s.logger.Error("failed to merge question group", "agent_id", agentID, "error", err)
			continue
		}
		clustered += n
		merged++
	}

	return &models.ClusterResponse{
		Success:   true,
		Message:   fmt.Sprintf("Successfully clustered %d messages into %d clusters", clustered, merged),
		Clustered: clustered,
		Clusters:  merged,
	}, nil
}

// groupQuestions asks the model to partition the batch into groups of
// near-duplicate questions.
func (s *ClusteringService) groupQuestions(ctx context.Context, msgs []models.Message) ([]questionGroup, error) {
	var sb strings.Builder
	for i, m := range msgs {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, m.Content)
	}
	prompt := fmt.Sprintf(`Analyze these customer questions and group similar ones together.
Create clusters where questions are asking about the same topic or information.
For each cluster, select the clearest question as the representative question.

Questions:
%s
Return JSON only, in this shape:
{"clusters": [{"representative_question": "...", "similar_questions": ["...", "..."]}]}`, sb.String())

	chatModel, err := s.createModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("failed to group questions: %w", err)
	}

	content := strings.TrimSpace(resp.Content)
	if idx := strings.Index(content, "{"); idx >= 0 {
		content = content[idx:]
	}
	if idx := strings.LastIndex(content, "}"); idx >= 0 {
		content = content[:idx+1]
	}

	var parsed struct {
		Clusters []questionGroup `json:"clusters"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse clustering response: %w", err)
	}

	var valid []questionGroup
	for _, g := range parsed.Clusters {
		if g.RepresentativeQuestion == "" || len(g.SimilarQuestions) == 0 {
			continue
		}
		valid = append(valid, g)
	}
	return valid, nil
}

// mergeGroup merges one group into the agent's existing clusters, or
// creates a new cluster. A failed match check degrades to "no match"
// so one bad classification cannot block the rest of the batch.
func (s *ClusteringService) mergeGroup(ctx context.Context, agentID string, group questionGroup, byContent map[string][]string) (int, error) {
	var existing []models.QuestionCluster
	if err := s.db.Where("agent_id = ?", agentID).Order("created_at ASC").Find(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to load existing clusters: %w", err)
	}

	matchIdx := -1
	if len(existing) > 0 {
		reps := make([]string, len(existing))
		for i, c := range existing {
			reps[i] = c.RepresentativeQuestion
		}
		idx, err := s.matcher.Match(ctx, group.RepresentativeQuestion, reps)
		if err != nil {
			s.logger.Warn("cluster match check failed, treating as new cluster", "error", err)
		} else if idx >= 0 && idx < len(existing) {
			matchIdx = idx
		}
	}

	now := time.Now()
	var clusterID string
	if matchIdx >= 0 {
		clusterID = existing[matchIdx].ID
		err := s.db.Model(&models.QuestionCluster{}).
			Where("id = ?", clusterID).
			Updates(map[string]interface{}{
				"question_count": gorm.Expr("question_count + ?", len(group.SimilarQuestions)),
				"last_asked":     now,
			}).Error
		if err != nil {
			return 0, fmt.Errorf("failed to update cluster: %w", err)
		}
	} else {
		cluster := models.QuestionCluster{
			ID:                     uuid.New().String(),
			AgentID:                agentID,
			RepresentativeQuestion: group.RepresentativeQuestion,
			QuestionCount:          len(group.SimilarQuestions),
			LastAsked:              now,
		}
		if err := s.db.Create(&cluster).Error; err != nil {
			return 0, fmt.Errorf("failed to create cluster: %w", err)
		}
		clusterID = cluster.ID
	}

	linked := 0
	for _, question := range group.SimilarQuestions {
		ids := byContent[question]
		if len(ids) == 0 {
			continue
		}
		messageID := ids[0]
		byContent[question] = ids[1:]
		link := models.ClusteredMessage{
			ID:        uuid.New().String(),
			MessageID: messageID,
			ClusterID: clusterID,
		}
		if err := s.db.Create(&link).Error; err != nil {
			// The count bump above already happened; the message is
			// simply lost to future batches' exclusion filter.
			s.logger.Warn("failed to link clustered message", "message_id", messageID, "error", err)
			continue
		}
		linked++
	}
	return linked, nil
}

// llmMatcher asks the model whether a candidate question matches an
// existing cluster by topic or intent.
type llmMatcher struct {
	createModel func(context.Context) (einoModel.BaseChatModel, error)
	logger      *slog.Logger
}

func (m *llmMatcher) Match(ctx context.Context, candidate string, existing []string) (int, error) {
	var sb strings.Builder
	for i, rep := range existing {
		fmt.Fprintf(&sb, "%d. %s\n", i, rep)
	}
	prompt := fmt.Sprintf(`Does this question match any of the existing clusters?
New question: "%s"

Existing clusters:
%s
If it matches one of the existing clusters (same topic/intent), return the index number.
If it doesn't match any, return null.

Return JSON only: {"matchingIndex": <number or null>}`, candidate, sb.String())

	chatModel, err := m.createModel(ctx)
	if err != nil {
		return -1, err
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return -1, err
	}

	content := strings.TrimSpace(resp.Content)
	if idx := strings.Index(content, "{"); idx >= 0 {
		content = content[idx:]
	}
	if idx := strings.LastIndex(content, "}"); idx >= 0 {
		content = content[:idx+1]
	}

	var parsed struct {
		MatchingIndex *int `json:"matchingIndex"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return -1, fmt.Errorf("failed to parse match response: %w", err)
	}
	if parsed.MatchingIndex == nil {
		return -1, nil
	}
	return *parsed.MatchingIndex, nil
}

// EmbeddingMatcher is a deterministic alternative to the LLM matcher
// built on cosine similarity over question embeddings.
type EmbeddingMatcher struct {
	embedFunc chromem.EmbeddingFunc
	threshold float32
}

func NewEmbeddingMatcher(cfg *config.AppConfig) (*EmbeddingMatcher, error) {
	embedder, err := openaiEmbed.NewEmbedder(context.Background(), &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.EmbeddingAPIKey(),
		BaseURL: cfg.EmbeddingBaseURL(),
		Model:   cfg.EmbeddingModel(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		embeddings, err := embedder.EmbedStrings(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		result := make([]float32, len(embeddings[0]))
		for i, v := range embeddings[0] {
			result[i] = float32(v)
		}
		return result, nil
	}
	return &EmbeddingMatcher{embedFunc: embedFunc, threshold: matchSimilarityThreshold}, nil
}

func (m *EmbeddingMatcher) Match(ctx context.Context, candidate string, existing []string) (int, error) {
	if len(existing) == 0 {
		return -1, nil
	}
	vdb := chromem.NewDB()
	collection, err := vdb.CreateCollection("clusters", nil, m.embedFunc)
	if err != nil {
		return -1, fmt.Errorf("failed to create collection: %w", err)
	}
	docs := make([]chromem.Document, 0, len(existing))
	for i, rep := range existing {
		docs = append(docs, chromem.Document{ID: fmt.Sprintf("%d", i), Content: rep})
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return -1, fmt.Errorf("failed to index clusters: %w", err)
	}
	results, err := collection.Query(ctx, candidate, 1, nil, nil)
	if err != nil {
		return -1, fmt.Errorf("failed to query clusters: %w", err)
	}
	if len(results) == 0 || results[0].Similarity < m.threshold {
		return -1, nil
	}
	var idx int
	if _, err := fmt.Sscanf(results[0].ID, "%d", &idx); err != nil {
		return -1, nil
	}
	return idx, nil
}
