package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

type stubMatcher struct {
	index int
	err   error
	calls int
}

func (m *stubMatcher) Match(ctx context.Context, candidate string, existing []string) (int, error) {
	m.calls++
	return m.index, m.err
}

func newTestClusteringService(t *testing.T, gdb *gorm.DB, model *stubChatModel, matcher ClusterMatcher) *ClusteringService {
	t.Helper()
	return &ClusteringService{
		db:          gdb,
		createModel: stubModelFactory(model),
		matcher:     matcher,
		logger:      utils.GetLogger(),
	}
}

func seedUserMessages(t *testing.T, gdb *gorm.DB, agentID string, contents ...string) {
	t.Helper()
	conv := models.Conversation{ID: uuid.New().String(), AgentID: agentID, VisitorID: "visitor-1"}
	if err := gdb.Create(&conv).Error; err != nil {
		t.Fatalf("failed to seed conversation: %v", err)
	}
	for _, c := range contents {
		msg := models.Message{ID: uuid.New().String(), ConversationID: conv.ID, Role: models.RoleUser, Content: c}
		if err := gdb.Create(&msg).Error; err != nil {
			t.Fatalf("failed to seed message: %v", err)
		}
	}
}

const groupingReply = `{"clusters": [
  {"representative_question": "Hvad koster fragt?", "similar_questions": ["Hvad koster fragt?", "Hvor dyr er levering?"]},
  {"representative_question": "Hvordan opsiger jeg?", "similar_questions": ["Hvordan opsiger jeg?"]}
]}`

func TestClusteringNoMessagesIsNoOp(t *testing.T) {
	gdb := openTestDB(t)
	matcher := &stubMatcher{index: -1}
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: groupingReply}, matcher)

	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !resp.Success || resp.Clustered != 0 || resp.Clusters != 0 {
		t.Errorf("expected no-op success, got %+v", resp)
	}
	if matcher.calls != 0 {
		t.Error("matcher must not be consulted without messages")
	}
}

func TestClusteringCreatesClusters(t *testing.T) {
	gdb := openTestDB(t)
	seedUserMessages(t, gdb, "agent-1", "Hvad koster fragt?", "Hvor dyr er levering?", "Hvordan opsiger jeg?")
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: groupingReply}, &stubMatcher{index: -1})

	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Clustered != 3 || resp.Clusters != 2 {
		t.Errorf("expected 3 messages in 2 clusters, got %+v", resp)
	}

	var clusters []models.QuestionCluster
	if err := gdb.Where("agent_id = ?", "agent-1").Find(&clusters).Error; err != nil {
		t.Fatalf("failed to load clusters: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	total := 0
	for _, c := range clusters {
		total += c.QuestionCount
		if c.LastAsked.IsZero() {
			t.Error("expected last_asked to be set")
		}
	}
	if total != 3 {
		t.Errorf("expected total question count 3, got %d", total)
	}

	var links int64
	gdb.Model(&models.ClusteredMessage{}).Count(&links)
	if links != 3 {
		t.Errorf("expected 3 link rows, got %d", links)
	}
}

func TestClusteringMergesIntoExisting(t *testing.T) {
	gdb := openTestDB(t)
	existing := models.QuestionCluster{
		ID: uuid.New().String(), AgentID: "agent-1",
		RepresentativeQuestion: "Hvad koster levering?", QuestionCount: 5,
	}
	if err := gdb.Create(&existing).Error; err != nil {
		t.Fatalf("failed to seed cluster: %v", err)
	}
	seedUserMessages(t, gdb, "agent-1", "Hvad koster fragt?", "Hvor dyr er levering?")

	reply := `{"clusters": [{"representative_question": "Hvad koster fragt?", "similar_questions": ["Hvad koster fragt?", "Hvor dyr er levering?"]}]}`
	matcher := &stubMatcher{index: 0}
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: reply}, matcher)

	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Clustered != 2 || resp.Clusters != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if matcher.calls != 1 {
		t.Errorf("expected 1 match check, got %d", matcher.calls)
	}

	var got models.QuestionCluster
	if err := gdb.First(&got, "id = ?", existing.ID).Error; err != nil {
		t.Fatalf("failed to reload cluster: %v", err)
	}
	if got.QuestionCount != 7 {
		t.Errorf("expected count 7, got %d", got.QuestionCount)
	}

	var clusterCount int64
	gdb.Model(&models.QuestionCluster{}).Count(&clusterCount)
	if clusterCount != 1 {
		t.Errorf("expected no new cluster, got %d", clusterCount)
	}
}

func TestClusteringMatcherFailureCreatesNewCluster(t *testing.T) {
	gdb := openTestDB(t)
	existing := models.QuestionCluster{
		ID: uuid.New().String(), AgentID: "agent-1",
		RepresentativeQuestion: "Hvad koster levering?", QuestionCount: 5,
	}
	if err := gdb.Create(&existing).Error; err != nil {
		t.Fatalf("failed to seed cluster: %v", err)
	}
	seedUserMessages(t, gdb, "agent-1", "Hvordan opsiger jeg?")

	reply := `{"clusters": [{"representative_question": "Hvordan opsiger jeg?", "similar_questions": ["Hvordan opsiger jeg?"]}]}`
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: reply}, &stubMatcher{err: errors.New("provider down")})

	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Clustered != 1 {
		t.Errorf("expected 1 clustered message, got %+v", resp)
	}

	var clusterCount int64
	gdb.Model(&models.QuestionCluster{}).Count(&clusterCount)
	if clusterCount != 2 {
		t.Errorf("expected a new cluster despite match failure, got %d clusters", clusterCount)
	}
}

func TestClusteringExcludesLinkedMessages(t *testing.T) {
	gdb := openTestDB(t)
	seedUserMessages(t, gdb, "agent-1", "Hvad koster fragt?", "Hvor dyr er levering?", "Hvordan opsiger jeg?")
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: groupingReply}, &stubMatcher{index: -1})

	if _, err := svc.Run(context.Background(), "agent-1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	var totalBefore int
	gdb.Model(&models.QuestionCluster{}).Select("COALESCE(SUM(question_count), 0)").Scan(&totalBefore)

	// Everything is linked now; the second run must be a no-op.
	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if resp.Clustered != 0 || resp.Clusters != 0 {
		t.Errorf("expected no-op, got %+v", resp)
	}

	var totalAfter int
	gdb.Model(&models.QuestionCluster{}).Select("COALESCE(SUM(question_count), 0)").Scan(&totalAfter)
	if totalAfter != totalBefore {
		t.Errorf("counts changed on no-op run: %d -> %d", totalBefore, totalAfter)
	}
}

func TestClusteringReportsOnlyMergedGroups(t *testing.T) {
	gdb := openTestDB(t)
	seedUserMessages(t, gdb, "agent-1", "Hvad koster fragt?", "Hvor dyr er levering?", "Hvordan opsiger jeg?")
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: groupingReply}, &stubMatcher{index: -1})

	// Every merge fails because the cluster table is gone; the response
	// must not count those groups.
	if err := gdb.Migrator().DropTable(&models.QuestionCluster{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
	if resp.Clustered != 0 || resp.Clusters != 0 {
		t.Errorf("expected zero clustered and zero clusters, got %+v", resp)
	}
}

func TestClusteringScopedToAgent(t *testing.T) {
	gdb := openTestDB(t)
	seedUserMessages(t, gdb, "agent-2", "Spørgsmål til en anden agent?")
	svc := newTestClusteringService(t, gdb, &stubChatModel{reply: groupingReply}, &stubMatcher{index: -1})

	resp, err := svc.Run(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Clustered != 0 {
		t.Errorf("expected no messages for agent-1, got %+v", resp)
	}
}

func TestLLMMatcherParsesIndex(t *testing.T) {
	m := &llmMatcher{createModel: stubModelFactory(&stubChatModel{reply: `{"matchingIndex": 2}`}), logger: utils.GetLogger()}
	idx, err := m.Match(context.Background(), "Hvad koster fragt?", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if idx != 2 {
		t.Errorf("expected index 2, got %d", idx)
	}

	m = &llmMatcher{createModel: stubModelFactory(&stubChatModel{reply: `{"matchingIndex": null}`}), logger: utils.GetLogger()}
	idx, err = m.Match(context.Background(), "Hvad koster fragt?", []string{"a"})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if idx != -1 {
		t.Errorf("expected -1 for null, got %d", idx)
	}

	m = &llmMatcher{createModel: stubModelFactory(&stubChatModel{reply: "not json"}), logger: utils.GetLogger()}
	if _, err = m.Match(context.Background(), "x", []string{"a"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestEmbeddingMatcherThreshold(t *testing.T) {
	// Deterministic embeddings: each known text maps to a fixed axis.
	vectors := map[string][]float32{
		"Hvad koster fragt?":    {1, 0, 0},
		"Hvad koster levering?": {1, 0, 0},
		"Hvordan opsiger jeg?":  {0, 1, 0},
		"Helt andet emne":       {0, 0, 1},
	}
	m := &EmbeddingMatcher{
		threshold: matchSimilarityThreshold,
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			v, ok := vectors[text]
			if !ok {
				return []float32{0, 0, 0.001}, nil
			}
			return v, nil
		},
	}

	idx, err := m.Match(context.Background(), "Hvad koster fragt?", []string{"Hvordan opsiger jeg?", "Hvad koster levering?"})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}

	idx, err = m.Match(context.Background(), "Helt andet emne", []string{"Hvad koster levering?", "Hvordan opsiger jeg?"})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if idx != -1 {
		t.Errorf("expected -1 below threshold, got %d", idx)
	}

	idx, err = m.Match(context.Background(), "Hvad koster fragt?", nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if idx != -1 {
		t.Errorf("expected -1 for empty existing, got %d", idx)
	}
}
