package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/blob"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

func newTestChatService(t *testing.T, gdb *gorm.DB, model *stubChatModel) *ChatService {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	return &ChatService{
		db:            gdb,
		agents:        NewAgentService(gdb),
		conversations: NewConversationService(gdb),
		knowledge:     NewKnowledgeService(gdb, store),
		createModel:   stubModelFactory(model),
		timeout:       5 * time.Second,
		logger:        utils.GetLogger(),
	}
}

func seedAgent(t *testing.T, gdb *gorm.DB) *models.Agent {
	t.Helper()
	svc := NewAgentService(gdb)
	agent, err := svc.Create(&models.CreateAgentRequest{
		UserID:       "user-1",
		BusinessName: "Testfirma ApS",
		AgentName:    "Tessa",
		Scopes:       []string{"support"},
		Tone:         "direct",
	})
	if err != nil {
		t.Fatalf("failed to seed agent: %v", err)
	}
	return agent
}

func collect(t *testing.T, ch <-chan models.ChatChunk) string {
	t.Helper()
	var b strings.Builder
	for chunk := range ch {
		b.WriteString(chunk.Delta)
	}
	return b.String()
}

func TestChatStreamGenericPersona(t *testing.T) {
	gdb := openTestDB(t)
	svc := newTestChatService(t, gdb, &stubChatModel{chunks: []string{"Hej", "!"}})

	ch, conv, err := svc.ChatStream(context.Background(), &models.ChatRequest{
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Hej"}},
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if conv != nil {
		t.Error("expected no conversation without an agent")
	}
	if got := collect(t, ch); got != "Hej!" {
		t.Errorf("expected assembled reply, got %q", got)
	}

	var count int64
	gdb.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no persisted messages, got %d", count)
	}
}

func TestChatStreamUnknownAgentFallsBack(t *testing.T) {
	gdb := openTestDB(t)
	svc := newTestChatService(t, gdb, &stubChatModel{reply: "Hej"})

	ch, conv, err := svc.ChatStream(context.Background(), &models.ChatRequest{
		AgentID:   "no-such-agent",
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Hej"}},
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if conv != nil {
		t.Error("expected no conversation for unknown agent")
	}
	collect(t, ch)
}

func TestChatStreamPersistsTurn(t *testing.T) {
	gdb := openTestDB(t)
	agent := seedAgent(t, gdb)
	svc := newTestChatService(t, gdb, &stubChatModel{chunks: []string{"Prøv ", "at ", "genstarte."}})

	ch, conv, err := svc.ChatStream(context.Background(), &models.ChatRequest{
		AgentID:   agent.ID,
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Min enhed virker ikke"}},
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a resolved conversation")
	}
	if got := collect(t, ch); got != "Prøv at genstarte." {
		t.Errorf("unexpected assembled reply: %q", got)
	}

	var msgs []models.Message
	if err := gdb.Where("conversation_id = ?", conv.ID).Order("created_at ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "Prøv at genstarte." {
		t.Errorf("unexpected assistant content: %q", msgs[1].Content)
	}

	var got models.Conversation
	if err := gdb.First(&got, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("failed to reload conversation: %v", err)
	}
	if got.MessageCount != 2 {
		t.Errorf("expected message_count 2, got %d", got.MessageCount)
	}
}

func TestChatStreamCancelledCallerStillPersists(t *testing.T) {
	gdb := openTestDB(t)
	agent := seedAgent(t, gdb)
	svc := newTestChatService(t, gdb, &stubChatModel{chunks: []string{"Del ", "et ", "svar."}})

	ctx, cancel := context.WithCancel(context.Background())
	ch, conv, err := svc.ChatStream(ctx, &models.ChatRequest{
		AgentID:   agent.ID,
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Hej"}},
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a resolved conversation")
	}

	// Disconnect after the first chunk. The channel still closes once
	// the stream is drained, and draining finishes the turn.
	<-ch
	cancel()
	for range ch {
	}

	var msgs []models.Message
	if err := gdb.Where("conversation_id = ? AND role = ?", conv.ID, models.RoleAssistant).Find(&msgs).Error; err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 assistant message, got %d", len(msgs))
	}
	if msgs[0].Content != "Del et svar." {
		t.Errorf("expected the full assembled reply persisted, got %q", msgs[0].Content)
	}

	var got models.Conversation
	if err := gdb.First(&got, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("failed to reload conversation: %v", err)
	}
	if got.MessageCount != 2 {
		t.Errorf("expected message_count 2, got %d", got.MessageCount)
	}
}

func TestChatStreamPersistenceFailureStaysSilent(t *testing.T) {
	gdb := openTestDB(t)
	agent := seedAgent(t, gdb)
	svc := newTestChatService(t, gdb, &stubChatModel{chunks: []string{"Hej", "!"}})

	// Message writes fail for the whole turn; the visitor must still
	// receive the complete stream.
	if err := gdb.Migrator().DropTable(&models.Message{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	ch, conv, err := svc.ChatStream(context.Background(), &models.ChatRequest{
		AgentID:   agent.ID,
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Hej"}},
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a resolved conversation")
	}
	if got := collect(t, ch); got != "Hej!" {
		t.Errorf("expected the full reply despite persistence failure, got %q", got)
	}

	var got models.Conversation
	if err := gdb.First(&got, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("failed to reload conversation: %v", err)
	}
	if got.MessageCount != 0 {
		t.Errorf("expected message_count untouched, got %d", got.MessageCount)
	}
}

func TestChatStreamReusesConversation(t *testing.T) {
	gdb := openTestDB(t)
	agent := seedAgent(t, gdb)
	svc := newTestChatService(t, gdb, &stubChatModel{reply: "Svar"})

	req := &models.ChatRequest{
		AgentID:   agent.ID,
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Hej"}},
	}
	ch, first, err := svc.ChatStream(context.Background(), req)
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	collect(t, ch)

	ch, second, err := svc.ChatStream(context.Background(), req)
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	collect(t, ch)

	if first.ID != second.ID {
		t.Errorf("expected conversation reuse, got %s and %s", first.ID, second.ID)
	}
}

func TestChatStreamStartFailure(t *testing.T) {
	gdb := openTestDB(t)
	svc := newTestChatService(t, gdb, &stubChatModel{err: errors.New("provider down")})

	_, _, err := svc.ChatStream(context.Background(), &models.ChatRequest{
		VisitorID: "visitor-1",
		Messages:  []models.ChatMessage{{Role: "user", Content: "Hej"}},
	})
	if err == nil {
		t.Fatal("expected error when the stream cannot start")
	}
}

func TestChatStreamRejectsEmptyHistory(t *testing.T) {
	gdb := openTestDB(t)
	svc := newTestChatService(t, gdb, &stubChatModel{reply: "Svar"})

	_, _, err := svc.ChatStream(context.Background(), &models.ChatRequest{VisitorID: "visitor-1"})
	if !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("expected ErrEmptyHistory, got %v", err)
	}
}
