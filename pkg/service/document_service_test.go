package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/easybot/easybot/pkg/blob"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

func newTestDocumentService(t *testing.T, model *stubChatModel) (*DocumentService, *blob.LocalStore) {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	svc := &DocumentService{
		db:          openTestDB(t),
		store:       store,
		createModel: stubModelFactory(model),
		logger:      utils.GetLogger(),
	}
	return svc, store
}

func TestIngestPlainText(t *testing.T) {
	svc, store := newTestDocumentService(t, &stubChatModel{reply: "Et kort resumé."})

	doc, err := svc.Ingest(context.Background(), "agent-1", "notes.txt", "text/plain", []byte("Åbningstider: man-fre 9-17."))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if doc.Summary == nil || *doc.Summary != "Et kort resumé." {
		t.Errorf("unexpected summary: %v", doc.Summary)
	}
	if doc.FileType != "TXT" {
		t.Errorf("expected file type TXT, got %s", doc.FileType)
	}
	if !strings.HasPrefix(doc.StoragePath, "agent-1/") {
		t.Errorf("unexpected storage path: %s", doc.StoragePath)
	}

	r, err := store.Open(doc.StoragePath)
	if err != nil {
		t.Fatalf("expected original file in blob store: %v", err)
	}
	r.Close()

	var got models.KnowledgeDocument
	if err := svc.db.First(&got, "id = ?", doc.ID).Error; err != nil {
		t.Fatalf("expected persisted row: %v", err)
	}
}

func TestIngestRejectsInvalidType(t *testing.T) {
	svc, _ := newTestDocumentService(t, &stubChatModel{reply: "x"})
	_, err := svc.Ingest(context.Background(), "agent-1", "image.png", "image/png", []byte("x"))
	if !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("expected ErrInvalidFileType, got %v", err)
	}
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	svc, _ := newTestDocumentService(t, &stubChatModel{reply: "x"})
	big := make([]byte, maxDocumentBytes+1)
	_, err := svc.Ingest(context.Background(), "agent-1", "big.txt", "text/plain", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestIngestRejectsEmptyText(t *testing.T) {
	svc, _ := newTestDocumentService(t, &stubChatModel{reply: "x"})
	_, err := svc.Ingest(context.Background(), "agent-1", "blank.txt", "text/plain", []byte("   \n\t"))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestIngestExtractionUndefinedForWordFormats(t *testing.T) {
	// DOC/DOCX pass upload validation but have no extractor.
	svc, _ := newTestDocumentService(t, &stubChatModel{reply: "x"})
	_, err := svc.Ingest(context.Background(), "agent-1", "old.doc", "application/msword", []byte("x"))
	if err == nil {
		t.Fatal("expected extraction error for msword")
	}
}

func TestIngestSummarizerFailureAborts(t *testing.T) {
	svc, store := newTestDocumentService(t, &stubChatModel{err: errors.New("provider down")})
	_, err := svc.Ingest(context.Background(), "agent-1", "notes.txt", "text/plain", []byte("indhold"))
	if err == nil {
		t.Fatal("expected error from failed summarization")
	}
	// Nothing reached the blob store.
	if _, openErr := store.Open("agent-1"); openErr == nil {
		t.Error("expected no blob written")
	}
	var count int64
	svc.db.Model(&models.KnowledgeDocument{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no persisted rows, got %d", count)
	}
}

func TestIngestRollsBackBlobOnInsertFailure(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewLocalStore(root)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	svc := &DocumentService{
		db:          openTestDB(t),
		store:       store,
		createModel: stubModelFactory(&stubChatModel{reply: "Resumé."}),
		logger:      utils.GetLogger(),
	}
	if err := svc.db.Migrator().DropTable(&models.KnowledgeDocument{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	_, err = svc.Ingest(context.Background(), "agent-1", "notes.txt", "text/plain", []byte("indhold"))
	if err == nil {
		t.Fatal("expected insert failure")
	}

	// The blob written before the failed insert must be gone again.
	entries, _ := os.ReadDir(filepath.Join(root, "agent-1"))
	if len(entries) != 0 {
		t.Errorf("expected rolled back blob, found %d files", len(entries))
	}
}

func TestTruncateForSummary(t *testing.T) {
	short := "kort tekst"
	if got := truncateForSummary(short); got != short {
		t.Errorf("short text must pass through unchanged, got %q", got)
	}

	long := strings.Repeat("a", maxSummaryInput+100)
	got := truncateForSummary(long)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Error("expected truncation marker")
	}
	if len(got) != maxSummaryInput+len(truncationMarker) {
		t.Errorf("unexpected truncated length %d", len(got))
	}
}
