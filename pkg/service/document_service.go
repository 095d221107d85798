package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/blob"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

const (
	maxDocumentBytes = 10 * 1024 * 1024
	maxSummaryInput  = 100_000
	truncationMarker = "\n\n[Tekst forkortet...]"
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large (max 10 MB)")
	ErrEmptyDocument   = errors.New("could not extract text from document")
)

// File type tags stored on the document row, keyed by MIME type.
var fileTypeTags = map[string]string{
	"application/pdf":    "PDF",
	"text/plain":         "TXT",
	"application/msword": "DOC",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "DOCX",
}

const summarizeSystemPrompt = `Du er en ekspert i at opsummere dokumenter til brug i en AI-chatbot.
Din opgave er at skabe et koncist, informativt resumé som chatbotten kan bruge til at besvare spørgsmål.

Regler:
- Skriv på dansk
- Hold resuméet kort, højst 300-500 ord
- Fokusér på fakta, nøgleinformation og hovedpointer
- Inkluder vigtige tal, datoer og navne
- Strukturér resuméet logisk med bullet points hvis relevant
- Undgå redundans og fyld`

// DocumentService ingests uploaded files into prompt-eligible
// knowledge summaries.
type DocumentService struct {
	db          *gorm.DB
	store       blob.Store
	createModel func(context.Context) (einoModel.BaseChatModel, error)
	logger      *slog.Logger
}

func NewDocumentService(database *gorm.DB, store blob.Store, model *ModelService) *DocumentService {
	return &DocumentService{
		db:          database,
		store:       store,
		createModel: model.CreateChatModel,
		logger:      utils.GetLogger(),
	}
}

// Ingest runs the full pipeline for one upload: validate, extract,
// summarize, store the original file, insert the metadata row. Either
// a complete document with a summary is returned or nothing is
// persisted; a blob written before a failed insert is removed again.
func (s *DocumentService) Ingest(ctx context.Context, agentID, filename, mimeType string, content []byte) (*models.KnowledgeDocument, error) {
	if _, ok := fileTypeTags[mimeType]; !ok {
		return nil, ErrInvalidFileType
	}
	if len(content) > maxDocumentBytes {
		return nil, ErrFileTooLarge
	}

	text, err := extractText(content, mimeType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	text = truncateForSummary(text)

	summary, err := s.summarize(ctx, filename, text)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize document: %w", err)
	}

	storagePath := blob.ObjectPath(agentID, filename)
	if err := s.store.Put(storagePath, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := models.KnowledgeDocument{
		ID:          uuid.New().String(),
		AgentID:     agentID,
		Name:        filename,
		FileType:    fileTypeTags[mimeType],
		FileSize:    int64(len(content)),
		StoragePath: storagePath,
		Summary:     &summary,
	}
	if err := s.db.Create(&doc).Error; err != nil {
		if delErr := s.store.Delete(storagePath); delErr != nil {
			s.logger.Warn("failed to roll back document blob", "path", storagePath, "error", delErr)
		}
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentService) summarize(ctx context.Context, filename, text string) (string, error) {
	chatModel, err := s.createModel(ctx)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(`Opsummér følgende dokument "%s" til brug i en kundeservice-chatbot:

---
%s
---

Giv et præcist og brugbart resumé:`, filename, text)
	resp, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(summarizeSystemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// extractText pulls plain text from the upload. Summarization is only
// defined for PDF and plain text; the remaining allow-listed types are
// rejected here.
func extractText(content []byte, mimeType string) (string, error) {
	switch mimeType {
	case "application/pdf":
		return extractPDFText(content)
	case "text/plain":
		if !utf8.Valid(content) {
			return "", ErrEmptyDocument
		}
		return string(content), nil
	default:
		return "", fmt.Errorf("unsupported file type for extraction: %s", mimeType)
	}
}

func extractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(text), nil
}

// truncateForSummary caps the model input and marks the cut.
func truncateForSummary(text string) string {
	if len(text) <= maxSummaryInput {
		return text
	}
	return text[:maxSummaryInput] + truncationMarker
}
