package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/blob"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

var ErrDocumentNotFound = errors.New("document not found")

// KnowledgeSnapshot is the per-agent knowledge read the prompt
// composer consumes for one turn.
type KnowledgeSnapshot struct {
	Links         []models.KnowledgeLink
	Documents     []models.KnowledgeDocument
	CustomEntries []models.KnowledgeCustomEntry
}

// KnowledgeService manages an agent's knowledge base.
type KnowledgeService struct {
	db     *gorm.DB
	store  blob.Store
	logger *slog.Logger
}

func NewKnowledgeService(database *gorm.DB, store blob.Store) *KnowledgeService {
	return &KnowledgeService{
		db:     database,
		store:  store,
		logger: utils.GetLogger(),
	}
}

// Snapshot loads the knowledge sources for an agent. Documents without
// a summary are excluded since they are not prompt-eligible yet.
func (s *KnowledgeService) Snapshot(agentID string) (*KnowledgeSnapshot, error) {
	snap := &KnowledgeSnapshot{}
	if err := s.db.Where("agent_id = ?", agentID).Order("created_at ASC").Find(&snap.Links).Error; err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	err := s.db.Where("agent_id = ? AND summary IS NOT NULL", agentID).
		Order("created_at ASC").
		Find(&snap.Documents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if err := s.db.Where("agent_id = ?", agentID).Order("created_at ASC").Find(&snap.CustomEntries).Error; err != nil {
		return nil, fmt.Errorf("failed to load custom entries: %w", err)
	}
	return snap, nil
}

// ========== Links ==========

func (s *KnowledgeService) ListLinks(agentID string) ([]models.KnowledgeLink, error) {
	var links []models.KnowledgeLink
	if err := s.db.Where("agent_id = ?", agentID).Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

func (s *KnowledgeService) CreateLink(agentID string, req *models.CreateLinkRequest) (*models.KnowledgeLink, error) {
	if req.Label == "" || req.URL == "" {
		return nil, fmt.Errorf("label and url are required")
	}
	link := models.KnowledgeLink{
		ID:      uuid.New().String(),
		AgentID: agentID,
		Label:   req.Label,
		URL:     req.URL,
	}
	if err := s.db.Create(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return &link, nil
}

func (s *KnowledgeService) DeleteLink(agentID, linkID string) error {
	result := s.db.Where("id = ? AND agent_id = ?", linkID, agentID).Delete(&models.KnowledgeLink{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete link: %w", result.Error)
	}
	return nil
}

// ========== Custom entries ==========

func (s *KnowledgeService) ListCustomEntries(agentID string) ([]models.KnowledgeCustomEntry, error) {
	var entries []models.KnowledgeCustomEntry
	if err := s.db.Where("agent_id = ?", agentID).Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list custom entries: %w", err)
	}
	return entries, nil
}

func (s *KnowledgeService) CreateCustomEntry(agentID string, req *models.CreateCustomEntryRequest) (*models.KnowledgeCustomEntry, error) {
	if req.Title == "" || req.Content == "" {
		return nil, fmt.Errorf("title and content are required")
	}
	entry := models.KnowledgeCustomEntry{
		ID:      uuid.New().String(),
		AgentID: agentID,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create custom entry: %w", err)
	}
	return &entry, nil
}

func (s *KnowledgeService) DeleteCustomEntry(agentID, entryID string) error {
	result := s.db.Where("id = ? AND agent_id = ?", entryID, agentID).Delete(&models.KnowledgeCustomEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete custom entry: %w", result.Error)
	}
	return nil
}

// ========== Documents ==========

func (s *KnowledgeService) ListDocuments(agentID string) ([]models.KnowledgeDocument, error) {
	var docs []models.KnowledgeDocument
	if err := s.db.Where("agent_id = ?", agentID).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes the metadata row and the stored file. The
// blob delete is best effort once the row is gone.
func (s *KnowledgeService) DeleteDocument(agentID, documentID string) error {
	var doc models.KnowledgeDocument
	err := s.db.Where("id = ? AND agent_id = ?", documentID, agentID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if err := s.db.Delete(&doc).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := s.store.Delete(doc.StoragePath); err != nil {
		s.logger.Warn("failed to delete document blob", "path", doc.StoragePath, "error", err)
	}
	return nil
}
