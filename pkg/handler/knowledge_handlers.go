// Knowledge base HTTP handlers - links, custom entries and documents
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/service"
)

type KnowledgeHandler struct {
	knowledgeService *service.KnowledgeService
	documentService  *service.DocumentService
}

func NewKnowledgeHandler(knowledgeService *service.KnowledgeService, documentService *service.DocumentService) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledgeService: knowledgeService,
		documentService:  documentService,
	}
}

// RegisterRoutes registers knowledge routes
func (h *KnowledgeHandler) RegisterRoutes(r *gin.RouterGroup) {
	knowledge := r.Group("/agents/:id/knowledge")
	{
		knowledge.GET("/links", h.ListLinks)
		knowledge.POST("/links", h.CreateLink)
		knowledge.DELETE("/links/:linkId", h.DeleteLink)

		knowledge.GET("/custom", h.ListCustomEntries)
		knowledge.POST("/custom", h.CreateCustomEntry)
		knowledge.DELETE("/custom/:entryId", h.DeleteCustomEntry)

		knowledge.GET("/documents", h.ListDocuments)
		knowledge.POST("/documents", h.UploadDocument)
		knowledge.DELETE("/documents", h.DeleteDocument)
	}
}

// GET /api/v1/agents/:id/knowledge/links
func (h *KnowledgeHandler) ListLinks(c *gin.Context) {
	links, err := h.knowledgeService.ListLinks(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list links"})
		return
	}
	c.JSON(http.StatusOK, links)
}

// POST /api/v1/agents/:id/knowledge/links
func (h *KnowledgeHandler) CreateLink(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.knowledgeService.CreateLink(c.Param("id"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, link)
}

// DELETE /api/v1/agents/:id/knowledge/links/:linkId
func (h *KnowledgeHandler) DeleteLink(c *gin.Context) {
	if err := h.knowledgeService.DeleteLink(c.Param("id"), c.Param("linkId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/v1/agents/:id/knowledge/custom
func (h *KnowledgeHandler) ListCustomEntries(c *gin.Context) {
	entries, err := h.knowledgeService.ListCustomEntries(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list custom entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// POST /api/v1/agents/:id/knowledge/custom
func (h *KnowledgeHandler) CreateCustomEntry(c *gin.Context) {
	var req models.CreateCustomEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.knowledgeService.CreateCustomEntry(c.Param("id"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// DELETE /api/v1/agents/:id/knowledge/custom/:entryId
func (h *KnowledgeHandler) DeleteCustomEntry(c *gin.Context) {
	if err := h.knowledgeService.DeleteCustomEntry(c.Param("id"), c.Param("entryId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete custom entry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/v1/agents/:id/knowledge/documents
func (h *KnowledgeHandler) ListDocuments(c *gin.Context) {
	docs, err := h.knowledgeService.ListDocuments(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// UploadDocument ingests a multipart file upload end to end and
// returns the summarized document.
// POST /api/v1/agents/:id/knowledge/documents
func (h *KnowledgeHandler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := h.documentService.Ingest(c.Request.Context(), c.Param("id"), fileHeader.Filename, mimeType, content)
	switch {
	case errors.Is(err, service.ErrInvalidFileType), errors.Is(err, service.ErrFileTooLarge), errors.Is(err, service.ErrEmptyDocument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process document"})
	default:
		c.JSON(http.StatusCreated, doc)
	}
}

// DELETE /api/v1/agents/:id/knowledge/documents?document_id=
func (h *KnowledgeHandler) DeleteDocument(c *gin.Context) {
	documentID := c.Query("document_id")
	if documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_id is required"})
		return
	}
	err := h.knowledgeService.DeleteDocument(c.Param("id"), documentID)
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
