// Conversation HTTP handlers - rating and session adoption
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/service"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
}

func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// RegisterRoutes registers conversation routes
func (h *ConversationHandler) RegisterRoutes(r *gin.RouterGroup) {
	conversations := r.Group("/conversations")
	{
		conversations.GET("/latest", h.Latest)
		conversations.POST("/:id/rate", h.Rate)
	}
}

// Latest returns the visitor's most recent conversation id, or null.
// GET /api/v1/conversations/latest?agent_id=&visitor_id=
func (h *ConversationHandler) Latest(c *gin.Context) {
	agentID := c.Query("agent_id")
	visitorID := c.Query("visitor_id")
	if agentID == "" || visitorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id and visitor_id are required"})
		return
	}
	id, err := h.conversationService.LatestFor(agentID, visitorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up conversation"})
		return
	}
	c.JSON(http.StatusOK, models.LatestConversationResponse{ConversationID: id})
}

// Rate records a 1-5 rating for a conversation.
// POST /api/v1/conversations/:id/rate
func (h *ConversationHandler) Rate(c *gin.Context) {
	var req models.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.conversationService.Rate(c.Param("id"), req.Rating)
	switch {
	case errors.Is(err, service.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rate conversation"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
