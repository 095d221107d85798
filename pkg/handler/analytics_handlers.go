// Analytics HTTP handlers
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/service"
)

type AnalyticsHandler struct {
	analyticsService  *service.AnalyticsService
	clusteringService *service.ClusteringService
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService, clusteringService *service.ClusteringService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService:  analyticsService,
		clusteringService: clusteringService,
	}
}

// RegisterRoutes registers analytics routes
func (h *AnalyticsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/agents/:id/analytics", h.Report)
	r.POST("/analytics/cluster-questions", h.ClusterQuestions)
}

// Report returns period statistics for an agent.
// GET /api/v1/agents/:id/analytics?period=today|week|month
func (h *AnalyticsHandler) Report(c *gin.Context) {
	period := models.Period(c.DefaultQuery("period", "month"))
	resp, err := h.analyticsService.Report(c.Param("id"), period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ClusterQuestions runs one clustering batch for an agent.
// POST /api/v1/analytics/cluster-questions
func (h *AnalyticsHandler) ClusterQuestions(c *gin.Context) {
	var req models.ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AgentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id is required"})
		return
	}
	resp, err := h.clusteringService.Run(c.Request.Context(), req.AgentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cluster questions"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
