package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/db"
	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

var ErrAgentNotFound = errors.New("agent not found")

// AgentService manages agent configuration records.
type AgentService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAgentService(database *gorm.DB) *AgentService {
	return &AgentService{
		db:     database,
		logger: utils.GetLogger(),
	}
}

// Create validates and inserts a new agent.
func (s *AgentService) Create(req *models.CreateAgentRequest) (*models.Agent, error) {
	if req.UserID == "" || req.BusinessName == "" || req.AgentName == "" {
		return nil, fmt.Errorf("user_id, business_name and agent_name are required")
	}
	agent := models.Agent{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		BusinessName: req.BusinessName,
		AgentName:    req.AgentName,
		PrimaryRole:  req.PrimaryRole,
		Scopes:       db.StringArray(req.Scopes),
		Tone:         req.Tone,
		Branding:     db.JSONMap(req.Branding),
	}
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.Create(&agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return &agent, nil
}

// Get loads one agent by id.
func (s *AgentService) Get(id string) (*models.Agent, error) {
	var agent models.Agent
	err := s.db.Where("id = ?", id).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	return &agent, nil
}

// Update applies the non-nil fields of req to an existing agent.
func (s *AgentService) Update(id string, req *models.UpdateAgentRequest) (*models.Agent, error) {
	agent, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if req.BusinessName != nil {
		agent.BusinessName = *req.BusinessName
	}
	if req.AgentName != nil {
		agent.AgentName = *req.AgentName
	}
	if req.PrimaryRole != nil {
		agent.PrimaryRole = *req.PrimaryRole
	}
	if req.Scopes != nil {
		agent.Scopes = db.StringArray(*req.Scopes)
	}
	if req.Tone != nil {
		agent.Tone = *req.Tone
	}
	if req.Branding != nil {
		agent.Branding = db.JSONMap(req.Branding)
	}
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.Save(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	return agent, nil
}
