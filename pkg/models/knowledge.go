// API types for agent and knowledge management
package models

// CreateAgentRequest is the body of POST /api/v1/agents.
type CreateAgentRequest struct {
	UserID       string                 `json:"user_id"`
	BusinessName string                 `json:"business_name"`
	AgentName    string                 `json:"agent_name"`
	PrimaryRole  string                 `json:"primary_role,omitempty"`
	Scopes       []string               `json:"scopes,omitempty"`
	Tone         string                 `json:"tone,omitempty"`
	Branding     map[string]interface{} `json:"branding,omitempty"`
}

// UpdateAgentRequest is the body of PATCH /api/v1/agents/:id. Nil
// fields are left unchanged.
type UpdateAgentRequest struct {
	BusinessName *string                `json:"business_name,omitempty"`
	AgentName    *string                `json:"agent_name,omitempty"`
	PrimaryRole  *string                `json:"primary_role,omitempty"`
	Scopes       *[]string              `json:"scopes,omitempty"`
	Tone         *string                `json:"tone,omitempty"`
	Branding     map[string]interface{} `json:"branding,omitempty"`
}

// CreateLinkRequest is the body of POST /api/v1/agents/:id/knowledge/links.
type CreateLinkRequest struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// CreateCustomEntryRequest is the body of POST /api/v1/agents/:id/knowledge/custom.
type CreateCustomEntryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
