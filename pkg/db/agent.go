// Database model for configured chat agents
package db

import (
	"fmt"
	"time"
)

// Agent represents a configured support chat persona owned by a user.
// Scopes and tone are closed enums validated at the storage boundary;
// branding is display-only and passed through untouched.
type Agent struct {
	ID           string      `json:"id" gorm:"primaryKey;size:36"`
	UserID       string      `json:"user_id" gorm:"index;size:36;not null"`
	BusinessName string      `json:"business_name" gorm:"size:200;not null"`
	AgentName    string      `json:"agent_name" gorm:"size:100;not null"`
	PrimaryRole  string      `json:"primary_role" gorm:"size:50"`
	Scopes       StringArray `json:"scopes" gorm:"type:json"`
	Tone         string      `json:"tone" gorm:"size:20;default:'friendly'"`
	Branding     JSONMap     `json:"branding,omitempty" gorm:"type:json"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (Agent) TableName() string {
	return "agents"
}

// Agent scopes (topics the agent may discuss)
const (
	ScopeProducts      = "products"
	ScopeSubscriptions = "subscriptions"
	ScopeOrders        = "orders"
	ScopeInvoices      = "invoices"
	ScopeSupport       = "support"
	ScopeGeneral       = "general"
)

// Agent tones (response register)
const (
	ToneFriendly     = "friendly"
	ToneProfessional = "professional"
	ToneDirect       = "direct"
	ToneEducational  = "educational"
)

var validScopes = map[string]bool{
	ScopeProducts:      true,
	ScopeSubscriptions: true,
	ScopeOrders:        true,
	ScopeInvoices:      true,
	ScopeSupport:       true,
	ScopeGeneral:       true,
}

var validTones = map[string]bool{
	ToneFriendly:     true,
	ToneProfessional: true,
	ToneDirect:       true,
	ToneEducational:  true,
}

// Validate checks the closed scope/tone enums. An empty tone defaults
// to friendly rather than failing.
func (a *Agent) Validate() error {
	if a.BusinessName == "" {
		return fmt.Errorf("business_name is required")
	}
	if a.AgentName == "" {
		return fmt.Errorf("agent_name is required")
	}
	for _, s := range a.Scopes {
		if !validScopes[s] {
			return fmt.Errorf("unknown scope %q", s)
		}
	}
	if a.Tone == "" {
		a.Tone = ToneFriendly
	}
	if !validTones[a.Tone] {
		return fmt.Errorf("unknown tone %q", a.Tone)
	}
	return nil
}
