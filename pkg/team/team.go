package team

import (
	"fmt"
	"time"
)

// Role describes a member's position inside a team.
type Role string

const (
	RoleLead   Role = "lead"
	RoleMember Role = "member"
)

// MemberDefinition is the static description of one role in a team.
// It is immutable once a session has been created from it.
type MemberDefinition struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Role              Role     `yaml:"role" json:"role"`
	SystemPrompt      string   `yaml:"system_prompt" json:"system_prompt"`
	Backend           string   `yaml:"backend,omitempty" json:"backend,omitempty"`
	Skills            []string `yaml:"skills,omitempty" json:"skills,omitempty"`
	PresetAssistantID string   `yaml:"preset_assistant_id,omitempty" json:"preset_assistant_id,omitempty"`
}

// Definition is a named, reusable team template. Member order is
// significant: it is the spawn order and the default broadcast fan-out
// order.
type Definition struct {
	ID          string             `yaml:"id" json:"id"`
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Icon        string             `yaml:"icon,omitempty" json:"icon,omitempty"`
	Members     []MemberDefinition `yaml:"members" json:"members"`
	CreatedAt   time.Time          `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt   time.Time          `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Member returns the member definition with the given id.
func (d *Definition) Member(id string) (MemberDefinition, bool) {
	for _, m := range d.Members {
		if m.ID == id {
			return m, true
		}
	}
	return MemberDefinition{}, false
}

// Validate checks a definition for structural problems before any
// session is created from it.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("team definition has no id")
	}
	if len(d.Members) == 0 {
		return fmt.Errorf("team %q has no members", d.ID)
	}

	seen := make(map[string]bool, len(d.Members))
	for i, m := range d.Members {
		if m.ID == "" {
			return fmt.Errorf("team %q: member %d has no id", d.ID, i)
		}
		if seen[m.ID] {
			return fmt.Errorf("team %q: duplicate member id %q", d.ID, m.ID)
		}
		seen[m.ID] = true

		if m.SystemPrompt == "" {
			return fmt.Errorf("team %q: member %q has no system prompt", d.ID, m.ID)
		}
		switch m.Role {
		case RoleLead, RoleMember:
		default:
			return fmt.Errorf("team %q: member %q has unknown role %q", d.ID, m.ID, m.Role)
		}
	}

	return nil
}
