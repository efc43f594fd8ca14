// Package provision defines the boundary to the conversation
// provisioning service. The orchestrator treats it as a black box that
// creates and registers one running conversation per team member.
package provision

import (
	"context"
	"fmt"
)

// Metadata keys attached to every conversation provisioned for a team
// member, so the conversation can be traced back to its team from the
// outside.
const (
	MetaSessionID  = "team_session_id"
	MetaMemberID   = "team_member_id"
	MetaMemberName = "team_member_name"
	MetaMemberRole = "team_member_role"
)

// Request describes the conversation to create for one team member.
type Request struct {
	Role         string
	Instructions string
	Workspace    string
	Skills       []string
	Backend      string
	Metadata     map[string]string
}

// Result is the outcome of a successful provisioning call.
type Result struct {
	ConversationID string
}

// Provisioner creates and registers one running conversation instance.
type Provisioner interface {
	CreateConversation(ctx context.Context, req Request) (Result, error)
}

// Error wraps a provisioning failure with the member it was for.
type Error struct {
	MemberID string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning conversation for member %q: %v", e.MemberID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
