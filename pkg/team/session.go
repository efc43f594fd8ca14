package team

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a team session. A session only ever
// moves out of StatusActive, never out of a terminal state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further status transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Session is one live instantiation of a team definition, bound to a
// shared workspace directory.
//
// Members proceed concurrently as soon as they are spawned: the first
// member can already be routing messages while later members are still
// being provisioned. The conversation map and status are therefore
// guarded by an internal mutex; mutate and read them through the
// methods below, never through the fields, when the session is shared.
type Session struct {
	ID           string    `json:"id"`
	DefinitionID string    `json:"agent_team_definition_id"`
	Name         string    `json:"name"`
	Workspace    string    `json:"workspace"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// MemberConversations maps member-definition ids to provisioned
	// conversation ids. Keys are added as members are spawned and never
	// removed while the session lives.
	MemberConversations map[string]string `json:"member_conversations"`

	// spawnOrder remembers the order members were recorded in, so that
	// broadcast fan-out follows definition order within one process.
	// Sessions loaded back from the store fall back to sorted key order.
	spawnOrder []string

	mu sync.RWMutex
}

// NewSession builds the initial session for a definition: a fresh id, an
// empty conversation map and an active status.
func NewSession(def *Definition, workspace string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                  uuid.New().String(),
		DefinitionID:        def.ID,
		Name:                def.Name,
		Workspace:           workspace,
		Status:              StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
		MemberConversations: make(map[string]string),
	}
}

// SetConversation records the conversation backing a member and
// refreshes UpdatedAt.
func (s *Session) SetConversation(memberID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.MemberConversations[memberID]; !ok {
		s.spawnOrder = append(s.spawnOrder, memberID)
	}
	s.MemberConversations[memberID] = conversationID
	s.touchLocked()
}

// Conversation returns the conversation id backing a member.
func (s *Session) Conversation(memberID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.MemberConversations[memberID]
	return id, ok
}

// MemberIDs returns the member ids with recorded conversations, in spawn
// order when known.
func (s *Session) MemberIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.spawnOrder) == len(s.MemberConversations) {
		return slices.Clone(s.spawnOrder)
	}
	ids := make([]string, 0, len(s.MemberConversations))
	for id := range s.MemberConversations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TransitionTo moves the session to the given status and refreshes
// UpdatedAt. It reports false, changing nothing, when the session is
// already in a terminal state.
func (s *Session) TransitionTo(next Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status.Terminal() {
		return false
	}
	s.Status = next
	s.touchLocked()
	return true
}

// Snapshot returns a consistent copy of the session, safe to read and
// serialize while the original keeps mutating.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Session{
		ID:                  s.ID,
		DefinitionID:        s.DefinitionID,
		Name:                s.Name,
		Workspace:           s.Workspace,
		Status:              s.Status,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
		MemberConversations: maps.Clone(s.MemberConversations),
		spawnOrder:          slices.Clone(s.spawnOrder),
	}
}

// Touch refreshes the UpdatedAt timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

func (s *Session) touchLocked() {
	s.UpdatedAt = time.Now().UTC()
}
