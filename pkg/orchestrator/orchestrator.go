// Package orchestrator owns the lifecycle of team sessions: creation,
// member spawning, message delivery, broadcast, shutdown, destruction
// and querying.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teamwire/teamwire/pkg/provision"
	"github.com/teamwire/teamwire/pkg/runtime"
	"github.com/teamwire/teamwire/pkg/session"
	"github.com/teamwire/teamwire/pkg/team"
)

var (
	ErrSessionNotFound = errors.New("team session not found")
	ErrMemberNotFound  = errors.New("team member not found")
)

// Orchestrator coordinates a team of independent agent conversations.
// Construct one at application start and pass it by reference to every
// caller; it holds no global state.
type Orchestrator struct {
	store       session.Store
	provisioner provision.Provisioner
	registry    runtime.Registry

	mu       sync.RWMutex
	sessions map[string]*team.Session
}

// New creates an orchestrator backed by the given store, provisioning
// service and conversation runtime registry.
func New(store session.Store, provisioner provision.Provisioner, registry runtime.Registry) *Orchestrator {
	return &Orchestrator{
		store:       store,
		provisioner: provisioner,
		registry:    registry,
		sessions:    make(map[string]*team.Session),
	}
}

// CreateSession instantiates a definition in the given workspace. Every
// member is spawned sequentially, in definition order: members share one
// workspace and provisioning may populate shared files, so one member's
// conversation-creation call must complete before the next starts.
//
// If any spawn fails, the failure propagates; members that did spawn
// stay recorded and persisted, the session is not rolled back.
func (o *Orchestrator) CreateSession(ctx context.Context, def *team.Definition, workspace string) (*team.Session, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	sess := team.NewSession(def, workspace)
	o.persist(ctx, sess)

	o.mu.Lock()
	o.sessions[sess.ID] = sess
	o.mu.Unlock()

	slog.Info("Creating team session", "session_id", sess.ID, "team", def.Name, "members", len(def.Members), "workspace", workspace)

	for _, member := range def.Members {
		if _, err := o.SpawnMember(ctx, sess, member, def); err != nil {
			o.persist(ctx, sess)
			return nil, fmt.Errorf("failed to create team session %s: %w", sess.ID, err)
		}
	}

	o.persist(ctx, sess)
	return sess, nil
}

// SpawnMember provisions one member's conversation, records it in the
// session and returns the new conversation id. The provisioned
// conversation is annotated with the session id and the member's
// identity so it can be traced back to its team from the outside.
func (o *Orchestrator) SpawnMember(ctx context.Context, sess *team.Session, member team.MemberDefinition, def *team.Definition) (string, error) {
	prompt := buildMemberPrompt(def, member)

	res, err := o.provisioner.CreateConversation(ctx, provision.Request{
		Role:         string(member.Role),
		Instructions: prompt,
		Workspace:    sess.Workspace,
		Skills:       member.Skills,
		Backend:      member.Backend,
		Metadata: map[string]string{
			provision.MetaSessionID:  sess.ID,
			provision.MetaMemberID:   member.ID,
			provision.MetaMemberName: member.Name,
			provision.MetaMemberRole: string(member.Role),
		},
	})
	if err != nil {
		return "", &provision.Error{MemberID: member.ID, Err: err}
	}

	sess.SetConversation(member.ID, res.ConversationID)
	o.persist(ctx, sess)

	slog.Info("Team member spawned", "session_id", sess.ID, "member_id", member.ID, "conversation_id", res.ConversationID)
	return res.ConversationID, nil
}

// SendTeamMessage delivers an attributed message to one member's
// conversation as a new user turn. Delivery itself is best-effort:
// failures past member resolution are logged and swallowed so the
// sender's own turn is never blocked on them.
func (o *Orchestrator) SendTeamMessage(ctx context.Context, sessionID, fromMemberID, toMemberID, content string) error {
	sess, err := o.session(ctx, sessionID)
	if err != nil {
		return err
	}

	conversationID, ok := sess.Conversation(toMemberID)
	if !ok {
		return fmt.Errorf("%w: %q in session %s", ErrMemberNotFound, toMemberID, sessionID)
	}

	msg := runtime.NewMessage(fmt.Sprintf("[Team message from %s]: %s", fromMemberID, content))

	handle, ok := o.registry.Handle(conversationID)
	if !ok {
		slog.Error("No runtime handle for member conversation", "session_id", sessionID, "member_id", toMemberID, "conversation_id", conversationID)
		return nil
	}
	if err := handle.AcceptMessage(ctx, msg); err != nil {
		slog.Error("Failed to deliver team message", "session_id", sessionID, "from", fromMemberID, "to", toMemberID, "error", err)
	}
	return nil
}

// BroadcastTeamMessage fans a message out to every member except the
// sender, one at a time, continuing past individual failures.
func (o *Orchestrator) BroadcastTeamMessage(ctx context.Context, sessionID, fromMemberID, content string) error {
	sess, err := o.session(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, memberID := range sess.MemberIDs() {
		if memberID == fromMemberID {
			continue
		}
		if err := o.SendTeamMessage(ctx, sessionID, fromMemberID, memberID, content); err != nil {
			slog.Error("Failed to broadcast to team member", "session_id", sessionID, "member_id", memberID, "error", err)
		}
	}
	return nil
}

// ShutdownMember terminates the named member's conversation. The member
// stays in the session's conversation map and the session status is
// unchanged.
func (o *Orchestrator) ShutdownMember(ctx context.Context, sessionID, memberID string) error {
	sess, err := o.session(ctx, sessionID)
	if err != nil {
		return err
	}

	conversationID, ok := sess.Conversation(memberID)
	if !ok {
		return fmt.Errorf("%w: %q in session %s", ErrMemberNotFound, memberID, sessionID)
	}

	handle, ok := o.registry.Handle(conversationID)
	if !ok {
		slog.Warn("No runtime handle to shut down", "session_id", sessionID, "member_id", memberID, "conversation_id", conversationID)
		return nil
	}
	if err := handle.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to shut down member %q: %w", memberID, err)
	}

	slog.Info("Team member shut down", "session_id", sessionID, "member_id", memberID)
	return nil
}

// DestroySession terminates every member conversation and marks the
// session cancelled. Idempotent: destroying an unknown or already
// terminal session is a no-op.
func (o *Orchestrator) DestroySession(ctx context.Context, sessionID string) error {
	sess, err := o.session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if !sess.TransitionTo(team.StatusCancelled) {
		return nil
	}

	for _, memberID := range sess.MemberIDs() {
		conversationID, _ := sess.Conversation(memberID)
		handle, ok := o.registry.Handle(conversationID)
		if !ok {
			continue
		}
		if err := handle.Terminate(ctx); err != nil {
			slog.Error("Failed to terminate member conversation", "session_id", sessionID, "member_id", memberID, "error", err)
		}
	}

	o.persist(ctx, sess)

	o.mu.Lock()
	delete(o.sessions, sessionID)
	o.mu.Unlock()

	slog.Info("Team session destroyed", "session_id", sessionID)
	return nil
}

// GetSession looks a session up by id. Callers get a snapshot, detached
// from any mutation still happening inside the orchestrator.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*team.Session, error) {
	sess, err := o.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// ActiveSessions returns every active session, most recently updated
// first.
func (o *Orchestrator) ActiveSessions(ctx context.Context) ([]*team.Session, error) {
	return o.store.ListByStatus(ctx, team.StatusActive)
}

// AllSessions returns every session regardless of status, most recently
// updated first.
func (o *Orchestrator) AllSessions(ctx context.Context) ([]*team.Session, error) {
	return o.store.List(ctx)
}

// session resolves a session from the in-process cache first, falling
// back to the store for sessions created by an earlier process.
func (o *Orchestrator) session(ctx context.Context, sessionID string) (*team.Session, error) {
	o.mu.RLock()
	sess, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	if !sess.Status.Terminal() {
		o.mu.Lock()
		o.sessions[sessionID] = sess
		o.mu.Unlock()
	}
	return sess, nil
}

// persist writes the session row from a snapshot, so spawns still in
// flight on other members cannot mutate the row mid-serialization.
// Store failures are logged, never propagated: the in-memory session
// stays authoritative and the next structural change retries the write.
func (o *Orchestrator) persist(ctx context.Context, sess *team.Session) {
	if err := o.store.Upsert(ctx, sess.Snapshot()); err != nil {
		slog.Error("Failed to persist team session", "session_id", sess.ID, "error", err)
	}
}
