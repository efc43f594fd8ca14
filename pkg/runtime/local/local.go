// Package local provides an in-process conversation runtime that
// records every conversation as a transcript file inside the team
// workspace. It provisions no model: it exists so the CLI and tests can
// drive a full session lifecycle offline.
package local

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/teamwire/teamwire/pkg/provision"
	"github.com/teamwire/teamwire/pkg/runtime"
)

// TranscriptDir is the directory created inside each workspace to hold
// conversation transcripts.
const TranscriptDir = ".teamwire"

// Runtime implements both provision.Provisioner and runtime.Registry.
type Runtime struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
}

var (
	_ provision.Provisioner = (*Runtime)(nil)
	_ runtime.Registry      = (*Runtime)(nil)
)

// New creates an empty local runtime.
func New() *Runtime {
	return &Runtime{conversations: make(map[string]*conversation)}
}

// CreateConversation registers a new transcript-backed conversation and
// writes its header (metadata plus instructions) to the workspace.
func (r *Runtime) CreateConversation(_ context.Context, req provision.Request) (provision.Result, error) {
	dir := filepath.Join(req.Workspace, TranscriptDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return provision.Result{}, fmt.Errorf("creating transcript directory: %w", err)
	}

	id := uuid.New().String()
	conv := &conversation{
		id:   id,
		path: filepath.Join(dir, id+".log"),
	}

	var header bytes.Buffer
	fmt.Fprintf(&header, "conversation: %s\nrole: %s\n", id, req.Role)
	for key, value := range req.Metadata {
		fmt.Fprintf(&header, "%s: %s\n", key, value)
	}
	fmt.Fprintf(&header, "\n--- instructions\n%s\n", req.Instructions)

	if err := atomic.WriteFile(conv.path, &header); err != nil {
		return provision.Result{}, fmt.Errorf("writing transcript header: %w", err)
	}

	r.mu.Lock()
	r.conversations[id] = conv
	r.mu.Unlock()

	return provision.Result{ConversationID: id}, nil
}

// Handle returns the handle for a registered conversation.
func (r *Runtime) Handle(conversationID string) (runtime.Handle, bool) {
	r.mu.RLock()
	conv, ok := r.conversations[conversationID]
	r.mu.RUnlock()
	return conv, ok
}

// Transcript returns the recorded transcript of a conversation.
func (r *Runtime) Transcript(conversationID string) (string, error) {
	r.mu.RLock()
	conv, ok := r.conversations[conversationID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown conversation %q", conversationID)
	}

	data, err := os.ReadFile(conv.path)
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	return string(data), nil
}

type conversation struct {
	id   string
	path string

	mu         sync.Mutex
	terminated bool
}

var _ runtime.Handle = (*conversation)(nil)

// AcceptMessage appends the message to the transcript. The whole file
// is rewritten atomically so a crashed append never leaves a torn
// transcript behind.
func (c *conversation) AcceptMessage(_ context.Context, msg runtime.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return fmt.Errorf("conversation %s is terminated", c.id)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(data)
	fmt.Fprintf(&buf, "\n--- message %s\n%s\n", msg.ID, msg.Content)

	if err := atomic.WriteFile(c.path, &buf); err != nil {
		return fmt.Errorf("appending to transcript: %w", err)
	}
	return nil
}

// Terminate marks the conversation terminated; later messages are
// rejected. The transcript file stays in the workspace.
func (c *conversation) Terminate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = true
	return nil
}
