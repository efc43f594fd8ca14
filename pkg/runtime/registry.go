// Package runtime defines the boundary to the conversation runtime:
// given a conversation id, it hands out a handle that can accept a new
// input message for that conversation.
package runtime

import (
	"context"

	"github.com/google/uuid"
)

// Message is one input turn injected into a conversation.
type Message struct {
	ID      string
	Content string
}

// NewMessage builds a message with a fresh id.
func NewMessage(content string) Message {
	return Message{
		ID:      uuid.New().String(),
		Content: content,
	}
}

// Handle accepts input for one running conversation. AcceptMessage
// enqueues the message as a new user turn; it must not block on the
// conversation actually processing it.
type Handle interface {
	AcceptMessage(ctx context.Context, msg Message) error
	Terminate(ctx context.Context) error
}

// Registry resolves conversation ids to live handles. Handle returns
// false when no conversation with that id is running.
type Registry interface {
	Handle(conversationID string) (Handle, bool)
}
