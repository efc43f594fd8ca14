// Package router scans free-form agent output for the embedded team
// messaging protocol and forwards extracted commands to the
// orchestrator. Agent output is untrusted: parsing is total, malformed
// blocks are dropped, and one command's routing failure never stops the
// rest.
package router

import (
	"context"
	"log/slog"
	"strings"
)

const (
	messageFence   = "```team-message"
	broadcastFence = "```team-broadcast"
	closingFence   = "```"
	toHeader       = "TO:"
)

// Kind discriminates directed messages from broadcasts.
type Kind string

const (
	KindMessage   Kind = "message"
	KindBroadcast Kind = "broadcast"
)

// Command is one extracted protocol block.
type Command struct {
	Kind    Kind
	To      string // directed messages only
	Content string
}

// Sender is the slice of the orchestrator the router needs.
type Sender interface {
	SendTeamMessage(ctx context.Context, sessionID, fromMemberID, toMemberID, content string) error
	BroadcastTeamMessage(ctx context.Context, sessionID, fromMemberID, content string) error
}

// Router extracts team commands from agent output and routes them.
type Router struct {
	sender Sender
}

// New creates a router that forwards commands to the given sender.
func New(sender Sender) *Router {
	return &Router{sender: sender}
}

// HasTeamCommands is a cheap pre-check for the presence of at least one
// opening fence of either kind.
func HasTeamCommands(text string) bool {
	return strings.Contains(text, messageFence) || strings.Contains(text, broadcastFence)
}

// ParseTeamCommands extracts every well-formed protocol block from the
// text, preserving document order. Malformed blocks (an unclosed fence,
// or a team-message block missing its TO: header) are dropped, not
// errors.
func ParseTeamCommands(text string) []Command {
	var commands []Command

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		var kind Kind
		switch strings.TrimSpace(lines[i]) {
		case messageFence:
			kind = KindMessage
		case broadcastFence:
			kind = KindBroadcast
		default:
			continue
		}

		body, next, ok := collectBlock(lines, i+1)
		if !ok {
			// Unclosed fence. Nothing after it can be well-formed.
			return commands
		}
		i = next

		switch kind {
		case KindMessage:
			if cmd, ok := parseDirected(body); ok {
				commands = append(commands, cmd)
			}
		case KindBroadcast:
			commands = append(commands, Command{
				Kind:    KindBroadcast,
				Content: strings.TrimSpace(strings.Join(body, "\n")),
			})
		}
	}

	return commands
}

// collectBlock gathers the lines of one fenced block starting at start,
// returning the body, the index of the closing fence and whether the
// block was closed at all.
func collectBlock(lines []string, start int) (body []string, closing int, ok bool) {
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == closingFence {
			return lines[start:i], i, true
		}
	}
	return nil, 0, false
}

// parseDirected validates the TO: header of a team-message block.
func parseDirected(body []string) (Command, bool) {
	if len(body) == 0 {
		return Command{}, false
	}

	header := strings.TrimSpace(body[0])
	if !strings.HasPrefix(header, toHeader) {
		return Command{}, false
	}
	to := strings.TrimSpace(strings.TrimPrefix(header, toHeader))
	if to == "" {
		return Command{}, false
	}

	return Command{
		Kind:    KindMessage,
		To:      to,
		Content: strings.TrimSpace(strings.Join(body[1:], "\n")),
	}, true
}

// ProcessCommands parses the output of one member turn and routes every
// extracted command. Directed recipients are resolved against
// nameToID tolerantly: exact match, then case-insensitive match, then
// the raw value as-is (an agent may address a teammate by display name).
func (r *Router) ProcessCommands(ctx context.Context, sessionID, fromMemberID, text string, nameToID map[string]string) {
	for _, cmd := range ParseTeamCommands(text) {
		switch cmd.Kind {
		case KindBroadcast:
			if err := r.sender.BroadcastTeamMessage(ctx, sessionID, fromMemberID, cmd.Content); err != nil {
				slog.Error("Failed to route team broadcast", "session_id", sessionID, "from", fromMemberID, "error", err)
			}
		case KindMessage:
			to := ResolveRecipient(cmd.To, nameToID)
			if err := r.sender.SendTeamMessage(ctx, sessionID, fromMemberID, to, cmd.Content); err != nil {
				slog.Error("Failed to route team message", "session_id", sessionID, "from", fromMemberID, "to", to, "error", err)
			}
		}
	}
}

// ResolveRecipient maps a raw TO: value to a member id: exact match
// first, case-insensitive second, and the raw value unchanged when
// neither matches.
func ResolveRecipient(raw string, nameToID map[string]string) string {
	if id, ok := nameToID[raw]; ok {
		return id
	}
	for name, id := range nameToID {
		if strings.EqualFold(name, raw) {
			return id
		}
	}
	return raw
}
