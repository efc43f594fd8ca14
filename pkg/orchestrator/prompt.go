package orchestrator

import (
	"fmt"
	"strings"

	"github.com/teamwire/teamwire/pkg/team"
)

const instructionExcerptLen = 140

// buildMemberPrompt assembles the team system prompt for one member:
// the member's identity inside the team, its own instructions verbatim,
// a roster of every teammate, and the exact messaging protocol grammar.
func buildMemberPrompt(def *team.Definition, member team.MemberDefinition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s (member id: %s), the %s of the team %q.\n", member.Name, member.ID, member.Role, def.Name)
	b.WriteString("Every member of this team works in the same shared workspace directory. ")
	b.WriteString("There is no file locking: announce what you are changing through team messages.\n\n")

	b.WriteString("## Your instructions\n\n")
	b.WriteString(member.SystemPrompt)
	b.WriteString("\n\n")

	b.WriteString("## Your teammates\n\n")
	for _, m := range def.Members {
		if m.ID == member.ID {
			continue
		}
		fmt.Fprintf(&b, "- %s (id: %s, role: %s): %s\n", m.Name, m.ID, m.Role, excerpt(m.SystemPrompt, instructionExcerptLen))
	}
	b.WriteString("\n")

	b.WriteString("## Team messaging protocol\n\n")
	b.WriteString("To send a message to a single teammate, include a fenced block of exactly this form in your reply:\n\n")
	b.WriteString("```team-message\nTO: <member-id>\n<message body, may span multiple lines>\n```\n\n")
	b.WriteString("To send a message to the whole team at once, use:\n\n")
	b.WriteString("```team-broadcast\n<message body, may span multiple lines>\n```\n\n")
	b.WriteString("Always address teammates by their member id (the id fields listed above), never by display name. ")
	b.WriteString("You may include any number of such blocks in one reply, mixed with ordinary prose.\n")

	return b.String()
}

// excerpt collapses text onto one line and truncates it to maxLen runes
// for the roster. Truncation never splits a multi-byte character.
func excerpt(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}
