package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMemberPrompt(t *testing.T) {
	t.Parallel()

	def := triadDefinition()
	member, ok := def.Member("designer")
	require.True(t, ok)

	prompt := buildMemberPrompt(def, member)

	// Own identity and role.
	assert.Contains(t, prompt, "You are Dana (member id: designer)")
	assert.Contains(t, prompt, `the member of the team "Triad"`)

	// Own instructions verbatim.
	assert.Contains(t, prompt, "Design the UI.")

	// Every other member listed with id, name and role; not itself.
	assert.Contains(t, prompt, "Lena (id: lead, role: lead)")
	assert.Contains(t, prompt, "Devi (id: developer, role: member)")
	assert.NotContains(t, prompt, "Dana (id: designer")

	// The exact protocol grammar, including the TO: header form.
	assert.Contains(t, prompt, "```team-message\nTO: <member-id>\n")
	assert.Contains(t, prompt, "```team-broadcast\n")

	// Members must address each other by id, not display name.
	assert.Contains(t, prompt, "member id")
	assert.Contains(t, prompt, "never by display name")
}

func TestBuildMemberPrompt_ExcerptsLongInstructions(t *testing.T) {
	t.Parallel()

	def := triadDefinition()
	def.Members[2].SystemPrompt = strings.Repeat("Write very detailed code. ", 40)

	member, _ := def.Member("lead")
	prompt := buildMemberPrompt(def, member)

	// The roster carries an excerpt, not the teammate's full prompt.
	assert.Contains(t, prompt, "...")
	assert.NotContains(t, prompt, strings.Repeat("Write very detailed code. ", 10))
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", excerpt("short", 20))
	assert.Equal(t, "a b c", excerpt("a\n b\n\n c", 20))

	long := excerpt(strings.Repeat("x", 200), 140)
	assert.Len(t, long, 140)
	assert.True(t, strings.HasSuffix(long, "..."))

	// Truncation counts runes, never cutting a character in half.
	wide := excerpt(strings.Repeat("émigré ", 40), 140)
	assert.True(t, utf8.ValidString(wide))
	assert.Equal(t, 140, utf8.RuneCountInString(wide))
	assert.True(t, strings.HasSuffix(wide, "..."))
}
