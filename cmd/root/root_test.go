package root

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamwire/teamwire/pkg/runtime/local"
)

const pairYAML = `
id: pair
name: Pair
members:
  - id: lead
    name: Lena
    role: lead
    system_prompt: Coordinate the work.
  - id: developer
    name: Devi
    role: member
    system_prompt: Write the code.
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	teamFile := filepath.Join(t.TempDir(), "pair.yaml")
	require.NoError(t, os.WriteFile(teamFile, []byte(pairYAML), 0o600))

	workspace := t.TempDir()
	db := filepath.Join(t.TempDir(), "sessions.db")

	out, err := runCLI(t, "run", teamFile,
		"--workspace", workspace,
		"--session-db", db,
		"--kickoff", "start with the parser")
	require.NoError(t, err)
	assert.Contains(t, out, "started with 2 members")

	// One transcript per member, each carrying its team prompt; the
	// kickoff broadcast reaches the developer only.
	entries, err := os.ReadDir(filepath.Join(workspace, local.TranscriptDir))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var all string
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(workspace, local.TranscriptDir, entry.Name()))
		require.NoError(t, err)
		all += string(data)
	}
	assert.Contains(t, all, "Coordinate the work.")
	assert.Contains(t, all, "Write the code.")
	assert.Contains(t, all, "[Team message from lead]: start with the parser")

	listOut, err := runCLI(t, "sessions", "list", "--session-db", db)
	require.NoError(t, err)
	assert.Contains(t, listOut, "Pair")
	assert.Contains(t, listOut, "active")
}

func TestRunCommand_KickoffRouting(t *testing.T) {
	teamFile := filepath.Join(t.TempDir(), "pair.yaml")
	require.NoError(t, os.WriteFile(teamFile, []byte(pairYAML), 0o600))

	workspace := t.TempDir()
	db := filepath.Join(t.TempDir(), "sessions.db")

	// A kickoff carrying protocol blocks is routed instead of broadcast:
	// the directed block goes to Devi alone, resolved by display name.
	kickoff := "```team-message\nTO: Devi\nStart with the parser\n```\n\n```team-broadcast\nDaily sync at ten\n```"
	_, err := runCLI(t, "run", teamFile,
		"--workspace", workspace,
		"--session-db", db,
		"--kickoff", kickoff)
	require.NoError(t, err)

	developer := transcriptContaining(t, workspace, "Write the code.")
	assert.Contains(t, developer, "[Team message from lead]: Start with the parser")
	assert.Contains(t, developer, "[Team message from lead]: Daily sync at ten")

	lead := transcriptContaining(t, workspace, "Coordinate the work.")
	assert.NotContains(t, lead, "Start with the parser")
	assert.NotContains(t, lead, "Daily sync at ten")
}

func TestTeamsListCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pair.yaml"), []byte(pairYAML), 0o600))

	out, err := runCLI(t, "teams", "list", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "pair")
	assert.Contains(t, out, "Pair")
}

func TestTeamsWatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pair.yaml"), []byte(pairYAML), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- watchTeams(ctx, dir, &out) }()

	// The banner is printed once the directory is being watched.
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pair.yaml"), []byte(pairYAML), 0o600))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `Reloaded team "pair"`)
	}, 5*time.Second, 50*time.Millisecond)

	// A broken definition is reported and watching continues.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: [broken"), 0o600))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Invalid:")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunCommand_MissingTeamFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sessions.db")
	_, err := runCLI(t, "run", filepath.Join(t.TempDir(), "nope.yaml"), "--session-db", db)
	require.ErrorContains(t, err, "failed to read team definition")
}

func TestSessionsDestroyCommand(t *testing.T) {
	teamFile := filepath.Join(t.TempDir(), "pair.yaml")
	require.NoError(t, os.WriteFile(teamFile, []byte(pairYAML), 0o600))

	db := filepath.Join(t.TempDir(), "sessions.db")
	_, err := runCLI(t, "run", teamFile, "--workspace", t.TempDir(), "--session-db", db)
	require.NoError(t, err)

	listOut, err := runCLI(t, "sessions", "list", "--all", "--session-db", db)
	require.NoError(t, err)

	// Second line of the table carries the session id.
	id := firstField(t, listOut)

	out, err := runCLI(t, "sessions", "destroy", id, "--session-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "destroyed")

	activeOut, err := runCLI(t, "sessions", "list", "--session-db", db)
	require.NoError(t, err)
	assert.NotContains(t, activeOut, id)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "teamwire")
}

func transcriptContaining(t *testing.T, workspace, marker string) string {
	t.Helper()

	dir := filepath.Join(workspace, local.TranscriptDir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		if strings.Contains(string(data), marker) {
			return string(data)
		}
	}
	t.Fatalf("no transcript under %s contains %q", dir, marker)
	return ""
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func firstField(t *testing.T, tableOut string) string {
	t.Helper()
	lines := bytes.Split([]byte(tableOut), []byte("\n"))
	require.Greater(t, len(lines), 1, "expected a table with at least one row")
	fields := bytes.Fields(lines[1])
	require.NotEmpty(t, fields)
	return string(fields[0])
}
