package root

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teamwire/teamwire/pkg/orchestrator"
	"github.com/teamwire/teamwire/pkg/router"
	"github.com/teamwire/teamwire/pkg/runtime/local"
	"github.com/teamwire/teamwire/pkg/session"
	"github.com/teamwire/teamwire/pkg/team"
	"github.com/teamwire/teamwire/pkg/teamloader"
)

type runFlags struct {
	workspace string
	kickoff   string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <team-file>",
		Short: "Launch a team session from a definition file",
		Long: `Launch a team session: one conversation is provisioned per member,
in definition order, all sharing the workspace directory. Conversations
use the local transcript runtime, so the resulting prompts and messages
can be inspected under <workspace>/` + local.TranscriptDir + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeam(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace directory shared by every member (default: current directory)")
	cmd.Flags().StringVar(&flags.kickoff, "kickoff", "", "The lead's opening output, delivered once all members are spawned; team-message and team-broadcast blocks are routed, plain text is broadcast")

	return cmd
}

func runTeam(cmd *cobra.Command, teamFile string, flags runFlags) error {
	def, err := teamloader.Load(teamFile)
	if err != nil {
		return err
	}

	workspace := flags.workspace
	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
	}
	if workspace, err = filepath.Abs(workspace); err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rt := local.New()
	orch := orchestrator.New(store, rt, rt)

	sess, err := orch.CreateSession(cmd.Context(), def, workspace)
	if err != nil {
		return err
	}

	if flags.kickoff != "" {
		lead := leadMemberID(def)
		// Kickoff text is treated as the lead's first output: protocol
		// blocks are routed per recipient, plain text goes to everyone.
		if router.HasTeamCommands(flags.kickoff) {
			router.New(orch).ProcessCommands(cmd.Context(), sess.ID, lead, flags.kickoff, memberNameIndex(def))
		} else if err := orch.BroadcastTeamMessage(cmd.Context(), sess.ID, lead, flags.kickoff); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s started with %d members\n", sess.ID, len(sess.MemberConversations))
	fmt.Fprintf(cmd.OutOrStdout(), "Transcripts: %s\n", filepath.Join(workspace, local.TranscriptDir))
	return nil
}

// memberNameIndex maps both member ids and display names to member ids,
// for resolving TO: headers written either way.
func memberNameIndex(def *team.Definition) map[string]string {
	index := make(map[string]string, 2*len(def.Members))
	for _, m := range def.Members {
		index[m.ID] = m.ID
		index[m.Name] = m.ID
	}
	return index
}

// leadMemberID returns the first member with the lead role, falling
// back to the first member.
func leadMemberID(def *team.Definition) string {
	for _, m := range def.Members {
		if m.Role == team.RoleLead {
			return m.ID
		}
	}
	return def.Members[0].ID
}

func openStore() (session.Store, error) {
	if dir := filepath.Dir(sessionDB); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session database directory: %w", err)
		}
	}
	return session.NewSQLiteStore(sessionDB)
}
