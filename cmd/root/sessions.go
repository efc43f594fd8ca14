package root

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teamwire/teamwire/pkg/orchestrator"
	"github.com/teamwire/teamwire/pkg/runtime/local"
	"github.com/teamwire/teamwire/pkg/team"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage team sessions",
	}

	cmd.AddCommand(
		newSessionsListCmd(),
		newSessionsDestroyCmd(),
	)

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List team sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var sessions []*team.Session
			if all {
				sessions, err = store.List(cmd.Context())
			} else {
				sessions, err = store.ListByStatus(cmd.Context(), team.StatusActive)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMEMBERS\tUPDATED")
			for _, sess := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					sess.ID, sess.Name, sess.Status, len(sess.MemberConversations),
					sess.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include cancelled and completed sessions")

	return cmd
}

func newSessionsDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <session-id>",
		Short: "Terminate a session's conversations and mark it cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rt := local.New()
			orch := orchestrator.New(store, rt, rt)
			if err := orch.DestroySession(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session %s destroyed\n", args[0])
			return nil
		},
	}
}
