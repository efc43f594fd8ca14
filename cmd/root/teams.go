package root

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teamwire/teamwire/pkg/teamloader"
)

func newTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Inspect team definition files",
	}

	cmd.AddCommand(
		newTeamsListCmd(),
		newTeamsWatchCmd(),
	)

	return cmd
}

func newTeamsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <definitions-dir>",
		Short: "List the team definitions in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := teamloader.LoadDir(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
			for _, def := range defs {
				fmt.Fprintf(w, "%s\t%s\t%d\n", def.ID, def.Name, len(def.Members))
			}
			return w.Flush()
		},
	}
}

func newTeamsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <definitions-dir>",
		Short: "Watch a definitions directory and validate teams as they change",
		Long: `Watch a team definitions directory. Every time a definition file is
written it is reloaded and validated, so editing mistakes surface
immediately instead of at the next session launch. Runs until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchTeams(ctx, args[0], cmd.OutOrStdout())
		},
	}
}

// watchTeams reloads and validates definitions in dir as they change,
// until ctx is cancelled.
func watchTeams(ctx context.Context, dir string, out io.Writer) error {
	defs, err := teamloader.LoadDir(dir)
	if err != nil {
		return err
	}

	watcher, err := teamloader.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Watch(dir); err != nil {
		return err
	}
	watcher.Start(ctx)
	fmt.Fprintf(out, "Watching %s (%d teams)\n", dir, len(defs))

	for ev := range watcher.Events() {
		def, err := teamloader.Load(ev.Path)
		if err != nil {
			slog.Error("Team definition rejected", "path", ev.Path, "error", err)
			fmt.Fprintf(out, "Invalid: %s: %v\n", ev.Path, err)
			continue
		}
		fmt.Fprintf(out, "Reloaded team %q (%d members) from %s\n", def.ID, len(def.Members), ev.Path)
	}
	return nil
}
