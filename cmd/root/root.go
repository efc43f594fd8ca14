// Package root implements the teamwire command line interface.
package root

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamwire/teamwire/pkg/paths"
)

var (
	sessionDB string
	debugLogs bool
)

// NewRootCmd builds the teamwire root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "teamwire",
		Short:         "Coordinate a team of agent conversations in a shared workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if debugLogs {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&sessionDB, "session-db", paths.SessionDBPath(), "Path to the team session database")
	cmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newRunCmd(),
		newSessionsCmd(),
		newTeamsCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		return 1
	}
	return 0
}
