// Package cli provides the todo-backend command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"todo-backend/infrastructure/config"
)

// NewRootCommand builds the command tree. Without a subcommand it serves HTTP.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "todo-backend",
		Short: "Collaborative todo backend",
		Long: `todo-backend serves the todo API, delivers collaboration invitations
and keeps the per-user audit trail.`,
		SilenceUsage: true,
	}

	serve := newServeCommand()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newWorkerCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newTrailCommand())
	root.AddCommand(newTokenCommand())
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration
var loadConfig = config.LoadConfig
