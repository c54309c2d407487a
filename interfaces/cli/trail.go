package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	domaintracing "todo-backend/domain/tracing"
	"todo-backend/infrastructure/di"
)

func newTrailCommand() *cobra.Command {
	var (
		window     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "trail <username>",
		Short: "Print a user's audit trail",
		Long: `Print the breadcrumbs recorded for a user.

Example:
  todo-backend trail alice
  todo-backend trail alice --window two-weeks --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			container, err := di.NewContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			var crumbs []domaintracing.Breadcrumb
			switch window {
			case "all":
				crumbs, err = container.Sink.FindAllEventsForUser(cmd.Context(), args[0])
			case "two-weeks":
				crumbs, err = container.Sink.FindUserTraceForLastTwoWeeks(cmd.Context(), args[0])
			default:
				return fmt.Errorf("--window must be all or two-weeks")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(crumbs)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIMESTAMP\tURI\tID")
			for _, b := range crumbs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Timestamp.Format(time.RFC3339), b.URI, b.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&window, "window", "all", "all or two-weeks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	return cmd
}
