package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phpvendor/pkg/status"
)

// logsCommand creates the logs command.
func (c *CLI) logsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the installation log",
		Long: `Print the most recent entries of the installation log, oldest first.
With log.backend = "mongo" the shared log of every host is read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.open(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			entries, err := svc.Runner.Sink().Entries(ctx, limit)
			if err != nil {
				return fmt.Errorf("read log: %w", err)
			}
			if len(entries) == 0 {
				printInfo("The installation log is empty")
				printDetail("Log file: %s", svc.Runner.Layout().LogFile())
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(stdout, "%s %s\n", StyleDim.Render("["+e.Time.Format(status.TimeFormat)+"]"), e.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries to print; 0 prints all")

	return cmd
}
