package cli

import (
	"github.com/spf13/cobra"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// uninstallCommand creates the uninstall command.
func (c *CLI) uninstallCommand() *cobra.Command {
	var keepLibrary bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the directories phpvendor created",
		Long: `Remove vendor/, temp/ and logs/ from the install root. With --keep-library
the installed library is left in place and only temp/ and logs/ go.

The install lock file in temp/ is kept, and uninstall refuses to run while
an install holds it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.open(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			removed, err := svc.Runner.Uninstall(ctx, keepLibrary)
			for _, p := range removed {
				printFile(p)
			}
			if err != nil {
				if apperrors.Is(err, apperrors.ErrCodeInstallInProgress) {
					printWarning("An installation is running, nothing was removed")
					printDetail("Lock: %s", svc.Runner.Layout().LockFile())
				}
				return err
			}
			if len(removed) == 0 {
				printInfo("Nothing to remove")
				return nil
			}
			printSuccess("Removed %d paths", len(removed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepLibrary, "keep-library", false, "keep vendor/ and remove only temp/ and logs/")

	return cmd
}
