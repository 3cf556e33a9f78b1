package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phpvendor/pkg/config"
)

var errNotLoaded = errors.New("PhpSpreadsheet library not found")

// loadCommand creates the load command.
func (c *CLI) loadCommand() *cobra.Command {
	var autoInstall bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run the start-up sequence: load, and install when configured",
		Long: `Prepare the install root, then try to load the library. When nothing loads
and auto_install is set (or --install is given), run the installer.

The command exits non-zero when the library is not available afterwards, so
it can gate deploy scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLoad(cmd.Context(), autoInstall)
		},
	}

	cmd.Flags().BoolVar(&autoInstall, "install", false, "install when the library does not load")

	return cmd
}

func (c *CLI) runLoad(ctx context.Context, autoInstall bool) error {
	logger := loggerFromContext(ctx)

	svc, err := c.open(ctx, func(cfg *config.Config) {
		cfg.AutoLoad = true
		if autoInstall {
			cfg.AutoInstall = true
		}
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	r := svc.Runner
	if err := r.Prepare(ctx); err != nil {
		return err
	}

	prog := newProgress(logger)
	ok, err := r.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if !ok {
		printState(r.Status())
		return errNotLoaded
	}

	st := r.Status()
	prog.done("Loaded", "entry", st.LoadedFrom)
	printSuccess("PhpSpreadsheet %s loaded from %s", st.Version, st.LoadedFrom)
	return nil
}
