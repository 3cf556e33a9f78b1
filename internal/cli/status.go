package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/pipeline"
	"github.com/matzehuels/phpvendor/pkg/status"
)

// statusOptions holds flags for the status command.
type statusOptions struct {
	checkLatest bool
	refresh     bool
	json        bool
}

// statusCommand creates the status command.
func (c *CLI) statusCommand() *cobra.Command {
	opts := statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether PhpSpreadsheet loads, and from where",
		Long: `Try every load candidate and report the installation state: whether the
library loads, the entry point it loads from, its version and the paths that
were checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.checkLatest, "check-latest", false, "compare with the newest release on Packagist")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the metadata cache for --check-latest")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the state as JSON")

	return cmd
}

// statusView is the JSON shape of the status command.
type statusView struct {
	status.State
	Latest *pipeline.LatestReport `json:"latest,omitempty"`
}

func (c *CLI) runStatus(ctx context.Context, opts statusOptions) error {
	logger := loggerFromContext(ctx)

	svc, err := c.open(ctx, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	r := svc.Runner
	r.Load(ctx)
	view := statusView{State: r.Status()}

	if opts.checkLatest {
		latest, err := r.CheckLatest(ctx, opts.refresh)
		if err != nil {
			logger.Warn("latest version check failed", "err", err)
		}
		view.Latest = latest
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	printState(view.State)
	if view.Latest != nil {
		printLatest(view.Latest)
	}
	return nil
}

// printState prints the installation state, with the install hint when the
// library is not loaded.
func printState(st status.State) {
	printKeyValue("Loaded", boolText(st.Loaded))
	if st.Loaded {
		printKeyValue("Version", st.Version)
		printKeyValue("Entry point", st.LoadedFrom)
		if st.DefiningFile != "" {
			printKeyValue("Class file", st.DefiningFile)
		}
	}
	if st.MethodUsed != "" && st.MethodUsed != acquire.MethodNone {
		printKeyValue("Installed by", methodLabel(st.MethodUsed))
	}
	printKeyValue("Phase", string(st.Phase))

	if len(st.CheckedPaths) > 0 {
		printKeyValue("Checked", st.CheckedPaths[0])
		for _, p := range st.CheckedPaths[1:] {
			printKeyValue("", p)
		}
	}

	if !st.Loaded {
		printWarning("PhpSpreadsheet is not installed. Spreadsheet export is unavailable.")
		printNextStep("Install it with", appName+" install")
	}
}

func printLatest(rep *pipeline.LatestReport) {
	printKeyValue("Latest", rep.Latest+" "+StyleDim.Render("("+rep.Constraint+")"))
	if rep.UpdateAvailable {
		printWarning("A newer release is available: %s", rep.Latest)
		printNextStep("Update with", appName+" uninstall && "+appName+" install")
	}
}
