package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/config"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/observability"
	"github.com/matzehuels/phpvendor/pkg/pipeline"
)

// installOptions holds flags for the install command.
type installOptions struct {
	method      string
	downloadURL string
	plain       bool
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	opts := installOptions{}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install PhpSpreadsheet into the install root",
		Long: `Install PhpSpreadsheet into <root>/vendor.

Composer is used when an executable is found; otherwise, or when every
Composer invocation fails, the release archive is downloaded from GitHub
and unpacked. The library is loaded afterwards to confirm the install.`,
		Example: `  # Composer first, archive fallback
  phpvendor install

  # Skip Composer entirely
  phpvendor install --method archive

  # Install from a mirror
  phpvendor install --method archive --url https://mirror.example/phpspreadsheet-1.29.0.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstall(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "m", "", "installation method: composer or archive (default from config)")
	cmd.Flags().StringVar(&opts.downloadURL, "url", "", "archive URL; skips the release lookup")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "disable the interactive progress view")

	return cmd
}

func (c *CLI) runInstall(ctx context.Context, opts installOptions) error {
	logger := loggerFromContext(ctx)

	svc, err := c.open(ctx, func(cfg *config.Config) {
		if opts.method != "" {
			cfg.Method = opts.method
		}
		if opts.downloadURL != "" {
			cfg.Archive.DownloadURL = opts.downloadURL
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
	var report *pipeline.InstallReport
	if !opts.plain && isatty.IsTerminal(os.Stdout.Fd()) {
		report, err = runInstallTUI(ctx, r.Install)
	} else {
		report, err = runInstallPlain(ctx, r.Install)
	}
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeInstallInProgress) {
			printWarning("Another installation is already running")
			printDetail("Lock: %s", r.Layout().LockFile())
		}
		return err
	}

	printReport(report)
	prog.done("Install finished", "run", report.RunID, "loaded", report.Loaded)

	if !report.Loaded {
		printNextStep("See the install log", appName+" logs")
		return errors.New(report.Message)
	}
	return nil
}

// runInstallPlain runs install behind a Spinner on stderr.
func runInstallPlain(ctx context.Context, install func(context.Context) (*pipeline.InstallReport, error)) (*pipeline.InstallReport, error) {
	spinner := newSpinner(ctx, os.Stderr, "Installing PhpSpreadsheet")
	spinner.Start()
	defer spinner.Stop()

	restore := watchInstall(func(text string, failed bool) {
		spinner.SetMessage(text)
	})
	defer restore()

	return install(ctx)
}

// watchInstall routes install hook events to fn as one-line descriptions
// until the returned function is called.
func watchInstall(fn func(text string, failed bool)) (restore func()) {
	observability.SetInstallHooks(observability.InstallFuncs{
		Probe: func(_ context.Context, exe string, found bool) {
			if found {
				fn("Found Composer: "+exe, false)
			}
		},
		AttemptStart: func(_ context.Context, method string) {
			switch acquire.Method(method) {
			case acquire.MethodPackageManager:
				fn("Running composer install", false)
			case acquire.MethodArchive:
				fn("Downloading release archive", false)
			}
		},
		AttemptComplete: func(_ context.Context, method string, d time.Duration, err error) {
			label := methodLabel(acquire.Method(method))
			if err != nil {
				fn(fmt.Sprintf("%s failed: %s", label, firstLine(apperrors.UserMessage(err))), true)
				return
			}
			fn(fmt.Sprintf("%s finished in %s", label, d.Round(time.Millisecond)), false)
		},
		Loaded: func(_ context.Context, entryPoint string) {
			fn("Loaded from "+entryPoint, false)
		},
	})
	return func() { observability.SetInstallHooks(observability.NoopInstallHooks{}) }
}

// printReport prints the outcome of one install run.
func printReport(rep *pipeline.InstallReport) {
	if rep.AlreadyLoaded {
		printSuccess("%s", rep.Message)
		return
	}

	for _, a := range rep.Attempts {
		printAttempt(a)
	}
	if rep.Loaded {
		printSuccess("%s", rep.Message)
		printKeyValue("Method", methodLabel(rep.Method))
		if rep.Version != "" {
			printKeyValue("Version", rep.Version)
		}
		printKeyValue("Took", rep.Duration.Round(time.Millisecond).String())
		return
	}
	printError("%s", rep.Message)
}
