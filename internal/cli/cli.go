// Package cli implements the phpvendor command-line interface.
//
// The commands drive the acquisition pipeline from a terminal:
//   - install: acquire the library (Composer first, release archive second)
//   - status: report whether the library loads, and from where
//   - load: run the start-up sequence (load, optionally install)
//   - serve: expose the install trigger over HTTP
//   - logs, cache, config, uninstall: housekeeping
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// carried in the command's context.Context and handed to the pipeline.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phpvendor/pkg/buildinfo"
	"github.com/matzehuels/phpvendor/pkg/config"
	"github.com/matzehuels/phpvendor/pkg/pipeline"
)

const appName = "phpvendor"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	root       string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "phpvendor installs and loads the PhpSpreadsheet library",
		Long: `phpvendor makes PhpSpreadsheet available to a PHP application without
manual setup. It installs the library with Composer when Composer is present
and falls back to a release archive otherwise, then verifies that it loads.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default: phpvendor.toml or phpvendor.yaml in the working directory)")
	flags.StringVar(&c.root, "root", "", "install root; overrides the config file")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the metadata cache")

	root.AddCommand(c.installCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.loadCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.logsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.uninstallCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// loadConfig reads the configuration and applies the global flags.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.root != "" {
		cfg.Root = c.root
	}
	if c.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	return cfg, cfg.Validate()
}

// open wires the pipeline for one command. The caller closes the result.
func (c *CLI) open(ctx context.Context, adjust func(*config.Config)) (*pipeline.Services, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	return pipeline.Open(ctx, cfg, loggerFromContext(ctx))
}
