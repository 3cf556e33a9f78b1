// Package pipeline wires the acquisition pipeline together.
//
// A [Runner] owns the install root's state for the life of the process. It
// is what both the CLI and the HTTP trigger surface talk to:
//
//  1. Load: find an entry point (own root, then host root) and verify it
//  2. Install: package manager when available, archive otherwise or after
//     a package-manager failure, then reload
//  3. Status: what is loaded, from where, by which method, which version
//
// # Usage
//
//	runner, closeFn, err := pipeline.Open(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer closeFn()
//
//	if !runner.Load(ctx) {
//	    report, err := runner.Install(ctx)
//	    ...
//	}
package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/archive"
	"github.com/matzehuels/phpvendor/pkg/command"
	"github.com/matzehuels/phpvendor/pkg/config"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/integrations/packagist"
	"github.com/matzehuels/phpvendor/pkg/loader"
	"github.com/matzehuels/phpvendor/pkg/lock"
	"github.com/matzehuels/phpvendor/pkg/status"
)

// Install outcome messages, shown to users and returned by the trigger
// surface.
const (
	MsgInstalledLoaded    = "PhpSpreadsheet installed and loaded successfully"
	MsgInstalledNotLoaded = "Installation completed but library failed to load"
	MsgInstallFailed      = "Installation failed. Please check the logs or install manually."
	MsgAlreadyLoaded      = "PhpSpreadsheet is already loaded"
)

// MinPHPVersion is the oldest interpreter Prepare accepts.
const MinPHPVersion = "7.4"

// VersionSource looks up published versions. *packagist.Client implements it.
type VersionSource interface {
	FetchPackage(ctx context.Context, pkg string, refresh bool) (*packagist.PackageInfo, error)
}

// Options carries the Runner's collaborators. Nil fields get working
// defaults: real processes, no release metadata (fallback archive only), a
// file log under the root and the in-process plus file locks.
type Options struct {
	Config     *config.Config
	Commands   command.Runner
	Releases   archive.ReleaseSource
	Downloader archive.Downloader
	Versions   VersionSource
	Sink       status.Sink
	Locker     lock.Locker
	Prober     loader.Prober
	Copier     archive.Copier
	Logger     *log.Logger
}

// Validate checks the options.
func (o *Options) Validate() error {
	if o.Config == nil {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "config is required")
	}
	if o.Downloader == nil {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "downloader is required")
	}
	return o.Config.Validate()
}

// InstallReport describes one Install call.
type InstallReport struct {
	RunID string `json:"run_id"`

	// Attempts lists every installer tried, in order.
	Attempts []acquire.Result `json:"-"`

	// Result is the last attempt, or the zero Result when the library was
	// already loaded.
	Result acquire.Result `json:"-"`

	AlreadyLoaded bool           `json:"already_loaded"`
	Loaded        bool           `json:"loaded"`
	Method        acquire.Method `json:"method"`
	Version       string         `json:"version,omitempty"`
	Message       string         `json:"message"`
	Duration      time.Duration  `json:"duration"`
}

// Succeeded reports whether the library is usable after the install.
func (r *InstallReport) Succeeded() bool {
	return r.Loaded
}

// LatestReport compares the installed version with the newest published one.
type LatestReport struct {
	Package         string `json:"package"`
	Constraint      string `json:"constraint"`
	Installed       string `json:"installed"`
	Latest          string `json:"latest"`
	UpdateAvailable bool   `json:"update_available"`
}
