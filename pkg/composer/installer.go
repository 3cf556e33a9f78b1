package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/command"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/layout"
	"github.com/matzehuels/phpvendor/pkg/locator"
)

// InstallArgs are passed to every install command.
var InstallArgs = []string{"install", "--no-dev", "--optimize-autoloader", "--no-interaction"}

// Installer acquires the library by running `composer install` in the
// install root.
type Installer struct {
	runner     command.Runner
	php        string
	executable string
	timeout    time.Duration
	logger     *log.Logger
}

// InstallerOptions configures an Installer.
type InstallerOptions struct {
	// Executable is the Composer found by the Selector. It is tried after
	// the bare "composer" and "php composer.phar" variants.
	Executable string

	// PHP runs .phar variants. Defaults to "php".
	PHP string

	// Timeout bounds each install command. Defaults to 5 minutes.
	Timeout time.Duration

	Logger *log.Logger
}

// NewInstaller creates an Installer.
func NewInstaller(r command.Runner, opts InstallerOptions) *Installer {
	if opts.PHP == "" {
		opts.PHP = "php"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Installer{
		runner:     r,
		php:        opts.PHP,
		executable: opts.Executable,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
}

// Method implements acquire.Installer.
func (i *Installer) Method() acquire.Method { return acquire.MethodPackageManager }

// Commands returns the install command variants in the order they are tried.
func (i *Installer) Commands() []command.Call {
	exes := []string{"composer", "composer.phar"}
	if i.executable != "" {
		exes = append(exes, i.executable)
	} else {
		exes = append(exes, "composer")
	}

	var calls []command.Call
	seen := make(map[string]bool)
	for _, exe := range exes {
		name, args := invocation(i.php, exe, InstallArgs...)
		c := command.Call{Command: name, Args: args}
		if seen[c.String()] {
			continue
		}
		seen[c.String()] = true
		calls = append(calls, c)
	}
	return calls
}

// Install writes the manifest and runs the command variants in the target
// directory until one exits 0. Success additionally requires
// vendor/autoload.php to exist afterwards.
func (i *Installer) Install(ctx context.Context, req acquire.Request) acquire.Result {
	l := layout.New(req.TargetDir)
	if err := layout.EnsureDir(l.Root); err != nil {
		return acquire.Failed(i.Method(), err)
	}
	if err := NewManifest(req.Package, req.Constraint).WriteFile(l.Manifest()); err != nil {
		return acquire.Failed(i.Method(), err)
	}

	var lastOutput string
	var lastErr error
	succeeded := false
	for _, c := range i.Commands() {
		res, err := i.run(ctx, l.Root, c)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res.Success() {
			succeeded = true
			break
		}
		lastOutput = res.Output()
		lastErr = nil
		i.logger.Debug("install command failed", "cmd", c.String(), "exit", res.ExitCode)
	}

	if !succeeded {
		detail := lastOutput
		if detail == "" && lastErr != nil {
			detail = lastErr.Error()
		}
		code := apperrors.ErrCodeSubprocess
		switch {
		case errors.Is(lastErr, context.DeadlineExceeded):
			code = apperrors.ErrCodeTimeout
		case lastOutput == "" && command.IsNotFound(lastErr):
			code = apperrors.ErrCodeEnvAbsent
		}
		return acquire.Failed(i.Method(), apperrors.New(code, "Composer installation failed. Output: %s", FailureOutput(detail)))
	}

	if !locator.Exists(l.EntryPoint()) {
		return acquire.Failed(i.Method(), apperrors.New(apperrors.ErrCodeEntryPointMissing,
			"Composer exited successfully but %s is missing", l.EntryPoint()))
	}

	return acquire.Succeeded(i.Method(), InstalledVersion(l.VendorDir(), req.Package))
}

func (i *Installer) run(ctx context.Context, dir string, c command.Call) (command.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	i.logger.Debug("running", "cmd", c.String(), "dir", dir)
	res, err := i.runner.Run(ctx, dir, c.Command, c.Args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.String(), err)
	}
	return res, nil
}

// FailureOutput trims subprocess output for log lines.
func FailureOutput(s string) string {
	const limit = 2000
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}

var _ acquire.Installer = (*Installer)(nil)

// InstalledVersion reads pkg's version from vendor/composer/installed.json.
// Both the Composer 2 object form and the Composer 1 array form are
// understood. It returns "" when the version cannot be determined.
func InstalledVersion(vendorDir, pkg string) string {
	data, err := os.ReadFile(filepath.Join(vendorDir, "composer", "installed.json"))
	if err != nil {
		return ""
	}

	var v2 struct {
		Packages []installedPackage `json:"packages"`
	}
	var pkgs []installedPackage
	if json.Unmarshal(data, &v2) == nil && v2.Packages != nil {
		pkgs = v2.Packages
	} else if json.Unmarshal(data, &pkgs) != nil {
		return ""
	}

	for _, p := range pkgs {
		if strings.EqualFold(p.Name, pkg) {
			return p.Version
		}
	}
	return ""
}

type installedPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
