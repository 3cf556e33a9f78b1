package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/archive"
	"github.com/matzehuels/phpvendor/pkg/command"
	"github.com/matzehuels/phpvendor/pkg/composer"
	"github.com/matzehuels/phpvendor/pkg/config"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/layout"
	"github.com/matzehuels/phpvendor/pkg/loader"
	"github.com/matzehuels/phpvendor/pkg/locator"
	"github.com/matzehuels/phpvendor/pkg/lock"
	"github.com/matzehuels/phpvendor/pkg/status"
)

// Runner drives the load and install pipeline for one install root.
//
// Install runs are strictly sequential; a second concurrent Install is
// rejected with INSTALL_IN_PROGRESS. All other methods are safe for
// concurrent use.
type Runner struct {
	cfg    *config.Config
	opts   Options
	layout layout.Layout

	loader    *loader.Loader
	lifecycle *Lifecycle
	local     lock.Local

	mu         sync.Mutex
	methodUsed acquire.Method
}

// NewRunner creates a Runner. See Options for the defaults of nil fields.
func NewRunner(opts Options) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config
	l := layout.New(cfg.Root)

	if opts.Commands == nil {
		opts.Commands = command.NewExecRunner()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sink == nil {
		opts.Sink = status.NewFileSink(l.LogFile(), opts.Logger)
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewFile(l.LockFile())
	}
	if opts.Prober == nil {
		opts.Prober = loader.ChainProber{
			Primary:  loader.NewPHPProber(opts.Commands, cfg.Composer.PHP, cfg.Timeouts.Probe),
			Fallback: loader.NewStaticProber(archive.ShimFor(cfg.Package.Name, cfg.Package.Symbol)),
		}
	}

	lc, err := NewLifecycle()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err, "build lifecycle")
	}

	return &Runner{
		cfg:    cfg,
		opts:   opts,
		layout: l,
		loader: loader.New(loader.Options{
			Candidates: locator.Candidates(cfg.Root, cfg.HostRoot),
			Symbol:     cfg.Package.Symbol,
			Prober:     opts.Prober,
			Journal:    opts.Sink,
			Logger:     opts.Logger,
		}),
		lifecycle:  lc,
		methodUsed: acquire.MethodNone,
	}, nil
}

// Layout returns the managed directory layout.
func (r *Runner) Layout() layout.Layout { return r.layout }

// Config returns the validated configuration the Runner was built with.
func (r *Runner) Config() *config.Config { return r.cfg }

// Sink returns the diagnostic log.
func (r *Runner) Sink() status.Sink { return r.opts.Sink }

// Prepare checks the runtime and creates the managed directories. When a
// PHP interpreter is installed it must be at least MinPHPVersion; a missing
// interpreter is not an error.
func (r *Runner) Prepare(ctx context.Context) error {
	if err := r.checkPHP(ctx); err != nil {
		return err
	}
	return r.layout.Prepare()
}

func (r *Runner) checkPHP(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Probe)
	defer cancel()

	res, err := r.opts.Commands.Run(ctx, "", r.cfg.Composer.PHP, "-r", "echo PHP_VERSION;")
	if err != nil || !res.Success() {
		r.opts.Logger.Debug("php version check skipped", "err", err, "exit", res.ExitCode)
		return nil
	}

	raw := strings.TrimSpace(res.Stdout)
	v, err := semver.NewVersion(raw)
	if err != nil {
		r.opts.Logger.Debug("unparsable php version", "version", raw)
		return nil
	}
	c, _ := semver.NewConstraint(">= " + MinPHPVersion)
	if !c.Check(v) {
		return apperrors.New(apperrors.ErrCodeEnvAbsent, "PHP %s or newer is required, found %s", MinPHPVersion, raw)
	}
	return nil
}

// Bootstrap is the start-up sequence: load when auto_load is set, and
// install when nothing loaded and auto_install is set.
func (r *Runner) Bootstrap(ctx context.Context) (bool, error) {
	if r.cfg.AutoLoad && r.Load(ctx) {
		return true, nil
	}
	if !r.cfg.AutoInstall {
		return false, nil
	}
	report, err := r.Install(ctx)
	if err != nil {
		return false, err
	}
	return report.Loaded, nil
}

// Load makes the library available. See loader.Loader.Load.
func (r *Runner) Load(ctx context.Context) bool {
	if r.loader.Loaded() {
		return true
	}
	if _, ok := locator.Locate(r.loader.Candidates()); !ok {
		r.loader.Load(ctx) // records checked paths and logs the miss
		r.lifecycle.Fire(EventMissing)
		return false
	}

	r.lifecycle.Fire(EventLocated)
	if r.loader.Load(ctx) {
		r.lifecycle.Fire(EventVerified)
		return true
	}
	r.lifecycle.Fire(EventRejected)
	return false
}

// IsLoaded reports whether the library has been loaded.
func (r *Runner) IsLoaded() bool {
	return r.loader.Loaded()
}

// Version returns the loaded library's version, "Installed" when it carries
// no manifest, or "Unknown". ok is false when nothing is loaded.
func (r *Runner) Version() (v string, ok bool) {
	res := r.loader.Result()
	if !res.Loaded {
		return "", false
	}
	return status.Version(res.DefiningFile), true
}

// Status returns the current installation state.
func (r *Runner) Status() status.State {
	res := r.loader.Result()

	st := status.NewState()
	st.CheckedPaths = res.Checked
	st.Loaded = res.Loaded
	st.LoadedFrom = res.EntryPoint
	st.DefiningFile = res.DefiningFile
	st.Phase = r.lifecycle.Phase()
	if st.Loaded {
		st.Version = status.Version(res.DefiningFile)
	}

	r.mu.Lock()
	st.MethodUsed = r.methodUsed
	r.mu.Unlock()
	return st
}

// Request builds the acquisition request from the configuration.
func (r *Runner) Request() acquire.Request {
	return acquire.Request{
		TargetDir:   r.cfg.Root,
		Package:     r.cfg.Package.Name,
		Constraint:  r.cfg.Package.Constraint,
		DownloadURL: r.cfg.Archive.DownloadURL,
		MetadataURL: r.cfg.Archive.MetadataURL,
	}
}

// Install acquires the library and loads it. An already loaded library is
// reported as success without doing anything. Install failures are reported
// in the InstallReport; an error is returned only when the run could not
// start (lock held, layout not writable).
func (r *Runner) Install(ctx context.Context) (*InstallReport, error) {
	start := time.Now()
	report := &InstallReport{RunID: uuid.NewString(), Method: acquire.MethodNone}
	logger := r.opts.Logger.With("run", report.RunID[:8])

	if r.loader.Loaded() {
		report.AlreadyLoaded = true
		report.Loaded = true
		report.Message = MsgAlreadyLoaded
		report.Version, _ = r.Version()
		r.mu.Lock()
		report.Method = r.methodUsed
		r.mu.Unlock()
		return report, nil
	}

	release, err := lock.Multi{&r.local, r.opts.Locker}.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.layout.Prepare(); err != nil {
		return nil, err
	}

	r.lifecycle.Fire(EventInstall)
	req := r.Request()

	for _, inst := range r.installers(ctx, logger) {
		logger.Info("installing", "method", inst.Method())
		res := acquire.Attempt(ctx, inst, req)
		report.Attempts = append(report.Attempts, res)
		report.Result = res
		r.journalAttempt(ctx, res)

		if res.Success {
			logger.Info("install succeeded", "method", res.Method, "version", res.ResolvedVersion, "duration", res.Duration)
			break
		}
		logger.Warn("install failed", "method", res.Method, "code", res.Code(), "detail", res.FailureDetail)
		if ctx.Err() != nil {
			break
		}
	}
	report.Duration = time.Since(start)

	if !report.Result.Success {
		r.lifecycle.Fire(EventInstallFailed)
		report.Message = MsgInstallFailed
		return report, nil
	}

	r.lifecycle.Fire(EventInstalled)
	r.mu.Lock()
	r.methodUsed = report.Result.Method
	r.mu.Unlock()
	report.Method = report.Result.Method
	report.Version = report.Result.ResolvedVersion

	r.loader.Reset()
	if r.loader.Load(ctx) {
		r.lifecycle.Fire(EventVerified)
		report.Loaded = true
		report.Message = MsgInstalledLoaded
		if v, ok := r.Version(); ok && v != status.VersionInstalled && v != status.VersionUnknown {
			report.Version = v
		}
	} else {
		r.lifecycle.Fire(EventRejected)
		report.Message = MsgInstalledNotLoaded
	}
	return report, nil
}

// installers returns the strategies to try in order: the package manager
// when configured and found, then the archive.
func (r *Runner) installers(ctx context.Context, logger *log.Logger) []acquire.Installer {
	cfg := r.cfg
	var out []acquire.Installer

	if cfg.Method == config.MethodComposer {
		sel := composer.NewSelector(r.opts.Commands, composer.SelectorOptions{
			Candidates: cfg.Composer.Candidates,
			WorkDir:    cfg.Root,
			PHP:        cfg.Composer.PHP,
			Timeout:    cfg.Timeouts.Probe,
			Logger:     logger,
		})
		if s := sel.Select(ctx); s.Method == acquire.MethodPackageManager {
			out = append(out, composer.NewInstaller(r.opts.Commands, composer.InstallerOptions{
				Executable: s.Executable,
				PHP:        cfg.Composer.PHP,
				Timeout:    cfg.Timeouts.Install,
				Logger:     logger,
			}))
		}
	}

	out = append(out, archive.NewInstaller(r.opts.Releases, r.opts.Downloader, archive.Options{
		Owner:           cfg.Package.Owner,
		Repo:            cfg.Package.Repo,
		FallbackURL:     cfg.Package.FallbackURL,
		FallbackVersion: cfg.Package.FallbackVersion,
		MinBytes:        cfg.Archive.MinBytes,
		MaxBytes:        cfg.Archive.MaxBytes,
		MetadataTimeout: cfg.Timeouts.Metadata,
		DownloadTimeout: cfg.Timeouts.Download,
		Copier:          r.opts.Copier,
		Shim:            archive.ShimFor(cfg.Package.Name, cfg.Package.Symbol),
		Journal:         r.opts.Sink,
		Logger:          logger,
	}))
	return out
}

// journalAttempt writes the outcome lines the archive installer does not
// write itself.
func (r *Runner) journalAttempt(ctx context.Context, res acquire.Result) {
	sink := r.opts.Sink
	switch {
	case res.Success && res.Method == acquire.MethodPackageManager:
		sink.Log(ctx, "PhpSpreadsheet installed successfully via Composer")
	case res.Success:
		v := res.ResolvedVersion
		if v == "" {
			v = "unknown"
		}
		sink.Log(ctx, "PhpSpreadsheet installed successfully (precompiled version: "+v+")")
	case res.Method == acquire.MethodPackageManager:
		sink.Log(ctx, res.FailureDetail)
	case res.Code() == apperrors.ErrCodeInvalidInput || res.Code() == apperrors.ErrCodeInvalidPackage:
		sink.Log(ctx, res.FailureDetail)
	}
}

// CheckLatest compares the installed version with the newest published
// release satisfying the configured constraint.
func (r *Runner) CheckLatest(ctx context.Context, refresh bool) (*LatestReport, error) {
	if r.opts.Versions == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "no version source configured")
	}
	info, err := r.opts.Versions.FetchPackage(ctx, r.cfg.Package.Name, refresh)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeNetwork, err, "fetch %s metadata", r.cfg.Package.Name)
	}
	latest, err := info.LatestMatching(r.cfg.Package.Constraint)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, err, "no release of %s satisfies %s", r.cfg.Package.Name, r.cfg.Package.Constraint)
	}

	rep := &LatestReport{
		Package:    r.cfg.Package.Name,
		Constraint: r.cfg.Package.Constraint,
		Latest:     latest.Version,
	}
	rep.Installed, _ = r.Version()

	lv, err := semver.NewVersion(latest.Version)
	if err != nil {
		return rep, nil
	}
	if iv, err := semver.NewVersion(rep.Installed); err == nil {
		rep.UpdateAvailable = lv.GreaterThan(iv)
	} else {
		rep.UpdateAvailable = rep.Installed == ""
	}
	return rep, nil
}

// Uninstall removes the managed directories and forgets the loaded state.
// With keepLibrary only temp/ and logs/ are removed. It takes the install
// lock, so it fails with INSTALL_IN_PROGRESS while an install runs in this
// or any other process.
func (r *Runner) Uninstall(ctx context.Context, keepLibrary bool) ([]string, error) {
	release, err := lock.Multi{&r.local, r.opts.Locker}.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	removed, err := r.layout.Remove(keepLibrary)
	if err != nil {
		return removed, err
	}
	if !keepLibrary {
		r.loader.Reset()
		r.mu.Lock()
		r.methodUsed = acquire.MethodNone
		r.mu.Unlock()
		if err := r.lifecycle.Reset(); err != nil {
			return removed, apperrors.Wrap(apperrors.ErrCodeInternal, err, "reset lifecycle")
		}
	}
	return removed, nil
}

// Close releases the Runner's resources.
func (r *Runner) Close() error {
	r.lifecycle.Stop()
	return r.opts.Sink.Close()
}
