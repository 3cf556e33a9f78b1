package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/httputil"
	"github.com/matzehuels/phpvendor/pkg/integrations/github"
	"github.com/matzehuels/phpvendor/pkg/layout"
)

// ReleaseSource resolves release descriptors. *github.Client implements it.
type ReleaseSource interface {
	ReleaseURL(owner, repo string) string
	ReleaseAt(ctx context.Context, url string, refresh bool) (*github.Release, error)
}

// Downloader streams a URL into w. *integrations.Client implements it.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer, maxBytes int64, reset func() error) (int64, error)
}

// Options configures an Installer. Zero values take the defaults noted.
type Options struct {
	Owner string // default "PHPOffice"
	Repo  string // default "PhpSpreadsheet"

	// FallbackURL and FallbackVersion are used whenever the release lookup
	// fails for any reason.
	FallbackURL     string
	FallbackVersion string

	MinBytes int64 // default 1000
	MaxBytes int64 // default 100 MiB

	MetadataTimeout time.Duration // default 15s
	DownloadTimeout time.Duration // default 5m

	// Copier is tried first for every file. Nil copies with PlainCopier only.
	Copier Copier

	// Shim is written to vendor/autoload.php, with PackageDir set to the
	// requested package and SourceDir taken from its composer.json when it
	// maps Prefix. Default DefaultShim.
	Shim Shim

	Journal acquire.Journal
	Logger  *log.Logger
}

// Installer acquires the library from a release archive.
type Installer struct {
	releases   ReleaseSource
	downloader Downloader
	opts       Options
}

// NewInstaller creates an Installer. releases may be nil, in which case the
// fallback archive is always used.
func NewInstaller(releases ReleaseSource, dl Downloader, opts Options) *Installer {
	if opts.Owner == "" {
		opts.Owner = "PHPOffice"
	}
	if opts.Repo == "" {
		opts.Repo = "PhpSpreadsheet"
	}
	if opts.FallbackVersion == "" {
		opts.FallbackVersion = "1.29.0"
	}
	if opts.FallbackURL == "" {
		opts.FallbackURL = "https://github.com/PHPOffice/PhpSpreadsheet/archive/refs/tags/" + opts.FallbackVersion + ".zip"
	}
	if opts.MinBytes <= 0 {
		opts.MinBytes = 1000
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 100 << 20
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 15 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 5 * time.Minute
	}
	if opts.Shim == (Shim{}) {
		opts.Shim = DefaultShim
	}
	if opts.Journal == nil {
		opts.Journal = acquire.NopJournal{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Installer{releases: releases, downloader: dl, opts: opts}
}

// Method implements acquire.Installer.
func (i *Installer) Method() acquire.Method { return acquire.MethodArchive }

// Target is the archive an install will fetch.
type Target struct {
	URL          string
	Version      string
	FromMetadata bool
}

// Resolve picks the archive to download. An explicit req.DownloadURL wins,
// with the version read from its last path segment when it names one;
// otherwise the latest release is looked up, and any failure there yields
// the fallback archive.
func (i *Installer) Resolve(ctx context.Context, req acquire.Request) Target {
	if req.DownloadURL != "" {
		return Target{URL: req.DownloadURL, Version: versionFromURL(req.DownloadURL)}
	}
	fallback := Target{URL: i.opts.FallbackURL, Version: i.opts.FallbackVersion}
	if i.releases == nil {
		return fallback
	}

	metaURL := req.MetadataURL
	if metaURL == "" {
		metaURL = i.releases.ReleaseURL(i.opts.Owner, i.opts.Repo)
	}

	ctx, cancel := context.WithTimeout(ctx, i.opts.MetadataTimeout)
	defer cancel()

	rel, err := i.releases.ReleaseAt(ctx, metaURL, false)
	if err != nil {
		i.opts.Logger.Warn("release lookup failed, using fallback archive", "url", metaURL, "err", err, "fallback", fallback.Version)
		return fallback
	}
	return Target{URL: rel.ZipballURL, Version: rel.TagName, FromMetadata: true}
}

// Install downloads, extracts and copies the archive into
// vendor/<package>, then writes the autoloader shim. Temporary files are
// removed on every outcome; files already copied are not rolled back.
func (i *Installer) Install(ctx context.Context, req acquire.Request) acquire.Result {
	l := layout.New(req.TargetDir)
	if err := layout.EnsureDir(l.TempDir()); err != nil {
		return i.fail(ctx, err)
	}

	target := i.Resolve(ctx, req)
	i.opts.Journal.Log(ctx, "Downloading PhpSpreadsheet from: "+target.URL)

	archivePath, err := i.download(ctx, l, target.URL)
	if archivePath != "" {
		defer os.Remove(archivePath)
	}
	if err != nil {
		return i.fail(ctx, err)
	}

	extractDir, err := os.MkdirTemp(l.TempDir(), "extract-*")
	if err != nil {
		return i.fail(ctx, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "Extraction failed: %v", err))
	}
	defer os.RemoveAll(extractDir)

	dirs, err := Extract(archivePath, extractDir, 8*i.opts.MaxBytes)
	if err != nil {
		return i.fail(ctx, err)
	}
	if len(dirs) == 0 {
		return i.fail(ctx, apperrors.New(apperrors.ErrCodeCorruptArtifact, "No directories found after extraction"))
	}

	source := filepath.Join(extractDir, dirs[0])
	i.opts.Journal.Log(ctx, "Extracted to: "+source)

	if err := layout.EnsureDir(l.VendorDir()); err != nil {
		return i.fail(ctx, err)
	}
	pkgDir := l.PackageDir(req.Package)
	stats, err := CopyTree(source, pkgDir, i.opts.Copier)
	if err != nil {
		return i.fail(ctx, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "Failed to copy extracted files"))
	}
	i.opts.Logger.Debug("copied archive", "files", stats.Files, "dirs", stats.Dirs, "fallbacks", stats.Fallbacks)

	shim := i.shimFor(l, pkgDir)
	i.opts.Logger.Debug("writing autoloader", "prefix", shim.Prefix, "dir", path.Join(shim.PackageDir, shim.SourceDir))
	if err := shim.Write(l.EntryPoint()); err != nil {
		return i.fail(ctx, err)
	}

	version := target.Version
	if version == "" {
		version = manifestVersion(pkgDir)
	}
	return acquire.Succeeded(i.Method(), version)
}

// versionFromURL reads the release version from archive URLs such as
// .../archive/refs/tags/1.29.0.zip or .../zipball/v1.29.0. It returns ""
// when the last path segment is not a version.
func versionFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	for _, ext := range []string{".zip", ".tar.gz", ".tgz"} {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.TrimPrefix(name, "v")
	if _, err := semver.StrictNewVersion(name); err != nil {
		return ""
	}
	return name
}

// manifestVersion returns the "version" field of pkgDir/composer.json, or "".
func manifestVersion(pkgDir string) string {
	data, err := os.ReadFile(filepath.Join(pkgDir, "composer.json"))
	if err != nil {
		return ""
	}
	var m struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(data, &m) != nil {
		return ""
	}
	return m.Version
}

// shimFor points the configured shim at pkgDir, where the files were
// copied, and at the source directory the package's manifest declares.
func (i *Installer) shimFor(l layout.Layout, pkgDir string) Shim {
	shim := i.opts.Shim
	if rel, err := filepath.Rel(l.VendorDir(), pkgDir); err == nil {
		shim.PackageDir = filepath.ToSlash(rel)
	}
	return shim.WithManifest(pkgDir)
}

// fail journals err's message and returns the failed Result.
func (i *Installer) fail(ctx context.Context, err error) acquire.Result {
	i.opts.Journal.Log(ctx, apperrors.UserMessage(err))
	return acquire.Failed(i.Method(), err)
}

// download fetches src into a fresh file under temp/ and checks its size.
// The returned path is non-empty whenever a file was created.
func (i *Installer) download(ctx context.Context, l layout.Layout, src string) (string, error) {
	f, err := os.CreateTemp(l.TempDir(), "phpspreadsheet-*.zip")
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create temp archive")
	}
	defer f.Close()

	reset := func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return f.Truncate(0)
	}

	ctx, cancel := context.WithTimeout(ctx, i.opts.DownloadTimeout)
	defer cancel()

	n, err := i.downloader.Download(ctx, src, f, i.opts.MaxBytes, reset)
	switch {
	case errors.Is(err, httputil.ErrTooLarge):
		return f.Name(), apperrors.Wrap(apperrors.ErrCodeCorruptArtifact, err, "Downloaded file exceeds %d bytes", i.opts.MaxBytes)
	case errors.Is(err, context.DeadlineExceeded):
		return f.Name(), apperrors.Wrap(apperrors.ErrCodeTimeout, err, "Download timed out after %s", i.opts.DownloadTimeout)
	case err != nil:
		return f.Name(), apperrors.Wrap(apperrors.ErrCodeNetwork, err, "Download failed: %v", err)
	case n == 0:
		return f.Name(), apperrors.New(apperrors.ErrCodeCorruptArtifact, "Downloaded file is empty")
	case n < i.opts.MinBytes:
		return f.Name(), apperrors.New(apperrors.ErrCodeCorruptArtifact, "Downloaded file is invalid or too small (%d bytes)", n)
	}

	if err := f.Close(); err != nil {
		return f.Name(), apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "write temp archive")
	}
	return f.Name(), nil
}

var _ acquire.Installer = (*Installer)(nil)
