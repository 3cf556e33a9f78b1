// Package layout describes the directory tree phpvendor manages below an
// install root:
//
//	<root>/vendor/                      library sources and autoload.php
//	<root>/vendor/phpoffice/phpspreadsheet/
//	<root>/temp/                        downloads, extraction, install lock
//	<root>/logs/phpspreadsheet.log      diagnostic log
//
// Every directory created by [Layout.Prepare] receives a deny-all .htaccess
// so a web server in front of the host never serves its contents.
package layout

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// DenyAll is the access-control file written into managed directories.
const DenyAll = "Order deny,allow\nDeny from all\n"

const (
	vendorDir  = "vendor"
	tempDir    = "temp"
	logsDir    = "logs"
	logFile    = "phpspreadsheet.log"
	lockFile   = ".install.lock"
	entryPoint = "autoload.php"
	htaccess   = ".htaccess"
)

// Layout resolves paths below an install root.
type Layout struct {
	Root string
}

// New returns the layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) VendorDir() string { return filepath.Join(l.Root, vendorDir) }
func (l Layout) TempDir() string   { return filepath.Join(l.Root, tempDir) }
func (l Layout) LogsDir() string   { return filepath.Join(l.Root, logsDir) }
func (l Layout) LogFile() string   { return filepath.Join(l.LogsDir(), logFile) }
func (l Layout) LockFile() string  { return filepath.Join(l.TempDir(), lockFile) }

// EntryPoint is <root>/vendor/autoload.php, written by Composer or the shim.
func (l Layout) EntryPoint() string { return filepath.Join(l.VendorDir(), entryPoint) }

// Manifest is the composer.json written into the root.
func (l Layout) Manifest() string { return filepath.Join(l.Root, "composer.json") }

// PackageDir is where a vendor/package is installed, e.g.
// <root>/vendor/phpoffice/phpspreadsheet.
func (l Layout) PackageDir(pkg string) string {
	return filepath.Join(l.VendorDir(), filepath.FromSlash(strings.ToLower(pkg)))
}

// Managed lists the directories Prepare creates.
func (l Layout) Managed() []string {
	return []string{l.VendorDir(), l.TempDir(), l.LogsDir()}
}

// Prepare creates the managed directories, each with a deny-all .htaccess.
// Existing .htaccess files are left alone.
func (l Layout) Prepare() error {
	for _, dir := range l.Managed() {
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDir creates dir and drops a deny-all .htaccess into it.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create %s", dir)
	}
	p := filepath.Join(dir, htaccess)
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "stat %s", p)
	}
	if err := os.WriteFile(p, []byte(DenyAll), 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "write %s", p)
	}
	return nil
}

// Remove deletes the managed directories and the manifest. With keepLibrary
// the vendor directory and manifest survive.
//
// The install lock file is never removed: deleting it while held would let
// another process lock a fresh file at the same path. temp/ is cleared down
// to the lock file and only removed itself when no lock file exists.
func (l Layout) Remove(keepLibrary bool) ([]string, error) {
	var removed []string

	ok, err := clearDir(l.TempDir(), lockFile)
	if err != nil {
		return removed, err
	}
	if ok {
		removed = append(removed, l.TempDir())
	}

	targets := []string{l.LogsDir()}
	if !keepLibrary {
		targets = append(targets, l.VendorDir(), l.Manifest(), filepath.Join(l.Root, "composer.lock"))
	}
	for _, p := range targets {
		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return removed, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "remove %s", p)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// clearDir removes everything in dir except the entry named keep, and dir
// itself when keep is absent. It reports whether anything was removed.
func clearDir(dir, keep string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "read %s", dir)
	}

	var changed, kept bool
	for _, e := range entries {
		if e.Name() == keep {
			kept = true
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return changed, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "remove %s", p)
		}
		changed = true
	}
	if kept {
		return changed, nil
	}
	if err := os.Remove(dir); err != nil {
		return changed, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "remove %s", dir)
	}
	return true, nil
}
