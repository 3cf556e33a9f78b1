package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Version markers returned by [Version] when no concrete version is known.
const (
	VersionInstalled = "Installed"
	VersionUnknown   = "Unknown"
)

var (
	// ErrNoManifest means no composer.json sits two levels above the
	// defining file.
	ErrNoManifest = errors.New("package manifest not found")

	// ErrNoVersion means the manifest has no version field.
	ErrNoVersion = errors.New("package manifest has no version")
)

// ManifestFor returns the composer.json two directories above definingFile:
// .../phpspreadsheet/src/PhpSpreadsheet/Spreadsheet.php → .../phpspreadsheet/composer.json.
func ManifestFor(definingFile string) string {
	return filepath.Join(filepath.Dir(definingFile), "..", "..", "composer.json")
}

// LookupVersion reads the version field of the manifest belonging to
// definingFile.
func LookupVersion(definingFile string) (string, error) {
	if definingFile == "" {
		return "", ErrNoManifest
	}
	data, err := os.ReadFile(ManifestFor(definingFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoManifest
	}
	if err != nil {
		return "", err
	}

	var m struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parse %s: %w", ManifestFor(definingFile), err)
	}
	if m.Version == "" {
		return "", ErrNoVersion
	}
	return m.Version, nil
}

// Version collapses LookupVersion into a display string: the version,
// "Installed" without a manifest, or "Unknown" on any other failure.
func Version(definingFile string) string {
	v, err := LookupVersion(definingFile)
	switch {
	case err == nil:
		return v
	case errors.Is(err, ErrNoManifest):
		return VersionInstalled
	default:
		return VersionUnknown
	}
}
