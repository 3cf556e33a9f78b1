package composer

import (
	"encoding/json"
	"os"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// Manifest is the composer.json written into the install root.
type Manifest struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Require          map[string]string `json:"require"`
	Config           ManifestConfig    `json:"config"`
	MinimumStability string            `json:"minimum-stability"`
}

// ManifestConfig pins the autoloader options.
type ManifestConfig struct {
	VendorDir             string `json:"vendor-dir"`
	OptimizeAutoloader    bool   `json:"optimize-autoloader"`
	ClassmapAuthoritative bool   `json:"classmap-authoritative"`
}

// NewManifest declares pkg at constraint with an optimized, authoritative
// class map and stable packages only.
func NewManifest(pkg, constraint string) Manifest {
	return Manifest{
		Name:        "wordpress/phpspreadsheet-wp",
		Description: "PhpSpreadsheet for WordPress",
		Require:     map[string]string{pkg: constraint},
		Config: ManifestConfig{
			VendorDir:             "vendor",
			OptimizeAutoloader:    true,
			ClassmapAuthoritative: true,
		},
		MinimumStability: "stable",
	}
}

// Marshal renders the manifest as indented JSON with a trailing newline.
func (m Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteFile writes the manifest to path, replacing any existing file.
func (m Manifest) WriteFile(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, err, "encode manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "write %s", path)
	}
	return nil
}
