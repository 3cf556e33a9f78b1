package archive

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// Shim describes the fallback autoloader written to vendor/autoload.php
// after an archive install.
type Shim struct {
	// Prefix is the namespace prefix served, e.g. `PhpOffice\PhpSpreadsheet\`.
	Prefix string

	// PackageDir is the package directory relative to vendor/, e.g.
	// "phpoffice/phpspreadsheet".
	PackageDir string

	// SourceDir is the directory below PackageDir that maps to Prefix, e.g.
	// "src/PhpSpreadsheet".
	SourceDir string
}

// DefaultShim serves PhpSpreadsheet from its release archive layout.
var DefaultShim = ShimFor("phpoffice/phpspreadsheet", `PhpOffice\PhpSpreadsheet\Spreadsheet`)

// ShimFor returns the shim for package pkg whose probe class is symbol. The
// prefix is symbol's namespace and the source directory follows the
// src/<last namespace segment> convention; [Shim.WithManifest] replaces it
// with the package's own PSR-4 mapping once the files are in place.
func ShimFor(pkg, symbol string) Shim {
	ns, _, ok := cutLast(symbol, `\`)
	if !ok || ns == "" {
		return Shim{PackageDir: strings.ToLower(pkg), SourceDir: "src"}
	}
	_, last, _ := cutLast(ns, `\`)
	return Shim{
		Prefix:     ns + `\`,
		PackageDir: strings.ToLower(pkg),
		SourceDir:  "src/" + last,
	}
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", s, false
	}
	return s[:i], s[i+len(sep):], true
}

// WithManifest returns s with SourceDir taken from the autoload.psr-4 entry
// for s.Prefix in pkgDir/composer.json. s is returned unchanged when the
// manifest is missing, unreadable or does not map the prefix.
func (s Shim) WithManifest(pkgDir string) Shim {
	data, err := os.ReadFile(filepath.Join(pkgDir, "composer.json"))
	if err != nil {
		return s
	}
	var m struct {
		Autoload struct {
			PSR4 map[string]json.RawMessage `json:"psr-4"`
		} `json:"autoload"`
	}
	if json.Unmarshal(data, &m) != nil {
		return s
	}
	raw, ok := m.Autoload.PSR4[s.Prefix]
	if !ok {
		return s
	}

	// A PSR-4 path is a string or a list of strings.
	var dirs []string
	var one string
	if json.Unmarshal(raw, &one) == nil {
		dirs = []string{one}
	} else if json.Unmarshal(raw, &dirs) != nil {
		return s
	}
	for _, d := range dirs {
		d = strings.Trim(path.Clean("/"+d), "/")
		if d != "" {
			s.SourceDir = d
			return s
		}
	}
	return s
}

var shimTemplate = template.Must(template.New("shim").Parse(`<?php
// Autoloader for {{.Prefix}} written by phpvendor.

$nested = __DIR__ . '/{{.PackageDir}}/vendor/autoload.php';
if (file_exists($nested)) {
    require_once $nested;
}

spl_autoload_register(function ($class) {
    $prefix = '{{.PHPPrefix}}';
    if (strncmp($class, $prefix, strlen($prefix)) !== 0) {
        return;
    }
    $relative = substr($class, strlen($prefix));
    $file = __DIR__ . '/{{.PackageDir}}/{{.SourceDir}}/' . str_replace('\\', '/', $relative) . '.php';
    if (file_exists($file)) {
        require_once $file;
    }
});
`))

// Render returns the shim's PHP source.
func (s Shim) Render() ([]byte, error) {
	var buf bytes.Buffer
	err := shimTemplate.Execute(&buf, struct {
		Shim
		PHPPrefix string
	}{s, strings.ReplaceAll(s.Prefix, `\`, `\\`)})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resolve maps a class name to the file the shim would load, relative to
// vendor/. ok is false for classes outside Prefix.
func (s Shim) Resolve(class string) (string, bool) {
	rel, ok := strings.CutPrefix(class, s.Prefix)
	if !ok || rel == "" {
		return "", false
	}
	return path.Join(s.PackageDir, s.SourceDir, strings.ReplaceAll(rel, `\`, "/")+".php"), true
}

// Write renders the shim to dst.
func (s Shim) Write(dst string) error {
	data, err := s.Render()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, err, "render autoloader")
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "write %s", dst)
	}
	return nil
}
