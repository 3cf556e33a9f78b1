// Package locator finds an existing entry point for the library.
package locator

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/phpvendor/pkg/layout"
)

// Candidates returns the entry points to try, highest priority first: the
// install root's vendor/autoload.php, then the host root's. An empty
// hostRoot, or one equal to root, contributes nothing.
func Candidates(root, hostRoot string) []string {
	out := []string{layout.New(root).EntryPoint()}
	if hostRoot != "" && filepath.Clean(hostRoot) != filepath.Clean(root) {
		out = append(out, layout.New(hostRoot).EntryPoint())
	}
	return out
}

// Locate returns the first candidate that exists as a regular file.
// It only checks existence; whether the file actually loads the library is
// the loader's job.
func Locate(candidates []string) (string, bool) {
	for _, p := range candidates {
		if Exists(p) {
			return p, true
		}
	}
	return "", false
}

// Exists reports whether p is an existing regular file.
func Exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
