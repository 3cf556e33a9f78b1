package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/matzehuels/phpvendor/pkg/archive"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

var (
	// 'Vendor\\Class' => $vendorDir . '/path/File.php',
	classmapEntry = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'\s*=>\s*\$(vendorDir|baseDir)\s*\.\s*'([^']*)'`)

	// 'Vendor\\Prefix\\' => array($vendorDir . '/path', ...),
	psr4Entry = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'\s*=>\s*array\((.*)\)`)
	psr4Dir   = regexp.MustCompile(`\$(vendorDir|baseDir)\s*\.\s*'([^']*)'`)
)

// StaticProber resolves a symbol without running PHP. It reads the maps
// Composer generates next to the entry point, then falls back to the shim's
// PSR-4 convention, and accepts the first candidate file that declares the
// class.
type StaticProber struct {
	Shim archive.Shim
}

// NewStaticProber creates a StaticProber for the layout shim describes. A
// zero shim means archive.DefaultShim.
func NewStaticProber(shim archive.Shim) *StaticProber {
	if shim == (archive.Shim{}) {
		shim = archive.DefaultShim
	}
	return &StaticProber{Shim: shim}
}

// Probe implements Prober.
func (p *StaticProber) Probe(_ context.Context, entryPoint, symbol string) (string, error) {
	vendorDir := filepath.Dir(entryPoint)
	short := symbol[strings.LastIndexByte(symbol, '\\')+1:]

	var tried []string
	for _, cand := range p.candidates(vendorDir, symbol) {
		tried = append(tried, cand)
		ok, err := declaresClass(cand, short)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "read %s", cand)
		}
		if ok {
			return cand, nil
		}
	}
	return "", apperrors.Wrap(apperrors.ErrCodeNotFound, ErrSymbolNotFound,
		"%s not resolvable from %s (tried %d files)", symbol, entryPoint, len(tried))
}

func (p *StaticProber) candidates(vendorDir, symbol string) []string {
	baseDir := filepath.Dir(vendorDir)
	dirFor := func(v string) string {
		if v == "baseDir" {
			return baseDir
		}
		return vendorDir
	}

	var out []string
	composerDir := filepath.Join(vendorDir, "composer")

	if data, err := os.ReadFile(filepath.Join(composerDir, "autoload_classmap.php")); err == nil {
		for _, m := range classmapEntry.FindAllStringSubmatch(string(data), -1) {
			if unquote(m[1]) == symbol {
				out = append(out, filepath.Join(dirFor(m[2]), filepath.FromSlash(m[3])))
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(composerDir, "autoload_psr4.php")); err == nil {
		type mapping struct {
			prefix string
			dirs   []string
		}
		var maps []mapping
		for _, m := range psr4Entry.FindAllStringSubmatch(string(data), -1) {
			prefix := unquote(m[1])
			if !strings.HasPrefix(symbol, prefix) {
				continue
			}
			mp := mapping{prefix: prefix}
			for _, d := range psr4Dir.FindAllStringSubmatch(m[2], -1) {
				mp.dirs = append(mp.dirs, filepath.Join(dirFor(d[1]), filepath.FromSlash(d[2])))
			}
			maps = append(maps, mp)
		}
		// Longest prefix wins, as in Composer's ClassLoader.
		sort.SliceStable(maps, func(i, j int) bool { return len(maps[i].prefix) > len(maps[j].prefix) })
		for _, mp := range maps {
			rel := filepath.FromSlash(strings.ReplaceAll(strings.TrimPrefix(symbol, mp.prefix), `\`, "/")) + ".php"
			for _, d := range mp.dirs {
				out = append(out, filepath.Join(d, rel))
			}
		}
	}

	if p.Shim.Prefix != "" {
		shim := p.Shim.WithManifest(filepath.Join(vendorDir, filepath.FromSlash(p.Shim.PackageDir)))
		if rel, ok := shim.Resolve(symbol); ok {
			out = append(out, filepath.Join(vendorDir, filepath.FromSlash(rel)))
		}
	}
	return out
}

// declaresClass reports whether file exists and contains a declaration of
// class name.
func declaresClass(file, name string) (bool, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	re := regexp.MustCompile(`\bclass\s+` + regexp.QuoteMeta(name) + `\b`)
	return re.Match(data), nil
}

// unquote undoes PHP single-quote escaping.
func unquote(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\'`, `'`).Replace(s)
}

var _ Prober = (*StaticProber)(nil)
