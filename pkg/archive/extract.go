package archive

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/httputil"
)

// Extract unpacks the zip at src into dst and returns the sorted names of the
// top-level directories it produced. Entries that would land outside dst are
// rejected. maxBytes, when positive, caps the total uncompressed size.
func Extract(src, dst string, maxBytes int64) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeCorruptArtifact, err, "Extraction failed")
	}
	defer r.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create %s", dst)
	}

	budget := maxBytes
	tops := make(map[string]bool)
	for _, f := range r.File {
		name := strings.TrimSuffix(f.Name, "/")
		if name == "" {
			continue
		}
		if err := apperrors.ValidatePath(name); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeCorruptArtifact, err, "unsafe entry %q", f.Name)
		}

		target := filepath.Join(dst, filepath.FromSlash(name))
		top, _, nested := strings.Cut(name, "/")
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create %s", target)
			}
			tops[top] = true
			continue
		}
		if nested {
			tops[top] = true
		}
		if !f.Mode().IsRegular() {
			continue
		}

		if maxBytes > 0 && budget <= 0 {
			return nil, apperrors.Wrap(apperrors.ErrCodeCorruptArtifact, httputil.ErrTooLarge, "archive expands beyond %d bytes", maxBytes)
		}
		n, err := extractFile(f, target, budget, maxBytes > 0)
		if err != nil {
			return nil, err
		}
		budget -= n
	}

	names := make([]string, 0, len(tops))
	for name := range tops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func extractFile(f *zip.File, target string, budget int64, limited bool) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create %s", filepath.Dir(target))
	}

	rc, err := f.Open()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeCorruptArtifact, err, "open entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o200)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create %s", target)
	}

	var n int64
	if limited {
		n, err = httputil.CopyLimited(out, rc, budget)
	} else {
		n, err = io.Copy(out, rc)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, apperrors.Wrap(apperrors.ErrCodeCorruptArtifact, err, "Extraction failed: %s", f.Name)
	}
	return n, nil
}
