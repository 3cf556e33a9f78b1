package archive

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// Copier copies a single regular file. dst does not exist or is overwritten.
type Copier interface {
	CopyFile(src, dst string, perm fs.FileMode) error
}

// CopierFunc adapts a function to Copier.
type CopierFunc func(src, dst string, perm fs.FileMode) error

func (f CopierFunc) CopyFile(src, dst string, perm fs.FileMode) error { return f(src, dst, perm) }

// PlainCopier streams file contents with io.Copy.
type PlainCopier struct{}

// CopyFile implements Copier.
func (PlainCopier) CopyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyStats counts what CopyTree did.
type CopyStats struct {
	Dirs      int
	Files     int
	Fallbacks int
}

// CopyTree recursively copies the contents of src into dst, creating each
// directory before the files in it. Every file goes through primary first
// and through [PlainCopier] when primary fails. A nil primary copies the
// whole tree with PlainCopier. Symlinks are skipped.
func CopyTree(src, dst string, primary Copier) (CopyStats, error) {
	var stats CopyStats

	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return stats, apperrors.New(apperrors.ErrCodeFilesystem, "Source directory does not exist: %s", src)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, fi.Mode().Perm()|0o700); err != nil {
				return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "Failed to create directory: %s", target)
			}
			stats.Dirs++
			return nil
		case !d.Type().IsRegular():
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		fell, err := copyFile(primary, path, target, fi.Mode().Perm())
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "Failed to copy file: %s to %s", path, target)
		}
		stats.Files++
		if fell {
			stats.Fallbacks++
		}
		return nil
	})
	if err != nil && apperrors.GetCode(err) == "" {
		err = apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "copy %s", src)
	}
	return stats, err
}

func copyFile(primary Copier, src, dst string, perm fs.FileMode) (fellBack bool, err error) {
	if primary != nil {
		if err := primary.CopyFile(src, dst, perm); err == nil {
			return false, nil
		}
		fellBack = true
	}
	return fellBack, PlainCopier{}.CopyFile(src, dst, perm)
}
