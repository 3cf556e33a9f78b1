//go:build !linux

package archive

import (
	"errors"
	"io/fs"
)

// CloneCopier is unsupported on this platform; CopyTree always falls back
// to a plain copy.
type CloneCopier struct{}

// CopyFile implements Copier.
func (CloneCopier) CopyFile(string, string, fs.FileMode) error {
	return errors.ErrUnsupported
}
