//go:build linux

package archive

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// CloneCopier shares file extents with FICLONE on filesystems that support
// it (btrfs, XFS). Elsewhere it fails and CopyTree falls back to a plain copy.
type CloneCopier struct{}

// CopyFile implements Copier.
func (CloneCopier) CopyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := unix.IoctlFileClone(int(out.Fd()), int(in.Fd())); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
