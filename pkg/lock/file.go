package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

var flockFn = unix.Flock

// File is a cross-process lock backed by a non-blocking flock.
type File struct {
	Path string
}

// NewFile creates a File lock on path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// TryLock implements Locker.
func (l *File) TryLock(context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "create lock dir")
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "open %s", l.Path)
	}
	if err := flockFn(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrHeld
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeFilesystem, err, "lock %s", l.Path)
	}
	return func() {
		_ = flockFn(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}

var _ Locker = (*File)(nil)
