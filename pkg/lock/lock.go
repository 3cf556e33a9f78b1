// Package lock provides install mutual exclusion.
//
// A second install while one is running is rejected, never queued. Three
// scopes are available and are usually stacked with [Multi]: [Local] within
// the process, [File] across processes on one host (flock on
// <root>/temp/.install.lock) and [Redis] across hosts sharing an install
// root.
package lock

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// ErrHeld means another install holds the lock.
var ErrHeld = apperrors.New(apperrors.ErrCodeInstallInProgress, "installation already in progress")

// Locker acquires an install lock without waiting.
type Locker interface {
	// TryLock returns a release function, or ErrHeld when the lock is taken.
	TryLock(ctx context.Context) (release func(), err error)
}

// Local is an in-process lock.
type Local struct {
	mu sync.Mutex
}

// TryLock implements Locker.
func (l *Local) TryLock(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// Multi acquires every locker in order and releases them in reverse. If any
// acquisition fails the ones already held are released.
type Multi []Locker

// TryLock implements Locker.
func (m Multi) TryLock(ctx context.Context) (func(), error) {
	var held []func()
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, l := range m {
		if l == nil {
			continue
		}
		r, err := l.TryLock(ctx)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, r)
	}
	return release, nil
}

// IsHeld reports whether err means the lock was taken.
func IsHeld(err error) bool {
	return errors.Is(err, ErrHeld) || apperrors.Is(err, apperrors.ErrCodeInstallInProgress)
}

var (
	_ Locker = (*Local)(nil)
	_ Locker = Multi(nil)
)
