package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

func TestLocal(t *testing.T) {
	var l Local
	release, err := l.TryLock(context.Background())
	if err != nil {
		t.Fatalf("first TryLock: %v", err)
	}
	if _, err := l.TryLock(context.Background()); !IsHeld(err) {
		t.Fatalf("second TryLock error = %v, want held", err)
	}
	release()
	release() // idempotent

	release, err = l.TryLock(context.Background())
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	release()
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp", ".install.lock")
	a, b := NewFile(path), NewFile(path)

	release, err := a.TryLock(context.Background())
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	_, err = b.TryLock(context.Background())
	if !apperrors.Is(err, apperrors.ErrCodeInstallInProgress) {
		t.Fatalf("contended TryLock error = %v, want INSTALL_IN_PROGRESS", err)
	}
	release()

	release, err = b.TryLock(context.Background())
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	release()
}

type fakeLocker struct {
	err      error
	acquired int
	released int
}

func (f *fakeLocker) TryLock(context.Context) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() { f.released++ }, nil
}

func TestMulti(t *testing.T) {
	first, held := &fakeLocker{}, &fakeLocker{err: ErrHeld}

	_, err := Multi{first, nil, held}.TryLock(context.Background())
	if !IsHeld(err) {
		t.Fatalf("Multi error = %v, want held", err)
	}
	if first.acquired != 1 || first.released != 1 {
		t.Errorf("first locker acquired=%d released=%d, want 1/1", first.acquired, first.released)
	}

	a, b := &fakeLocker{}, &fakeLocker{}
	release, err := Multi{a, b}.TryLock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	release()
	if a.released != 1 || b.released != 1 {
		t.Errorf("release a=%d b=%d", a.released, b.released)
	}
}

func TestRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	l := NewRedis(client, "phpvendor:lock:test", 0)
	if l.Key() != "phpvendor:lock:test" {
		t.Errorf("Key() = %q", l.Key())
	}
	_, err := l.TryLock(ctx)
	if !apperrors.Is(err, apperrors.ErrCodeNetwork) {
		t.Fatalf("TryLock error = %v, want NETWORK_ERROR", err)
	}
}
