package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "nonces"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStore_SingleUse(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			token, err := s.Issue(ctx, "install", time.Minute)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if err := s.Consume(ctx, token, "install"); err != nil {
				t.Fatalf("first Consume: %v", err)
			}
			if err := s.Consume(ctx, token, "install"); !errors.Is(err, ErrInvalidNonce) {
				t.Errorf("replayed Consume error = %v, want ErrInvalidNonce", err)
			}
		})
	}
}

func TestStore_ActionBound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			token, _ := s.Issue(ctx, "check-status", time.Minute)
			if err := s.Consume(ctx, token, "install"); !errors.Is(err, ErrInvalidNonce) {
				t.Errorf("Consume for other action error = %v, want ErrInvalidNonce", err)
			}
		})
	}
}

func TestStore_Expired(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			token, _ := s.Issue(ctx, "install", time.Nanosecond)
			time.Sleep(5 * time.Millisecond)
			if err := s.Consume(ctx, token, "install"); !errors.Is(err, ErrInvalidNonce) {
				t.Errorf("expired Consume error = %v, want ErrInvalidNonce", err)
			}
		})
	}
}

func TestStore_Unknown(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, token := range []string{"", "../../etc/passwd", "00000000-0000-0000-0000-000000000000"} {
				if err := s.Consume(context.Background(), token, "install"); !errors.Is(err, ErrInvalidNonce) {
					t.Errorf("Consume(%q) error = %v, want ErrInvalidNonce", token, err)
				}
			}
		})
	}
}

func TestFileStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Issue(ctx, "install", time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	live, _ := s.Issue(ctx, "install", time.Hour)
	time.Sleep(5 * time.Millisecond)

	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	entries, _ := os.ReadDir(s.Path())
	if len(entries) != 1 || entries[0].Name() != live+".json" {
		t.Errorf("after Cleanup: %v", entries)
	}
}
