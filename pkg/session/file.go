package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is a file-based nonce store. Each nonce is a JSON file named
// after its token; consuming renames the file away first so two processes
// cannot both accept it.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a new file-based nonce store in baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("nonce dir is required")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create nonce dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) noncePath(token string) string {
	return filepath.Join(s.baseDir, token+".json")
}

func (s *FileStore) Issue(ctx context.Context, action string, ttl time.Duration) (string, error) {
	n := newNonce(action, ttl)
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal nonce: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.noncePath(n.Token), data, 0600); err != nil {
		return "", fmt.Errorf("write nonce file: %w", err)
	}
	return n.Token, nil
}

func (s *FileStore) Consume(ctx context.Context, token, action string) error {
	if !validToken(token) {
		return ErrInvalidNonce
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.noncePath(token)
	claimed := path + ".used"
	if err := os.Rename(path, claimed); err != nil {
		return ErrInvalidNonce
	}
	defer os.Remove(claimed)

	data, err := os.ReadFile(claimed)
	if err != nil {
		return ErrInvalidNonce
	}
	var n Nonce
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidNonce
	}
	if n.IsExpired() || n.Action != action {
		return ErrInvalidNonce
	}
	return nil
}

func (s *FileStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("read nonce dir: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var n Nonce
		if err := json.Unmarshal(data, &n); err != nil || now.After(n.ExpiresAt) {
			os.Remove(path)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the base directory for nonce files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
