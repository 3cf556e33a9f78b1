package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps nonces in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	nonces map[string]Nonce
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nonces: make(map[string]Nonce)}
}

func (s *MemoryStore) Issue(_ context.Context, action string, ttl time.Duration) (string, error) {
	n := newNonce(action, ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[n.Token] = *n
	return n.Token, nil
}

func (s *MemoryStore) Consume(_ context.Context, token, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nonces[token]
	if !ok {
		return ErrInvalidNonce
	}
	delete(s.nonces, token)
	if n.IsExpired() || n.Action != action {
		return ErrInvalidNonce
	}
	return nil
}

func (s *MemoryStore) Cleanup(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, n := range s.nonces {
		if now.After(n.ExpiresAt) {
			delete(s.nonces, k)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
