// Package session manages anti-forgery nonces for the HTTP trigger surface.
//
// A nonce is issued for one action ("install", "check-status"), is valid for
// a short TTL and can be consumed exactly once. Three backends exist:
//   - memory: a single server process
//   - file: several processes on one host sharing a directory
//   - redis: several hosts behind a load balancer
//
// # Usage
//
//	store := session.NewMemoryStore()
//	token, err := store.Issue(ctx, "install", session.DefaultNonceTTL)
//	...
//	if err := store.Consume(ctx, token, "install"); err != nil {
//	    // reject: forged, replayed, expired or issued for another action
//	}
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidNonce is returned when a nonce is unknown, expired, already used
// or bound to a different action.
var ErrInvalidNonce = errors.New("invalid or expired nonce")

// DefaultNonceTTL is how long an issued nonce stays valid.
const DefaultNonceTTL = 10 * time.Minute

// Nonce is a stored anti-forgery token.
type Nonce struct {
	Token     string    `json:"token"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the nonce has passed its expiry.
func (n *Nonce) IsExpired() bool {
	return time.Now().After(n.ExpiresAt)
}

// Store is the interface for nonce backends.
type Store interface {
	// Issue creates a nonce bound to action and returns its token.
	Issue(ctx context.Context, action string, ttl time.Duration) (string, error)

	// Consume validates token for action and removes it. Any failure,
	// including a token issued for another action, is ErrInvalidNonce.
	Consume(ctx context.Context, token, action string) error

	// Cleanup removes expired nonces (may be a no-op).
	Cleanup(ctx context.Context) error

	Close() error
}

// newNonce creates a nonce with a random token.
func newNonce(action string, ttl time.Duration) *Nonce {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &Nonce{
		Token:     uuid.NewString(),
		Action:    action,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// validToken rejects anything that is not a token we could have issued.
func validToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil && len(token) == 36
}
