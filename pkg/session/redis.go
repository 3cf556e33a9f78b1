package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps nonces in Redis with native expiry. Consume uses GETDEL
// so a nonce is accepted at most once across every host.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on client. Keys are prefix+token; an empty
// prefix defaults to "phpvendor:nonce:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "phpvendor:nonce:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Issue(ctx context.Context, action string, ttl time.Duration) (string, error) {
	n := newNonce(action, ttl)
	if err := s.client.Set(ctx, s.prefix+n.Token, action, time.Until(n.ExpiresAt)).Err(); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return n.Token, nil
}

func (s *RedisStore) Consume(ctx context.Context, token, action string) error {
	if !validToken(token) {
		return ErrInvalidNonce
	}
	got, err := s.client.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidNonce
	}
	if err != nil {
		return fmt.Errorf("consume nonce: %w", err)
	}
	if got != action {
		return ErrInvalidNonce
	}
	return nil
}

// Cleanup is a no-op; Redis expires keys itself.
func (s *RedisStore) Cleanup(context.Context) error { return nil }

func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
