// Package cache stores small byte payloads (release descriptors, Packagist
// metadata) with a time-to-live.
//
// Three backends implement [Cache]:
//   - [FileCache]: JSON entries under a directory (default ~/.cache/phpvendor)
//   - [RedisCache]: shared cache for several hosts installing from one network
//   - [NullCache]: disables caching
//
// Callers namespace their keys ("github:release:PHPOffice/PhpSpreadsheet").
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
// A miss is reported as (nil, false, nil); errors are reserved for backend
// failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}
