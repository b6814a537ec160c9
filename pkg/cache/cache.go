// Package cache stores rendered artifacts keyed by the content that
// produced them.
//
// Exports are deterministic in the document and the export options, so the
// pipeline keys them by the document hash plus a hash of the options and
// skips the flatten entirely on a hit. Three backends are provided:
//
//   - [FileCache]: JSON entries on disk, for the CLI
//   - [RedisCache]: a shared Redis instance, for the server
//   - [NullCache]: stores nothing, for --no-cache and tests
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the data stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Default TTLs.
const (
	ExportTTL   = 7 * 24 * time.Hour
	TopologyTTL = 24 * time.Hour
)
