// Package cache stores successful model listings so repeated catalog
// requests do not hit providers every time.
// Supports both local (in-memory) and Redis backends for multi-instance deployments.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a listing stays cached when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// ModelListEntry is the cached form of one provider listing.
type ModelListEntry struct {
	Models   []string  `json:"models"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache defines the interface for model list storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the entry stored under key.
	// Returns nil, nil when nothing is cached or the entry expired.
	Get(ctx context.Context, key string) (*ModelListEntry, error)

	// Set stores entry under key for the cache's TTL.
	Set(ctx context.Context, key string, entry *ModelListEntry) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives the cache key of a provider identity. The API key only
// contributes through the hash and is never stored in clear text.
func Key(kind, baseURL, apiKey string) string {
	sum := xxhash.Sum64String(strings.Join([]string{kind, baseURL, apiKey}, "|"))
	return kind + ":" + strconv.FormatUint(sum, 16)
}
