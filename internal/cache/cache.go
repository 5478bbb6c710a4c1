package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/compass/internal/model"
)

// Cache stores opaque values by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "compass:v1:"

// Key derives a stable cache key from its parts. Parts are joined with a
// separator that cannot appear in a query, so ("a b", "c") and ("a", "b c")
// never collide.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg. It returns nil when caching is
// disabled. A blank Dir yields a memory-only cache.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}

	memoryTTL := time.Duration(cfg.MemoryTTLSecs) * time.Second
	if cfg.Dir == "" {
		return NewMemoryCache(memoryTTL, cleanupInterval(memoryTTL))
	}

	diskTTL := time.Duration(cfg.DiskTTLSecs) * time.Second
	return NewLayeredCache(
		NewMemoryCache(memoryTTL, cleanupInterval(memoryTTL)),
		NewDiskCache(cfg.Dir, diskTTL),
	)
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 10 * time.Minute
	}
	return 2 * ttl
}
