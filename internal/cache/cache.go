// Package cache stores rendered pages between runs so repeated runs over the
// same sources do not hammer slow or rate-limited sites.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte store with per-entry expiry
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PageKey derives the cache key for a page rendered by the named renderer.
// Pages rendered by different renderers differ, so they never share a key.
func PageKey(renderer, pageURL string) string {
	hash := sha256.Sum256([]byte(renderer + "\x00" + pageURL))
	return "eventsweep-page-v1-" + hex.EncodeToString(hash[:])
}
