// Package cache provides a generic in-process cache with per-entry expiry.
package cache

import "time"

// Cache defines the basic interface for a generic expiring cache
type Cache[K comparable, V any] interface {
	// Set adds or updates an item; ttl <= 0 means the item never expires
	Set(key K, value V, ttl time.Duration)
	// Get retrieves an unexpired item from the cache
	Get(key K) (V, bool)
	// Del removes an item from the cache
	Del(key K)
	// Len returns the number of unexpired items in the cache
	Len() int
	// Keys returns all unexpired keys in the cache
	Keys() []K
	// Clear removes all items from the cache
	Clear()
}
