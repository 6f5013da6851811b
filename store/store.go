// Package store implements the Storage Adapter contract (C4): a small
// key-value interface over cache entries, plus two concrete
// implementations grounded on the teacher's cache providers.
package store

import (
	"net/http"
	"time"
)

// Entry is a persisted cache entry: the stored request headers (kept for
// a future Vary-negotiation hook, not consulted for selection by this
// core) plus the stored response triple.
type Entry struct {
	RequestHeader http.Header
	StatusCode    int
	Header        http.Header
	Body          []byte
}

// Store is the contract the dispatcher and revalidator depend on. TTL
// interpretation (what "expired" means) is delegated entirely to the
// implementation; negative TTLs are never passed here, since forced
// invalidation is handled by the dispatcher calling Remove directly.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for key, or ok=false on a miss (including an
	// expired entry, which implementations should also evict).
	Get(key string) (entry Entry, ok bool, err error)
	// Set stores entry under key with the given TTL.
	Set(key string, entry Entry, ttl time.Duration) error
	// Remove deletes the entry for key, if any. Removing an absent key is
	// not an error.
	Remove(key string) error
}

// OldestProvider is an optional capability: a Store that can report the
// entry closest to expiry, for use by the background updater. Not all
// Store implementations need to support it.
type OldestProvider interface {
	// Oldest returns the key and expiry of the entry expiring soonest.
	// ok is false if the store has no entries with a defined expiry.
	Oldest() (key string, expires time.Time, ok bool, err error)
}

// KeyLister is an optional capability for admin/debug enumeration.
type KeyLister interface {
	// Keys calls cb once per stored key. cb may return false to stop
	// enumeration early.
	Keys(cb func(key string) bool)
}
