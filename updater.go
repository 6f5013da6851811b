package httpcache

import (
	"net/http"
	"time"

	"github.com/always-cache/httpcache/store"
)

// runUpdater proactively revalidates the entry closest to expiry, one at
// a time, keeping hot entries fresh ahead of a client-triggered miss.
// It requires the configured Store to implement store.OldestProvider;
// New only starts this goroutine when that holds.
func (c *Cache) runUpdater() {
	oldest := c.store.(store.OldestProvider)
	c.log.Info().Dur("interval", c.updateInterval).Msg("starting cache update loop")
	for {
		select {
		case <-c.stopUpdate:
			return
		default:
		}

		key, expires, ok, err := oldest.Oldest()
		if err != nil {
			c.log.Error().Err(err).Msg("could not get oldest entry")
			c.sleepOrStop(c.updateInterval)
			continue
		}
		if !ok || time.Until(expires) > c.updateInterval {
			c.sleepOrStop(c.updateInterval)
			continue
		}
		c.updateEntry(key)
	}
}

func (c *Cache) sleepOrStop(d time.Duration) {
	select {
	case <-c.stopUpdate:
	case <-time.After(d):
	}
}

// updateEntry re-fetches the request identified by key against the live
// backend and refreshes (or purges, on failure) the stored entry.
func (c *Cache) updateEntry(key string) {
	backend := c.currentBackend()
	if backend == nil {
		return
	}
	r, err := http.NewRequest(http.MethodGet, key, nil)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("could not build request for update")
		return
	}

	ttlSpec, rewrittenPath, hasRule := c.rules.Match(r.URL.Path)
	if !hasRule || ttlSpec.Kind == TTLInvalidate {
		if err := c.store.Remove(key); err != nil {
			c.log.Error().Err(err).Str("key", key).Msg("could not purge stale key")
		}
		return
	}

	v := fetch(backend, r, rewrittenPath, c.scrub, c.privateHeaders, ttlSpec, hasRule)
	if !v.IsCacheable() {
		if err := c.store.Remove(key); err != nil {
			c.log.Error().Err(err).Str("key", key).Msg("could not purge unrefreshable key")
		}
		return
	}
	storeView(func(k string, entry store.Entry, ttl time.Duration) {
		if err := c.store.Set(k, entry, ttl); err != nil {
			c.log.Error().Err(err).Str("key", k).Msg("could not persist refreshed entry")
		}
	}, key, r.Header, v)
}
