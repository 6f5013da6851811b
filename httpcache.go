// Package httpcache implements a shared HTTP cache as an http.Handler
// middleware: request classification, storage lookup, conditional
// revalidation, and response caching per RFC 2616 §13.
package httpcache

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/always-cache/httpcache/store"
	"github.com/rs/zerolog"
)

// Config configures a Cache. Store is the only required field; an empty
// Rules set means "cache nothing" (every request passes straight
// through, per the Rule Matcher's documented behaviour).
type Config struct {
	// Store is the backing key-value adapter (C4). Required.
	Store store.Store
	// Rules decides, per request path, whether and how long to cache.
	Rules RuleSet
	// Scrub lists response header names stripped before storage.
	Scrub []string
	// CacheQueries controls whether requests carrying a query string are
	// cached at all (with the query as part of the key) or invalidated
	// and passed through.
	CacheQueries bool
	// AllowReload makes a client's Cache-Control: no-cache bypass lookup
	// and force a fresh fetch.
	AllowReload bool
	// PrivateHeaders are request header names that, when present, mark
	// the fetched response private unless it explicitly declared public.
	PrivateHeaders []string
	// Logger receives structured cache event logs. A console logger is
	// used if nil, matching the teacher's default.
	Logger *zerolog.Logger
	// UpdateInterval enables a background updater that proactively
	// revalidates the entry closest to expiry. Zero (the default)
	// disables it; the Store must implement store.OldestProvider for
	// the updater to have anything to do.
	UpdateInterval time.Duration
}

// Cache is a configured cache instance. It is safe for concurrent use by
// multiple goroutines, same as the http.Handler it wraps.
type Cache struct {
	store          store.Store
	rules          RuleSet
	scrub          []string
	cacheQueries   bool
	allowReload    bool
	privateHeaders []string
	log            zerolog.Logger

	updateInterval time.Duration
	stopUpdate     chan struct{}

	backendMu sync.RWMutex
	backend   http.Handler
}

// currentBackend returns the handler most recently passed to Middleware,
// or nil if Middleware has not been called yet.
func (c *Cache) currentBackend() http.Handler {
	c.backendMu.RLock()
	defer c.backendMu.RUnlock()
	return c.backend
}

// New validates cfg and constructs a Cache. It starts the background
// updater goroutine if cfg.UpdateInterval is positive.
func New(cfg Config) (*Cache, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("httpcache: Config.Store is required")
	}
	rules, err := NewRuleSet(cfg.Rules)
	if err != nil {
		return nil, err
	}

	var logger zerolog.Logger
	if cfg.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *cfg.Logger
	}

	c := &Cache{
		store:          cfg.Store,
		rules:          rules,
		scrub:          cfg.Scrub,
		cacheQueries:   cfg.CacheQueries,
		allowReload:    cfg.AllowReload,
		privateHeaders: cfg.PrivateHeaders,
		log:            logger.With().Str("component", "httpcache").Logger(),
		updateInterval: cfg.UpdateInterval,
	}

	if c.updateInterval > 0 {
		if _, ok := cfg.Store.(store.OldestProvider); !ok {
			c.log.Warn().Msg("update interval set but store does not support Oldest; background updates disabled")
		} else {
			c.stopUpdate = make(chan struct{})
			go c.runUpdater()
		}
	}

	return c, nil
}

// Close stops the background updater, if running. It is safe to call on
// a Cache constructed with UpdateInterval == 0.
func (c *Cache) Close() {
	if c.stopUpdate != nil {
		close(c.stopUpdate)
	}
}
