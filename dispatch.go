package httpcache

import (
	"net/http"
	"strconv"
	"time"

	"github.com/always-cache/httpcache/cachecontrol"
	"github.com/always-cache/httpcache/store"
)

// Middleware wraps next: GET/HEAD requests matched by a caching rule are
// served from storage or a fresh sub-request against next. Unsafe
// methods, query-string requests (unless CacheQueries is set) and paths
// matched by an invalidate rule remove the request's key and pass
// through; all other requests pass straight through.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	c.backendMu.Lock()
	c.backend = next
	c.backendMu.Unlock()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.dispatch(w, r, next)
	})
}

// dispatch implements the C5 request dispatcher state machine described
// in the caching core's design: classify, then lookup/reload/pass,
// hit/miss, refurbish/validate/fetch, invalidate.
func (c *Cache) dispatch(w http.ResponseWriter, r *http.Request, next http.Handler) {
	start := time.Now()
	trace := &Trace{}
	key := canonicalKey(r, c.cacheQueries)
	var backendElapsed time.Duration

	timedCall := func(handler http.Handler, req *http.Request) (int, http.Header, []byte) {
		callStart := time.Now()
		status, header, body := call(handler, req)
		backendElapsed += time.Since(callStart)
		return status, header, body
	}

	finish := func(status int, header http.Header, body []byte) {
		total := time.Since(start) - backendElapsed
		if total < 0 {
			total = 0
		}
		header.Set("X-Plack-Cache", trace.String())
		header.Set("X-Plack-Cache-Key", key)
		header.Set("X-Plack-Cache-Time", strconv.FormatInt(total.Microseconds(), 10))
		if backendElapsed > 0 {
			header.Set("X-Plack-Cache-Time-Pass", strconv.FormatInt(backendElapsed.Microseconds(), 10))
		}
		writeResponse(w, status, header, body)
	}

	removeQuiet := func(k string) {
		if err := c.store.Remove(k); err != nil {
			c.log.Error().Err(err).Str("key", k).Msg("storage remove failed")
		}
	}
	setQuiet := func(k string, entry store.Entry, ttl time.Duration) {
		if err := c.store.Set(k, entry, ttl); err != nil {
			c.log.Error().Err(err).Str("key", k).Msg("storage set failed")
		}
	}

	// Unsafe methods invalidate and pass through unconditionally.
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		trace.Push(TraceInvalidate)
		removeQuiet(key)
		trace.Push(TracePass)
		status, header, body := timedCall(next, r)
		finish(status, header, body)
		return
	}

	// Expect forces pass-through: the middleware must not absorb
	// Expect: 100-continue semantics.
	if r.Header.Get("Expect") != "" {
		trace.Push(TraceExpect)
		trace.Push(TracePass)
		status, header, body := timedCall(next, r)
		finish(status, header, body)
		return
	}

	ttlSpec, rewrittenPath, hasRule := c.rules.Match(r.URL.Path)

	reqDirectives := cachecontrol.ParseDirectives(r.Header.Values("Cache-Control"))
	if c.allowReload && reqDirectives.NoCache {
		trace.Push(TraceReload)
		if !hasRule {
			trace.Push(TracePass)
			status, header, body := timedCall(next, r)
			finish(status, header, body)
			return
		}
		if ttlSpec.Kind == TTLInvalidate || (r.URL.RawQuery != "" && !c.cacheQueries) {
			trace.Push(TraceInvalidate)
			removeQuiet(key)
			trace.Push(TracePass)
			status, header, body := timedCall(next, r)
			finish(status, header, body)
			return
		}
		trace.Push(TraceFetch)
		v := fetchWithTiming(timedCall, next, r, rewrittenPath, c.scrub, c.privateHeaders, ttlSpec, hasRule)
		if v.IsCacheable() {
			trace.Push(TraceStore)
			storeView(setQuiet, key, r.Header, v)
		}
		status, header, body := v.Finalize()
		finish(status, header, body)
		return
	}

	trace.Push(TraceLookup)

	// A query string bypasses the cache unless explicitly enabled: the
	// query-stripped key is invalidated and the request passed through.
	if r.URL.RawQuery != "" && !c.cacheQueries {
		trace.Push(TraceInvalidate)
		removeQuiet(key)
		trace.Push(TracePass)
		status, header, body := timedCall(next, r)
		finish(status, header, body)
		return
	}

	if !hasRule {
		trace.Push(TracePass)
		status, header, body := timedCall(next, r)
		finish(status, header, body)
		return
	}

	if ttlSpec.Kind == TTLInvalidate {
		trace.Push(TraceInvalidate)
		removeQuiet(key)
		trace.Push(TracePass)
		status, header, body := timedCall(next, r)
		finish(status, header, body)
		return
	}

	entry, ok, err := c.store.Get(key)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("storage get failed, treating as miss")
		ok = false
	}

	if ok {
		trace.Push(TraceHit)
		v := cachecontrol.New(entry.StatusCode, entry.Header.Clone(), entry.Body)
		if v.IsFresh() {
			trace.Push(TraceRefurbish)
			status, header, body := refurbish(entry)
			finish(status, header, body)
			return
		}

		trace.Push(TraceValidate)
		result := validate(timedCallHandler{timedCall, next}, r, rewrittenPath, r.Header, entry, c.scrub, c.privateHeaders, ttlSpec, hasRule)
		if result.notMod {
			trace.Push(TraceNotModified)
		}
		if result.stored {
			// A 304 merge silently refreshes the existing entry's
			// metadata; only a genuinely new fetched response (the
			// non-304 branch) is announced as a store.
			if !result.notMod {
				trace.Push(TraceStore)
			}
			setQuiet(key, result.entry, result.ttl)
		}
		finish(result.status, result.header, result.body)
		return
	}

	trace.Push(TraceMiss)
	trace.Push(TraceFetch)
	v := fetchWithTiming(timedCall, next, r, rewrittenPath, c.scrub, c.privateHeaders, ttlSpec, hasRule)
	if v.IsCacheable() {
		trace.Push(TraceStore)
		storeView(setQuiet, key, r.Header, v)
	}
	status, header, body := v.Finalize()
	finish(status, header, body)
}

// fetchWithTiming adapts the package-level fetch helper to route its
// backend call through timedCall so pass time is always accounted for.
func fetchWithTiming(timedCall func(http.Handler, *http.Request) (int, http.Header, []byte), next http.Handler, r *http.Request, path string, scrub, privateHeaders []string, ttl TTLSpec, hasRule bool) *cachecontrol.View {
	return fetch(timedCallHandler{timedCall, next}, r, path, scrub, privateHeaders, ttl, hasRule)
}

// timedCallHandler adapts a timedCall closure into an http.Handler so it
// can be threaded through fetch/validate, which take next http.Handler.
type timedCallHandler struct {
	timedCall func(http.Handler, *http.Request) (int, http.Header, []byte)
	next      http.Handler
}

func (h timedCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, header, body := h.timedCall(h.next, r)
	dst := w.Header()
	for k, vv := range header {
		dst[k] = vv
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		w.Write(body)
	}
}

// storeView persists v's current (status, header, body) under key with
// its resolved TTL.
func storeView(setQuiet func(string, store.Entry, time.Duration), key string, reqHeader http.Header, v *cachecontrol.View) {
	ttlDur := time.Duration(0)
	if ttl, ok := v.TTL(); ok && ttl > 0 {
		ttlDur = time.Duration(ttl) * time.Second
	}
	status, header, body := v.Finalize()
	setQuiet(key, store.Entry{
		RequestHeader: reqHeader,
		StatusCode:    status,
		Header:        header.Clone(),
		Body:          body,
	}, ttlDur)
}
