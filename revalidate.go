package httpcache

import (
	"net/http"
	"strings"
	"time"

	"github.com/always-cache/httpcache/cachecontrol"
	"github.com/always-cache/httpcache/store"
)

// mergeHeaders are the headers copied from a 304 response onto the
// stored response it validates, per RFC 2616 §13.5.3.
var mergeHeaders = []string{"Date", "Expires", "Cache-Control", "ETag", "Last-Modified"}

// resolveEffectiveTTL implements the C6 TTL resolution: origin wins on
// must-revalidate; otherwise a matched rule's TTL wins; otherwise the
// origin's own TTL is used unmodified.
func resolveEffectiveTTL(v *cachecontrol.View, ttl TTLSpec, hasRule bool) (int, bool) {
	originTTL, originOK := v.TTL()
	if v.IsMustRevalidate() {
		return originTTL, originOK
	}
	if hasRule {
		switch ttl.Kind {
		case TTLFixed:
			return ttl.Seconds, true
		case TTLRange:
			base := originTTL
			if !originOK {
				base = 0
			}
			return ttl.Clamp(base), true
		}
	}
	return originTTL, originOK
}

// applyPrivate marks v private if the original client request carried
// any of privateHeaders and the response did not explicitly declare
// public.
func applyPrivate(v *cachecontrol.View, r *http.Request, privateHeaders []string) {
	d := v.Directives()
	if d.Public {
		return
	}
	for _, h := range privateHeaders {
		if r.Header.Get(h) != "" {
			d.Private = true
			v.SetDirectives(d)
			return
		}
	}
}

// cloneForBackend builds the sub-request used to talk to next: a shallow
// clone of r with a possibly rewritten path (from a matched rule) and,
// for fetch, the client's own conditional headers stripped.
func cloneForBackend(r *http.Request, path string) *http.Request {
	sub := r.Clone(r.Context())
	if path != "" && path != r.URL.Path {
		u := *r.URL
		u.Path = path
		sub.URL = &u
	}
	return sub
}

// fetch performs an unconditional sub-request against next, applies the
// scrub list and private-header marking, and resolves the effective TTL.
// The returned View's directives are ready for Finalize.
func fetch(next http.Handler, r *http.Request, path string, scrub, privateHeaders []string, ttl TTLSpec, hasRule bool) *cachecontrol.View {
	sub := cloneForBackend(r, path)
	sub.Header = r.Header.Clone()
	sub.Header.Del("If-Modified-Since")
	sub.Header.Del("If-None-Match")

	status, header, body := call(next, sub)
	for _, h := range scrub {
		header.Del(h)
	}

	v := cachecontrol.New(status, header, body)
	if _, ok := v.Date(); !ok {
		v.SetDate(v.Now())
	}
	applyPrivate(v, r, privateHeaders)
	if effective, ok := resolveEffectiveTTL(v, ttl, hasRule); ok {
		v.SetTTL(effective)
	}
	return v
}

// validateResult is the outcome of a validate (stale-hit revalidation)
// sub-request.
type validateResult struct {
	status  int
	header  http.Header
	body    []byte
	stored  bool // whether entry/ttl should be persisted under the key
	entry   store.Entry
	ttl     time.Duration
	notMod  bool // 304 was the outcome (either merged or verbatim)
}

// validate performs a conditional sub-request against next for a stale
// stored entry, and decides whether to serve the merged stored response,
// a verbatim 304, or a freshly fetched replacement.
func validate(next http.Handler, r *http.Request, path string, reqHeader http.Header, stored store.Entry, scrub, privateHeaders []string, ttl TTLSpec, hasRule bool) validateResult {
	sub := cloneForBackend(r, path)
	sub.Header = r.Header.Clone()

	lastModified := stored.Header.Get("Last-Modified")
	if lastModified != "" {
		sub.Header.Set("If-Modified-Since", lastModified)
	} else {
		sub.Header.Del("If-Modified-Since")
	}

	union := unionETags(r.Header.Get("If-None-Match"), stored.Header.Get("ETag"))
	if union != "" {
		sub.Header.Set("If-None-Match", union)
	} else {
		sub.Header.Del("If-None-Match")
	}

	status, header, body := call(next, sub)

	if status == http.StatusNotModified {
		if newETag := header.Get("ETag"); newETag != "" && clientOffersUnheldETag(r, stored, newETag) {
			return validateResult{status: status, header: header, body: body, notMod: true}
		}

		merged := stored.Header.Clone()
		for _, h := range mergeHeaders {
			if v := header.Get(h); v != "" {
				merged.Set(h, v)
			}
		}
		v := cachecontrol.New(stored.StatusCode, merged, stored.Body)
		ttlDur := time.Duration(0)
		if effective, ok := v.TTL(); ok && effective > 0 {
			ttlDur = time.Duration(effective) * time.Second
		}
		mstatus, mheader, mbody := v.Finalize()
		return validateResult{
			status: mstatus, header: mheader, body: mbody,
			stored: true,
			entry: store.Entry{
				RequestHeader: reqHeader,
				StatusCode:    mstatus,
				Header:        mheader.Clone(),
				Body:          mbody,
			},
			ttl: ttlDur, notMod: true,
		}
	}

	for _, h := range scrub {
		header.Del(h)
	}
	v := cachecontrol.New(status, header, body)
	if _, ok := v.Date(); !ok {
		v.SetDate(v.Now())
	}
	applyPrivate(v, r, privateHeaders)

	result := validateResult{}
	if v.IsCacheable() {
		if effective, ok := resolveEffectiveTTL(v, ttl, hasRule); ok {
			v.SetTTL(effective)
			result.stored = true
			result.ttl = time.Duration(effective) * time.Second
			result.entry = store.Entry{RequestHeader: reqHeader, StatusCode: status}
		}
	}
	result.status, result.header, result.body = v.Finalize()
	if result.stored {
		result.entry.Header = result.header.Clone()
		result.entry.Body = result.body
		result.entry.StatusCode = result.status
	}
	return result
}

// refurbish returns a fresh stored entry with Age recomputed against the
// current clock.
func refurbish(entry store.Entry) (int, http.Header, []byte) {
	v := cachecontrol.New(entry.StatusCode, entry.Header.Clone(), entry.Body)
	if date, ok := v.Date(); ok {
		age := int(time.Since(date).Seconds())
		if age < 0 {
			age = 0
		}
		v.SetAge(age)
	}
	return v.Finalize()
}

// unionETags parses clientHeader (an If-None-Match value) and a single
// stored ETag, and returns their union as a comma-joined If-None-Match
// value. Malformed input degrades gracefully to whatever tokens parse.
func unionETags(clientHeader, storedETag string) string {
	seen := map[string]bool{}
	var out []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}
	for _, tag := range strings.Split(clientHeader, ",") {
		add(tag)
	}
	add(storedETag)
	return strings.Join(out, ", ")
}

// clientOffersUnheldETag reports whether the client's own If-None-Match
// contains newETag while the entry we hold does not.
func clientOffersUnheldETag(r *http.Request, stored store.Entry, newETag string) bool {
	held := stored.Header.Get("ETag")
	if held == newETag {
		return false
	}
	for _, tag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if strings.TrimSpace(tag) == newETag {
			return true
		}
	}
	return false
}
