package cachecontrol

import (
	"net/http"
	"strconv"
	"time"
)

// notModifiedStripHeaders are the headers that MUST NOT appear on a
// 304 Not Modified response, per RFC 2616 §10.3.5.
var notModifiedStripHeaders = []string{
	"Allow",
	"Content-Encoding",
	"Content-Language",
	"Content-Length",
	"Content-MD5",
	"Content-Type",
	"Last-Modified",
}

// cacheableStatuses are the status codes eligible for storage, per
// RFC 2616 §13.4.
var cacheableStatuses = map[int]bool{
	200: true, 203: true, 300: true, 301: true, 302: true, 404: true, 410: true,
}

// View wraps a response triple and gives typed, freshness-aware access to
// its caching-relevant headers. It is constructed once per response as
// that response passes through the dispatcher or the revalidator, and is
// never shared across requests.
type View struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	directives Directives
	now        time.Time
}

// New wraps a response triple, capturing the current time as the frozen
// clock reading used for all age/freshness arithmetic against it.
func New(statusCode int, header http.Header, body []byte) *View {
	if header == nil {
		header = http.Header{}
	}
	return &View{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		directives: ParseDirectives(header.Values("Cache-Control")),
		now:        time.Now(),
	}
}

// Directives returns the parsed Cache-Control directive set. Mutating the
// returned value and passing it back through SetDirectives is the
// supported way to change directives before Finalize.
func (v *View) Directives() Directives { return v.directives }

// SetDirectives replaces the parsed directive set. It takes effect on the
// header only once Finalize is called.
func (v *View) SetDirectives(d Directives) { v.directives = d }

// Now returns the clock reading captured at construction.
func (v *View) Now() time.Time { return v.now }

// Expires returns the parsed Expires header, if present and well formed.
func (v *View) Expires() (time.Time, bool) {
	return parseHTTPDate(v.Header.Get("Expires"))
}

// SetExpires writes the Expires header in RFC 1123 form.
func (v *View) SetExpires(t time.Time) {
	v.Header.Set("Expires", t.UTC().Format(http.TimeFormat))
}

// Date returns the parsed Date header, if present and well formed.
func (v *View) Date() (time.Time, bool) {
	return parseHTTPDate(v.Header.Get("Date"))
}

// SetDate writes the Date header in RFC 1123 form.
func (v *View) SetDate(t time.Time) {
	v.Header.Set("Date", t.UTC().Format(http.TimeFormat))
}

func parseHTTPDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ETag returns the raw ETag header value, opaque.
func (v *View) ETag() string { return v.Header.Get("ETag") }

// SetETag sets the ETag header.
func (v *View) SetETag(s string) { v.Header.Set("ETag", s) }

// Vary returns the raw Vary header value, opaque. The core tracks this
// header but does not implement variant selection on it.
func (v *View) Vary() string { return v.Header.Get("Vary") }

// SetVary sets the Vary header.
func (v *View) SetVary(s string) { v.Header.Set("Vary", s) }

// LastModified returns the raw Last-Modified header value. It is
// deliberately not normalised to a time.Time: validator comparison against
// If-Modified-Since must be byte-for-byte against the origin's own bytes.
func (v *View) LastModified() string { return v.Header.Get("Last-Modified") }

// SetLastModified sets the Last-Modified header verbatim.
func (v *View) SetLastModified(s string) { v.Header.Set("Last-Modified", s) }

// Age returns the effective Age in seconds: the Age header if present,
// else now - Date clamped at zero, else zero.
func (v *View) Age() int {
	if raw := v.Header.Get("Age"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	if date, ok := v.Date(); ok {
		if d := int(v.now.Sub(date).Seconds()); d > 0 {
			return d
		}
	}
	return 0
}

// SetAge writes the Age header.
func (v *View) SetAge(n int) {
	if n < 0 {
		n = 0
	}
	v.Header.Set("Age", strconv.Itoa(n))
}

// MaxAge returns the response's declared maximum age in seconds: s-maxage
// wins over max-age; failing that, Expires - Date (or Expires - now if
// Date is absent); undefined if none of these apply.
func (v *View) MaxAge() (int, bool) {
	if v.directives.SMaxAge != nil {
		return *v.directives.SMaxAge, true
	}
	if v.directives.MaxAge != nil {
		return *v.directives.MaxAge, true
	}
	if expires, ok := v.Expires(); ok {
		base := v.now
		if date, ok := v.Date(); ok {
			base = date
		}
		return int(expires.Sub(base).Seconds()), true
	}
	return 0, false
}

// TTL returns max_age - age when both are defined; undefined otherwise.
func (v *View) TTL() (int, bool) {
	maxAge, ok := v.MaxAge()
	if !ok {
		return 0, false
	}
	return maxAge - v.Age(), true
}

// SetTTL extends the response's lifetime by n seconds from now, by writing
// s-maxage = age + n. Two distinct verbs (TTL/SetTTL) replace the source's
// single overloaded accessor.
func (v *View) SetTTL(n int) {
	newMaxAge := v.Age() + n
	v.directives.SMaxAge = &newMaxAge
}

// Expire marks a fresh response as immediately stale by setting its Age to
// its MaxAge, driving TTL to zero. It is a no-op if the response is not
// currently fresh.
func (v *View) Expire() {
	if !v.IsFresh() {
		return
	}
	maxAge, _ := v.MaxAge()
	v.SetAge(maxAge)
}

// IsFresh reports whether the response's TTL is defined and positive.
func (v *View) IsFresh() bool {
	ttl, ok := v.TTL()
	return ok && ttl > 0
}

// IsValidateable reports whether the response carries a validator usable
// for a conditional request.
func (v *View) IsValidateable() bool {
	return v.LastModified() != "" || v.ETag() != ""
}

// IsCacheable reports whether a shared cache may store this response at
// all, independent of whether it currently happens to be fresh.
func (v *View) IsCacheable() bool {
	if !cacheableStatuses[v.StatusCode] {
		return false
	}
	if v.directives.NoStore || v.directives.Private {
		return false
	}
	return v.IsValidateable() || v.IsFresh()
}

// IsMustRevalidate reports whether the response forbids serving stale
// without revalidation, even for a client willing to accept staleness.
func (v *View) IsMustRevalidate() bool {
	return v.directives.MustRevalidate || v.directives.ProxyRevalidate
}

// MakeNotModified rewrites the view in place into a conformant
// 304 Not Modified: empty body, status 304, and the headers that MUST NOT
// appear on a 304 stripped.
func (v *View) MakeNotModified() {
	v.StatusCode = http.StatusNotModified
	v.Body = nil
	for _, h := range notModifiedStripHeaders {
		v.Header.Del(h)
	}
}

// Finalize re-serialises the directive map back onto the Cache-Control
// header (omitting it entirely if empty) and returns the response triple
// ready for emission.
func (v *View) Finalize() (int, http.Header, []byte) {
	if v.directives.IsEmpty() {
		v.Header.Del("Cache-Control")
	} else {
		v.Header.Set("Cache-Control", v.directives.String())
	}
	return v.StatusCode, v.Header, v.Body
}
