package httpcache

import (
	"net/http"
	"strings"
)

// canonicalKey builds the cache key for a request: lowercased scheme and
// host with the default port elided, and the query string included only
// when cacheQueries is enabled. The method is deliberately not part of
// the key — a HEAD request is answered from a GET entry; omitting the
// response body on HEAD is the hosting server's concern, not ours.
func canonicalKey(r *http.Request, cacheQueries bool) string {
	scheme := strings.ToLower(r.URL.Scheme)
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := strings.ToLower(r.URL.Host)
	if host == "" {
		host = strings.ToLower(r.Host)
	}
	host = elideDefaultPort(scheme, host)

	path := r.URL.Path
	if path == "" {
		path = "/"
	}

	key := scheme + "://" + host + path
	if cacheQueries && r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	return key
}

func elideDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}
