package httpcache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/always-cache/httpcache/store"
)

func TestFetchAppliesScrubList(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Internal-Debug", "secret")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("hi"))
	})
	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	v := fetch(backend, r, "", []string{"X-Internal-Debug"}, nil, TTLSpec{}, false)
	if v.Header.Get("X-Internal-Debug") != "" {
		t.Fatal("expected scrubbed header to be removed")
	}
}

func TestFetchRuleTTLOverridesOriginWhenNotMustRevalidate(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=5")
		w.Write([]byte("hi"))
	})
	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	v := fetch(backend, r, "", nil, nil, Fixed(120), true)
	ttl, ok := v.TTL()
	if !ok || ttl != 120 {
		t.Fatalf("expected rule TTL 120 to win, got %d ok=%v", ttl, ok)
	}
}

func TestFetchMustRevalidateKeepsOriginTTL(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=5, must-revalidate")
		w.Write([]byte("hi"))
	})
	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	v := fetch(backend, r, "", nil, nil, Fixed(120), true)
	ttl, ok := v.TTL()
	if !ok || ttl != 5 {
		t.Fatalf("expected origin TTL 5 to win under must-revalidate, got %d ok=%v", ttl, ok)
	}
}

func TestFetchMarksPrivateFromRequestHeader(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("hi"))
	})
	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	r.Header.Set("Authorization", "Bearer secret")
	v := fetch(backend, r, "", nil, []string{"Authorization"}, Fixed(60), true)
	if !v.Directives().Private {
		t.Fatal("expected response marked private")
	}
}

func TestFetchDoesNotMarkPrivateWhenResponseIsPublic(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60, public")
		w.Write([]byte("hi"))
	})
	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	r.Header.Set("Authorization", "Bearer secret")
	v := fetch(backend, r, "", nil, []string{"Authorization"}, Fixed(60), true)
	if v.Directives().Private {
		t.Fatal("expected public response to stay public despite private_headers match")
	}
}

func TestValidateVerbatim304WhenClientETagUnheld(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"new-etag"`)
		w.WriteHeader(http.StatusNotModified)
	})
	stored := store.Entry{StatusCode: 200, Header: http.Header{"ETag": []string{`"old-etag"`}}, Body: []byte("body")}
	r := httptest.NewRequest(http.MethodGet, "/a", nil)
	r.Header.Set("If-None-Match", `"new-etag"`)

	result := validate(backend, r, "", r.Header, stored, nil, nil, TTLSpec{}, false)
	if result.status != http.StatusNotModified {
		t.Fatalf("expected verbatim 304, got %d", result.status)
	}
	if result.stored {
		t.Fatal("expected no storage update on verbatim 304")
	}
}

func TestValidateMergesHeadersOnOrdinary304(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "Tue, 02 Jan 2001 00:00:00 GMT")
		w.Header().Set("Cache-Control", "max-age=30")
		w.WriteHeader(http.StatusNotModified)
	})
	stored := store.Entry{
		StatusCode: 200,
		Header: http.Header{
			"Last-Modified": []string{"Mon, 01 Jan 2001 00:00:00 GMT"},
			"Content-Type":  []string{"text/plain"},
		},
		Body: []byte("stored body"),
	}
	r := httptest.NewRequest(http.MethodGet, "/a", nil)

	result := validate(backend, r, "", r.Header, stored, nil, nil, TTLSpec{}, false)
	if result.status != http.StatusNotModified {
		t.Fatalf("status = %d", result.status)
	}
	if string(result.body) != "stored body" {
		t.Fatalf("body = %q", result.body)
	}
	if result.header.Get("Content-Type") != "text/plain" {
		t.Fatal("expected unmentioned headers preserved from stored response")
	}
	if result.header.Get("Cache-Control") != "max-age=30" {
		t.Fatalf("expected merged Cache-Control, got %q", result.header.Get("Cache-Control"))
	}
	if !result.stored {
		t.Fatal("expected merged entry to be persisted")
	}
}

func TestValidateRetainsStoredEntryOn5xx(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})
	stored := store.Entry{StatusCode: 200, Header: http.Header{}, Body: []byte("stored body")}
	r := httptest.NewRequest(http.MethodGet, "/a", nil)

	result := validate(backend, r, "", r.Header, stored, nil, nil, TTLSpec{}, false)
	if result.status != http.StatusInternalServerError {
		t.Fatalf("expected 5xx surfaced to caller, got %d", result.status)
	}
	if result.stored {
		t.Fatal("a 5xx must not evict or overwrite the existing entry")
	}
}

func TestUnionETagsDeduplicates(t *testing.T) {
	got := unionETags(`"a", "b"`, `"b"`)
	if got != `"a", "b"` {
		t.Fatalf("got %q", got)
	}
}

func TestRefurbishRecomputesAge(t *testing.T) {
	entry := store.Entry{
		StatusCode: 200,
		Header: http.Header{
			"Date":          []string{time.Now().Add(-30 * time.Second).UTC().Format(http.TimeFormat)},
			"Cache-Control": []string{"max-age=60"},
		},
		Body: []byte("hi"),
	}
	_, header, _ := refurbish(entry)
	age := header.Get("Age")
	if age == "" {
		t.Fatal("expected Age header to be set")
	}
	if age == "0" {
		t.Fatal("expected non-zero recomputed age")
	}
}
