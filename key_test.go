package httpcache

import (
	"net/http"
	"net/url"
	"testing"
)

func req(rawurl string) *http.Request {
	u, err := url.Parse(rawurl)
	if err != nil {
		panic(err)
	}
	return &http.Request{Method: "GET", URL: u, Host: u.Host, Header: http.Header{}}
}

func TestCanonicalKeyLowercasesSchemeAndHost(t *testing.T) {
	got := canonicalKey(req("http://Example.COM/Path"), false)
	if got != "http://example.com/Path" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalKeyElidesDefaultPort(t *testing.T) {
	if got := canonicalKey(req("http://example.com:80/x"), false); got != "http://example.com/x" {
		t.Fatalf("got %q", got)
	}
	if got := canonicalKey(req("https://example.com:443/x"), false); got != "https://example.com/x" {
		t.Fatalf("got %q", got)
	}
	if got := canonicalKey(req("http://example.com:8080/x"), false); got != "http://example.com:8080/x" {
		t.Fatalf("non-default port must be kept, got %q", got)
	}
}

func TestCanonicalKeyStripsQueryWhenDisabled(t *testing.T) {
	got := canonicalKey(req("http://example.com/x?a=1"), false)
	if got != "http://example.com/x" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalKeyKeepsQueryWhenEnabled(t *testing.T) {
	got := canonicalKey(req("http://example.com/x?a=1"), true)
	if got != "http://example.com/x?a=1" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalKeyIgnoresMethod(t *testing.T) {
	get := req("http://example.com/x")
	head := req("http://example.com/x")
	head.Method = "HEAD"
	if canonicalKey(get, false) != canonicalKey(head, false) {
		t.Fatal("expected GET and HEAD to share a key")
	}
}
