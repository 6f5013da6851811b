package store

import (
	"net/http"
	"testing"
)

func TestEncodeDecodeEntryRoundTrip(t *testing.T) {
	reqHeader := http.Header{}
	reqHeader.Set("Accept-Encoding", "gzip")

	resHeader := http.Header{}
	resHeader.Set("Content-Type", "text/plain")
	resHeader.Set("ETag", `"abc123"`)

	entry := Entry{
		RequestHeader: reqHeader,
		StatusCode:    200,
		Header:        resHeader,
		Body:          []byte("hello, cache"),
	}

	raw, err := encodeEntry(entry)
	if err != nil {
		t.Fatalf("encodeEntry: %v", err)
	}
	decoded, err := decodeEntry(raw)
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if decoded.StatusCode != 200 {
		t.Fatalf("status = %d", decoded.StatusCode)
	}
	if string(decoded.Body) != "hello, cache" {
		t.Fatalf("body = %q", decoded.Body)
	}
	if decoded.Header.Get("ETag") != `"abc123"` {
		t.Fatalf("etag = %q", decoded.Header.Get("ETag"))
	}
	if decoded.RequestHeader.Get("Accept-Encoding") != "gzip" {
		t.Fatalf("request header not preserved: %q", decoded.RequestHeader.Get("Accept-Encoding"))
	}
}

func TestDecodeEntryMalformedErrors(t *testing.T) {
	if _, err := decodeEntry([]byte("not a valid entry")); err == nil {
		t.Fatal("expected error decoding malformed entry")
	}
}
