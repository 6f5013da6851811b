package store

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
)

var errMalformedEntry = errors.New("store: malformed encoded entry")

// entryDelim separates the stored request headers from the stored
// response bytes, mirroring the teacher's response-serializer package,
// which concatenates request and response with a fixed delimiter so a
// future Vary-negotiation pass can recover both halves.
var entryDelim = []byte("\r\n\r\n----\r\n\r\n")

// encodeEntry renders an Entry to its wire representation for storage in
// a byte-oriented backend (e.g. a SQLite BLOB column).
func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer

	reqHeader := e.RequestHeader
	if reqHeader == nil {
		reqHeader = http.Header{}
	}
	// http.Request.Write requires a non-nil URL; a minimal one is enough
	// since only the headers are of interest on decode.
	fakeReq := &http.Request{Header: reqHeader, Method: "GET", URL: &url.URL{Path: "/"}}
	if err := fakeReq.Write(&buf); err != nil {
		return nil, err
	}
	buf.Write(entryDelim)

	res := &http.Response{
		StatusCode:    e.StatusCode,
		Status:        http.StatusText(e.StatusCode),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
	if err := res.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEntry parses the wire representation produced by encodeEntry.
func decodeEntry(b []byte) (Entry, error) {
	parts := bytes.SplitN(b, entryDelim, 2)
	if len(parts) != 2 {
		return Entry{}, errMalformedEntry
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(parts[0])))
	if err != nil {
		return Entry{}, err
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(parts[1])), nil)
	if err != nil {
		return Entry{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		RequestHeader: req.Header,
		StatusCode:    res.StatusCode,
		Header:        res.Header,
		Body:          body,
	}, nil
}
