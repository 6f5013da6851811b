package httpcache

import (
	"bytes"
	"net/http"
)

// recorder is a minimal http.ResponseWriter that captures a backend
// handler's response in memory instead of writing it to a client, so the
// dispatcher can inspect and cache it before deciding what the real
// client actually sees. Grounded on the teacher's response-writer-tee,
// simplified: this recorder never tees through to a live ResponseWriter,
// since the dispatcher always makes its own decision about what (and
// whether) to write downstream.
type recorder struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}}
}

func (rec *recorder) Header() http.Header { return rec.header }

func (rec *recorder) WriteHeader(statusCode int) {
	if rec.wroteHeader {
		return
	}
	rec.wroteHeader = true
	rec.status = statusCode
}

func (rec *recorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	return rec.body.Write(b)
}

// call runs next against r with a recorder standing in for the
// client connection, and returns the captured response triple.
func call(next http.Handler, r *http.Request) (status int, header http.Header, body []byte) {
	rec := newRecorder()
	next.ServeHTTP(rec, r)
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	return rec.status, rec.header, rec.body.Bytes()
}

// writeResponse emits a finalised response triple to the real client.
func writeResponse(w http.ResponseWriter, status int, header http.Header, body []byte) {
	dst := w.Header()
	for k, vv := range header {
		dst[k] = vv
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		w.Write(body)
	}
}
