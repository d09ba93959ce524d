package web

import (
	"bytes"
	"net/http"
)

// Response buffers status, headers, and body until Flush or Finish is
// called, so a handler may call Clear to discard everything written so
// far and start over — e.g. after a mid-handler error. Mirrors
// Tornado's RequestHandler.clear().
type Response struct {
	w         http.ResponseWriter
	header    http.Header
	status    int
	buf       bytes.Buffer
	flushed   bool
	finished  bool
}

// NewResponse wraps the underlying http.ResponseWriter for buffered use.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w, header: make(http.Header), status: http.StatusOK}
}

// Header returns the buffered header set, mutable until Flush.
func (rp *Response) Header() http.Header { return rp.header }

// SetStatus sets the status code to use once flushed.
func (rp *Response) SetStatus(code int) { rp.status = code }

// Status returns the currently staged status code.
func (rp *Response) Status() int { return rp.status }

func (rp *Response) Write(p []byte) (int, error) { return rp.buf.Write(p) }

// Clear discards all headers and body written so far and resets the
// status to 200, as if nothing had been written yet. Has no effect once
// the response has already been flushed.
func (rp *Response) Clear() {
	if rp.flushed {
		return
	}
	rp.header = make(http.Header)
	rp.buf.Reset()
	rp.status = http.StatusOK
}

// Flush sends any staged headers (once) and body bytes written so far.
func (rp *Response) Flush() error {
	if !rp.flushed {
		dst := rp.w.Header()
		for k, vv := range rp.header {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
		rp.w.WriteHeader(rp.status)
		rp.flushed = true
	}
	if rp.buf.Len() > 0 {
		_, err := rp.w.Write(rp.buf.Bytes())
		rp.buf.Reset()
		return err
	}
	return nil
}

// Finish flushes and marks the response complete; further writes are
// pointless but not forbidden.
func (rp *Response) Finish() error {
	err := rp.Flush()
	rp.finished = true
	return err
}

// Finished reports whether Finish has been called.
func (rp *Response) Finished() bool { return rp.finished }
