// Package http1 implements wire-level request/response framing:
// start-line and header parsing, chunked transfer-coding, and
// keep-alive negotiation, generalized from Tornado's http1connection.py.
package http1

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"loom/internal/httputil"
)

// ErrMalformedStartLine is returned when a request or status line doesn't
// match the expected "METHOD target HTTP/x.y" or "HTTP/x.y code reason"
// shape.
var ErrMalformedStartLine = errors.New("http1: malformed start line")

// RequestLine is the parsed first line of an HTTP/1.x request.
type RequestLine struct {
	Method  string
	Target  string
	Version string // "HTTP/1.0" or "HTTP/1.1"
}

// ParseRequestLine parses "GET /path HTTP/1.1".
func ParseRequestLine(line string) (RequestLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return RequestLine{}, ErrMalformedStartLine
	}
	method, target, version := parts[0], parts[1], parts[2]
	if !isValidMethod(method) || !isValidVersion(version) {
		return RequestLine{}, ErrMalformedStartLine
	}
	return RequestLine{Method: method, Target: target, Version: version}, nil
}

// String renders the request line (without trailing CRLF).
func (r RequestLine) String() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.Target, r.Version)
}

// ResponseLine is the parsed first line of an HTTP/1.x response.
type ResponseLine struct {
	Version string
	Code    int
	Reason  string
}

// ParseResponseLine parses "HTTP/1.1 200 OK".
func ParseResponseLine(line string) (ResponseLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return ResponseLine{}, ErrMalformedStartLine
	}
	version := parts[0]
	if !isValidVersion(version) {
		return ResponseLine{}, ErrMalformedStartLine
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return ResponseLine{}, ErrMalformedStartLine
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return ResponseLine{Version: version, Code: code, Reason: reason}, nil
}

// String renders the status line (without trailing CRLF).
func (r ResponseLine) String() string {
	return fmt.Sprintf("%s %d %s", r.Version, r.Code, r.Reason)
}

func isValidVersion(v string) bool {
	return v == "HTTP/1.0" || v == "HTTP/1.1"
}

func isValidMethod(m string) bool {
	if m == "" {
		return false
	}
	for _, r := range m {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ParseHeaderBlock parses the raw header bytes (everything between the
// start line and the blank line terminator, CRLF-joined, no blank line
// included) into a Headers, validating field names/values with
// httpguts so malformed or smuggling-prone header bytes are rejected
// rather than silently passed through.
func ParseHeaderBlock(raw string) (*httputil.Headers, error) {
	h := httputil.NewHeaders()
	lines := strings.Split(raw, "\r\n")
	var name, value string
	haveField := false
	flush := func() error {
		if !haveField {
			return nil
		}
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("http1: invalid header %q: %w", name, ErrMalformedStartLine)
		}
		h.Add(name, strings.TrimSpace(value))
		return nil
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			// Obsolete line folding (RFC 7230 §3.2.4): reject rather than
			// silently unfold, matching modern HTTP/1.1 server behavior.
			return nil, fmt.Errorf("http1: obsolete line folding rejected: %w", ErrMalformedStartLine)
		}
		if err := flush(); err != nil {
			return nil, err
		}
		n, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, ErrMalformedStartLine
		}
		name, value, haveField = strings.TrimSpace(n), v, true
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return h, nil
}
