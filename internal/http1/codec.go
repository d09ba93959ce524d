package http1

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"loom/internal/httputil"
)

// DetermineKeepAlive applies the HTTP/1.0 vs HTTP/1.1 default plus any
// explicit Connection header override:
// HTTP/1.1 defaults to persistent unless "Connection: close" is present;
// HTTP/1.0 defaults to non-persistent unless "Connection: keep-alive" is
// present.
func DetermineKeepAlive(version string, headers *httputil.Headers) bool {
	conn := strings.ToLower(headers.Get("Connection"))
	tokens := map[string]bool{}
	for _, t := range strings.Split(conn, ",") {
		tokens[strings.TrimSpace(t)] = true
	}
	if version == "HTTP/1.1" {
		return !tokens["close"]
	}
	return tokens["keep-alive"]
}

// WriteStartLineAndHeaders serializes a request or status line followed by
// headers and the terminating blank line.
func WriteStartLineAndHeaders(w io.Writer, startLine string, headers *httputil.Headers) error {
	if _, err := fmt.Fprintf(w, "%s\r\n", startLine); err != nil {
		return err
	}
	var werr error
	headers.Each(func(name, value string) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(w, "%s: %s\r\n", name, value)
	})
	if werr != nil {
		return werr
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// BodyReader returns a reader for the message body framed according to
// headers: chunked transfer-coding takes priority over Content-Length,
// and the caller-supplied allowReadUntilClose covers the case of neither
// header being present on an HTTP/1.0 response.
func BodyReader(headers *httputil.Headers, underlying io.Reader, allowReadUntilClose bool) (io.Reader, error) {
	te := strings.ToLower(headers.Get("Transfer-Encoding"))
	if strings.Contains(te, "chunked") {
		return NewChunkedReader(underlying), nil
	}
	if cls := headers.GetList("Content-Length"); len(cls) > 0 {
		cl := cls[0]
		for _, v := range cls[1:] {
			if v != cl {
				return nil, fmt.Errorf("http1: conflicting Content-Length: %w", ErrMalformedStartLine)
			}
		}
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("http1: invalid Content-Length: %w", ErrMalformedStartLine)
		}
		return io.LimitReader(underlying, n), nil
	}
	if allowReadUntilClose {
		return underlying, nil
	}
	return io.LimitReader(underlying, 0), nil
}

// MaybeDecompress wraps body in a gzip reader when headers advertises
// Content-Encoding: gzip, using klauspost/compress/gzip rather than the
// standard library's compress/gzip for its faster decoder.
func MaybeDecompress(headers *httputil.Headers, body io.Reader) (io.Reader, error) {
	if strings.ToLower(headers.Get("Content-Encoding")) != "gzip" {
		return body, nil
	}
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("http1: gzip body: %w", err)
	}
	return zr, nil
}
