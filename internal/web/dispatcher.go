package web

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"loom/internal/httputil"
)

// Dispatcher matches incoming requests against an ordered list of Routes
// and serves the first match, falling back to a 404. Before matching it
// applies x-header trust (XHeaders) and, when XSRFCookies is set, rejects
// POST/PUT/PATCH/DELETE requests that fail CheckXSRFCookie with a 403.
// CookieSigner is only carried here; ServeHTTP does not read or set
// signed cookies.
type Dispatcher struct {
	routes []Route
	logger *slog.Logger

	// XHeaders trusts X-Forwarded-For/X-Forwarded-Proto/X-Real-IP from the
	// immediate peer, for deployments that sit behind a reverse proxy
	//.
	XHeaders bool

	CookieSigner *httputil.Signer
	XSRFCookies  bool

	NotFound http.Handler
}

// NewDispatcher returns an empty Dispatcher; routes are added with
// AddRoute in priority order.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, NotFound: http.HandlerFunc(defaultNotFound)}
}

func defaultNotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
}

// AddRoute appends rt to the route table. Routes are matched in the order
// added; the first match wins.
func (d *Dispatcher) AddRoute(rt Route) {
	d.routes = append(d.routes, rt)
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if d.XHeaders {
		applyXHeaders(r)
	}
	if d.XSRFCookies {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if err := CheckXSRFCookie(r); err != nil {
				http.Error(w, `{"error":"xsrf check failed"}`, http.StatusForbidden)
				return
			}
		}
	}
	for _, rt := range d.routes {
		if rt.matches(r) {
			rt.Handler.ServeHTTP(w, r)
			return
		}
	}
	d.NotFound.ServeHTTP(w, r)
}

// applyXHeaders rewrites r.RemoteAddr and r.URL.Scheme from
// X-Real-IP/X-Forwarded-For and X-Forwarded-Proto, trusting the immediate
// peer. Only the first X-Forwarded-For entry (closest to the
// original client) is used.
func applyXHeaders(r *http.Request) {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		r.RemoteAddr = net.JoinHostPort(ip, "0")
	} else if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			r.RemoteAddr = net.JoinHostPort(first, "0")
		}
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		r.URL.Scheme = proto
	}
}
