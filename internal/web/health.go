package web

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler answers liveness checks by running Ping with a tight
// timeout. Ping is a generic dependency-health probe; the demo server
// uses it to ping its Postgres pool.
type HealthHandler struct {
	Ping    func(ctx context.Context) error
	Timeout time.Duration
}

// NewHealthHandler returns a HealthHandler pinging via ping, with a 2s
// default timeout.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{Ping: ping, Timeout: 2 * time.Second}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: " + err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}
