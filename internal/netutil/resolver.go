// Package netutil provides connection-establishment primitives: a
// dedup-on-the-fly Resolver, a Happy-Eyeballs TCPClient, and a
// SO_REUSEPORT-aware Listener, generalized from Tornado's netutil.py and
// tcpclient.py.
package netutil

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/singleflight"
)

// Resolver looks up the IP addresses for a host, collapsing concurrent
// lookups of the same host into one underlying call.
type Resolver struct {
	group    singleflight.Group
	resolver *net.Resolver
}

// NewResolver returns a Resolver backed by the given *net.Resolver, or the
// package default if r is nil.
func NewResolver(r *net.Resolver) *Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Resolver{resolver: r}
}

// Resolve returns all IP addresses for host as the resolver reports them. When
// multiple goroutines resolve the same host concurrently, only one DNS
// query is issued and all callers share its result.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	v, err, _ := r.group.Do(host, func() (any, error) {
		return r.resolver.LookupIPAddr(ctx, host)
	})
	if err != nil {
		return nil, fmt.Errorf("netutil: resolve %s: %w", host, err)
	}
	return v.([]net.IPAddr), nil
}
