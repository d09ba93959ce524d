package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrNoAddresses is returned when resolution succeeds but yields no usable
// address for the requested host.
var ErrNoAddresses = errors.New("netutil: no addresses to connect to")

// TCPClient dials a host:port pair using Happy Eyeballs (RFC 6555): it
// races staggered connection attempts across the resolved addresses,
// alternating address families, and returns the first to succeed while
// cancelling the rest.
type TCPClient struct {
	Resolver     *Resolver
	Dialer       net.Dialer
	StaggerDelay time.Duration
}

// NewTCPClient returns a TCPClient with the package default resolver and a
// 250ms stagger between successive connection attempts, per RFC 8305's
// recommended "Connection Attempt Delay".
func NewTCPClient() *TCPClient {
	return &TCPClient{
		Resolver:     NewResolver(nil),
		StaggerDelay: 250 * time.Millisecond,
	}
}

type dialResult struct {
	conn net.Conn
	err  error
}

// Connect resolves host and races dials across its addresses, returning
// the first successful connection.
func (c *TCPClient) Connect(ctx context.Context, host string, port int) (net.Conn, error) {
	addrs, err := c.Resolver.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoAddresses
	}
	addrs = interleaveFamilies(addrs)

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan dialResult, len(addrs))
	var wg sync.WaitGroup
	for i, addr := range addrs {
		wg.Add(1)
		go func(i int, addr net.IPAddr) {
			defer wg.Done()
			if i > 0 {
				timer := time.NewTimer(time.Duration(i) * c.StaggerDelay)
				defer timer.Stop()
				select {
				case <-dialCtx.Done():
					results <- dialResult{nil, dialCtx.Err()}
					return
				case <-timer.C:
				}
			}
			target := net.JoinHostPort(addr.String(), fmt.Sprint(port))
			conn, err := c.Dialer.DialContext(dialCtx, "tcp", target)
			results <- dialResult{conn, err}
		}(i, addr)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if res.err == nil {
			cancel()
			go drainLosers(results)
			return res.conn, nil
		}
		if firstErr == nil {
			firstErr = res.err
		}
	}
	if firstErr == nil {
		firstErr = ErrNoAddresses
	}
	return nil, fmt.Errorf("netutil: connect %s:%d: %w", host, port, firstErr)
}

func drainLosers(results <-chan dialResult) {
	for res := range results {
		if res.conn != nil {
			res.conn.Close()
		}
	}
}

// interleaveFamilies reorders addrs alternating IPv4/IPv6 starting with
// whichever family appeared first, per RFC 8305 §4's address interleaving.
func interleaveFamilies(addrs []net.IPAddr) []net.IPAddr {
	var v4, v6 []net.IPAddr
	for _, a := range addrs {
		if a.IP.To4() != nil {
			v4 = append(v4, a)
		} else {
			v6 = append(v6, a)
		}
	}
	first, second := v6, v4
	if len(addrs) > 0 && addrs[0].IP.To4() != nil {
		first, second = v4, v6
	}
	out := make([]net.IPAddr, 0, len(addrs))
	for i := 0; i < len(first) || i < len(second); i++ {
		if i < len(first) {
			out = append(out, first[i])
		}
		if i < len(second) {
			out = append(out, second[i])
		}
	}
	return out
}
