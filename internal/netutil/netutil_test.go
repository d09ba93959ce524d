package netutil_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/netutil"
)

func TestResolver_ResolvesLoopback(t *testing.T) {
	r := netutil.NewResolver(nil)
	addrs, err := r.Resolve(context.Background(), "localhost")
	require.NoError(t, err)
	assert.NotEmpty(t, addrs)
}

func TestResolver_DeduplicatesConcurrentLookups(t *testing.T) {
	r := netutil.NewResolver(nil)
	ctx := context.Background()
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := r.Resolve(ctx, "localhost")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}

func TestTCPClient_ConnectsToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	client := netutil.NewTCPClient()
	client.StaggerDelay = 10 * time.Millisecond

	conn, err := client.Connect(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case s := <-accepted:
		defer s.Close()
	case <-time.After(time.Second):
		t.Fatal("listener never accepted")
	}
}

func TestTCPClient_NoListenerReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // nothing listening now

	client := netutil.NewTCPClient()
	client.StaggerDelay = 5 * time.Millisecond
	_, err = client.Connect(context.Background(), "127.0.0.1", port)
	assert.Error(t, err)
}

func TestListen_PlainBind(t *testing.T) {
	ln, err := netutil.Listen("127.0.0.1:0", false)
	require.NoError(t, err)
	defer ln.Close()
	assert.NotNil(t, ln.Addr())
}

func TestDialWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr().String()

	go func() {
		c, _ := ln.Accept()
		if c != nil {
			c.Close()
		}
	}()

	attempts := 0
	conn, err := netutil.DialWithRetry(context.Background(), 2*time.Second, func(ctx context.Context) (net.Conn, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("not yet")
		}
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	})
	require.NoError(t, err)
	conn.Close()
	assert.GreaterOrEqual(t, attempts, 2)
}
