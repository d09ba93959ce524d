package netutil

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DialWithRetry calls dial repeatedly with exponential backoff until it
// succeeds, ctx is cancelled, or maxElapsed has passed. Uses
// cenkalti/backoff/v4's off-the-shelf policy rather than a hand-rolled
// sleep loop.
func DialWithRetry(ctx context.Context, maxElapsed time.Duration, dial func(context.Context) (net.Conn, error)) (net.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	bo.InitialInterval = 200 * time.Millisecond

	var conn net.Conn
	op := func() error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}
