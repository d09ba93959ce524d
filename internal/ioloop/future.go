// Package ioloop implements the cooperative event loop the rest of loom is
// built on: a single dispatcher goroutine that drains a thread-safe callback
// queue and a deadline-ordered timer heap, plus the Future type used to hand
// a value from one callback to another across suspension points.
package ioloop

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is returned by Result/Exception when a Future was cancelled
// before it completed.
var ErrCancelled = errors.New("ioloop: future cancelled")

// Future represents a value of type T that becomes available later, on the
// loop thread. It is safe to read (Done, Result, Exception) from any
// goroutine once completed; SetResult/SetException/Cancel are expected to be
// called from the loop thread that owns the Future.
type Future[T any] struct {
	mu       sync.Mutex
	done     bool
	cancelled bool
	result   T
	err      error
	callbacks []func(*Future[T])
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Future[T]{ctx: ctx, cancel: cancel}
}

// Context returns a context.Context that is cancelled exactly when the
// Future is resolved (result, exception, or cancellation). This lets
// context-based stdlib and third-party APIs (pgx, http.Client) be driven by
// a Future's lifetime without forcing every leaf call in this module to take
// a raw context.Context parameter.
func (f *Future[T]) Context() context.Context {
	return f.ctx
}

// Done reports whether the Future has completed (result, exception, or
// cancellation).
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Cancelled reports whether the Future was cancelled.
func (f *Future[T]) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// SetResult resolves the Future successfully. Calling it on an already-done
// Future is a no-op; cancellation on a completed Future is likewise a
// no-op, and both follow this same terminal-transition rule.
func (f *Future[T]) SetResult(v T) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.result = v
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()
	f.cancel()
	for _, cb := range cbs {
		cb(f)
	}
}

// SetException resolves the Future with an error.
func (f *Future[T]) SetException(err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()
	f.cancel()
	for _, cb := range cbs {
		cb(f)
	}
}

// Cancel marks a pending Future as cancelled without invoking further
// callbacks beyond the done-callbacks already registered.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.cancelled = true
	f.err = ErrCancelled
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()
	f.cancel()
	for _, cb := range cbs {
		cb(f)
	}
	return true
}

// AddDoneCallback registers cb to run on the loop thread once the Future
// completes. Callbacks fire in registration order. If the Future is already done, cb runs synchronously.
func (f *Future[T]) AddDoneCallback(cb func(*Future[T])) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		cb(f)
		return
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Result returns the resolved value and any error (including ErrCancelled).
// It does not block; callers on the loop thread must only call this after
// Done() is true or from within a done-callback.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// Exception returns the error the Future completed with, or nil.
func (f *Future[T]) Exception() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Chain copies src's outcome onto dst unless dst is already done, mirroring
// Tornado's concurrent.chain_future helper.
func Chain[T any](src, dst *Future[T]) {
	src.AddDoneCallback(func(f *Future[T]) {
		if dst.Done() {
			return
		}
		v, err := f.Result()
		if f.Cancelled() {
			dst.Cancel()
			return
		}
		if err != nil {
			dst.SetException(err)
			return
		}
		dst.SetResult(v)
	})
}
