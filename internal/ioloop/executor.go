package ioloop

// Executor runs blocking or CPU-bound work off the loop thread. A
// *sync worker pool* satisfies this; RunInExecutor marshals the result back
// onto the loop thread before resolving the returned Future.
type Executor interface {
	Submit(fn func())
}

// GoExecutor is the simplest Executor: it spawns one goroutine per
// submission. Suitable for the Resolver's thread-pool fallback and for
// demo handlers offloading short blocking calls.
type GoExecutor struct{}

// Submit runs fn in a new goroutine.
func (GoExecutor) Submit(fn func()) { go fn() }

// RunInExecutor submits fn to executor and returns a Future resolved on the
// loop thread with fn's result once it completes.
func RunInExecutor[T any](l *Loop, executor Executor, fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	executor.Submit(func() {
		v, err := fn()
		l.AddCallback(func() {
			if err != nil {
				f.SetException(err)
				return
			}
			f.SetResult(v)
		})
	})
	return f
}
