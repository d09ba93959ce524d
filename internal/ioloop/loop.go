package ioloop

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"
)

// TimerHandle is a cancellable handle returned by CallLater/CallAt.
type TimerHandle struct {
	deadline time.Time
	seq      uint64
	cb       func()
	index    int // heap index, -1 once removed
	cancelled bool
}

// Cancel prevents the timer from firing if it hasn't already.
func (h *TimerHandle) Cancel() {
	h.cancelled = true
}

type timerHeap []*TimerHandle

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	th := x.(*TimerHandle)
	th.index = len(*h)
	*h = append(*h, th)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	th := old[n-1]
	old[n-1] = nil
	th.index = -1
	*h = old[:n-1]
	return th
}

// Loop is a single-threaded cooperative scheduler: one goroutine (Run) pops
// callbacks off a thread-safe queue and fires expired timers in
// non-decreasing deadline order, ties broken by insertion.
// AddCallback is the only method safe to call from a goroutine other than
// the one running Run.
type Loop struct {
	Logger *slog.Logger

	mu       sync.Mutex
	callbacks []func()
	timers   timerHeap
	seq      uint64
	wake     chan struct{}
	stopped  bool
	stopCh   chan struct{}
	closers  []func()
}

// New returns a Loop that has not yet started running.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		Logger: logger,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&l.timers)
	return l
}

func (l *Loop) poke() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AddCallback enqueues cb to run on the loop thread at the next tick. It is
// the sole thread-safe entry point into the Loop.
func (l *Loop) AddCallback(cb func()) {
	l.mu.Lock()
	l.callbacks = append(l.callbacks, cb)
	l.mu.Unlock()
	l.poke()
}

// CallAt schedules cb to run once the loop's clock reaches deadline.
// Returns a handle that can be cancelled before the timer fires.
func (l *Loop) CallAt(deadline time.Time, cb func()) *TimerHandle {
	l.mu.Lock()
	l.seq++
	h := &TimerHandle{deadline: deadline, seq: l.seq, cb: cb}
	heap.Push(&l.timers, h)
	l.mu.Unlock()
	l.poke()
	return h
}

// CallLater schedules cb to run after delay elapses.
func (l *Loop) CallLater(delay time.Duration, cb func()) *TimerHandle {
	return l.CallAt(time.Now().Add(delay), cb)
}

// AddCloser registers a cleanup function run during Stop's drain, for
// closing registered file descriptors or connections on shutdown.
func (l *Loop) AddCloser(fn func()) {
	l.mu.Lock()
	l.closers = append(l.closers, fn)
	l.mu.Unlock()
}

// Run drives the loop until Stop is called. It must be invoked from exactly
// one goroutine; every callback and timer fires serially on that goroutine,
// so at most one callback is ever in progress at a time.
func (l *Loop) Run() {
	for {
		l.mu.Lock()
		if l.stopped {
			cbs := l.callbacks
			l.callbacks = nil
			l.mu.Unlock()
			for _, cb := range cbs {
				l.runSafely(cb)
			}
			return
		}

		cbs := l.callbacks
		l.callbacks = nil

		var waitFor time.Duration = time.Hour
		var due []*TimerHandle
		now := time.Now()
		for l.timers.Len() > 0 {
			next := l.timers[0]
			if next.cancelled {
				heap.Pop(&l.timers)
				continue
			}
			if !next.deadline.After(now) {
				due = append(due, heap.Pop(&l.timers).(*TimerHandle))
				continue
			}
			waitFor = next.deadline.Sub(now)
			break
		}
		l.mu.Unlock()

		for _, cb := range cbs {
			l.runSafely(cb)
		}
		for _, t := range due {
			if !t.cancelled {
				l.runSafely(t.cb)
			}
		}

		if len(cbs) > 0 || len(due) > 0 {
			// Callbacks or timers may have enqueued more work; re-check
			// immediately instead of sleeping.
			continue
		}

		timer := time.NewTimer(waitFor)
		select {
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		case <-l.stopCh:
			timer.Stop()
		}
	}
}

// runSafely executes cb, logging (not propagating) any panic so an
// unhandled handler error never terminates the loop.
func (l *Loop) runSafely(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Error("ioloop: callback panicked", slog.Any("panic", r))
		}
	}()
	cb()
}

// Stop requests the loop to finish draining queued callbacks and return
// from Run. It cancels pending timers and runs registered closers.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	for l.timers.Len() > 0 {
		heap.Pop(&l.timers)
	}
	closers := l.closers
	l.closers = nil
	l.mu.Unlock()
	close(l.stopCh)
	for _, fn := range closers {
		fn()
	}
}
