package queue

import (
	"time"

	"loom/internal/ioloop"
)

// Event is a cooperative set/clear/wait flag.
type Event struct {
	loop    *ioloop.Loop
	set     bool
	waiters []*ioloop.Future[struct{}]
}

// NewEvent returns a cleared Event.
func NewEvent(loop *ioloop.Loop) *Event { return &Event{loop: loop} }

// IsSet reports whether the event is currently set.
func (e *Event) IsSet() bool { return e.set }

// Set marks the event and wakes every current waiter, FIFO.
func (e *Event) Set() {
	if e.set {
		return
	}
	e.set = true
	waiters := e.waiters
	e.waiters = nil
	for _, w := range waiters {
		w.SetResult(struct{}{})
	}
}

// Clear unsets the event; subsequent Wait calls will block again.
func (e *Event) Clear() { e.set = false }

// Wait returns a Future resolving once the event is set, or ErrTimeout if
// timeout elapses first.
func (e *Event) Wait(timeout time.Duration) *ioloop.Future[struct{}] {
	f := ioloop.NewFuture[struct{}]()
	if e.set {
		f.SetResult(struct{}{})
		return f
	}
	e.waiters = append(e.waiters, f)
	if timeout > 0 {
		h := e.loop.CallLater(timeout, func() {
			if !f.Done() {
				f.SetException(ErrTimeout)
			}
		})
		f.AddDoneCallback(func(*ioloop.Future[struct{}]) { h.Cancel() })
	}
	return f
}

// Lock is a cooperative mutual-exclusion primitive: at most one acquirer
// holds it at a time, waiters wake FIFO.
type Lock struct {
	loop    *ioloop.Loop
	held    bool
	waiters []*ioloop.Future[struct{}]
}

// NewLock returns an unheld Lock.
func NewLock(loop *ioloop.Loop) *Lock { return &Lock{loop: loop} }

// Acquire returns a Future resolving once the Lock is held by the caller.
func (l *Lock) Acquire(timeout time.Duration) *ioloop.Future[struct{}] {
	f := ioloop.NewFuture[struct{}]()
	if !l.held {
		l.held = true
		f.SetResult(struct{}{})
		return f
	}
	l.waiters = append(l.waiters, f)
	if timeout > 0 {
		h := l.loop.CallLater(timeout, func() {
			if !f.Done() {
				f.SetException(ErrTimeout)
			}
		})
		f.AddDoneCallback(func(*ioloop.Future[struct{}]) { h.Cancel() })
	}
	return f
}

// Release hands the lock to the next FIFO waiter, or marks it free.
func (l *Lock) Release() {
	for len(l.waiters) > 0 {
		w := l.waiters[0]
		l.waiters = l.waiters[1:]
		if w.Done() {
			continue
		}
		w.SetResult(struct{}{})
		return
	}
	l.held = false
}

// Semaphore bounds concurrent holders to a fixed count.
type Semaphore struct {
	loop    *ioloop.Loop
	value   int
	waiters []*ioloop.Future[struct{}]
}

// NewSemaphore returns a Semaphore initialized with value permits.
func NewSemaphore(loop *ioloop.Loop, value int) *Semaphore {
	return &Semaphore{loop: loop, value: value}
}

// Acquire returns a Future resolving once a permit is available.
func (s *Semaphore) Acquire(timeout time.Duration) *ioloop.Future[struct{}] {
	f := ioloop.NewFuture[struct{}]()
	if s.value > 0 {
		s.value--
		f.SetResult(struct{}{})
		return f
	}
	s.waiters = append(s.waiters, f)
	if timeout > 0 {
		h := s.loop.CallLater(timeout, func() {
			if !f.Done() {
				f.SetException(ErrTimeout)
			}
		})
		f.AddDoneCallback(func(*ioloop.Future[struct{}]) { h.Cancel() })
	}
	return f
}

// Release returns a permit, handing it directly to the next FIFO waiter if
// one exists.
func (s *Semaphore) Release() {
	for len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		if w.Done() {
			continue
		}
		w.SetResult(struct{}{})
		return
	}
	s.value++
}

// Condition is a cooperative condition variable: waiters are released, in
// FIFO order, by Notify/NotifyAll. Unlike a traditional
// condition variable it carries no associated lock — the loop's serial
// execution already guarantees the "check predicate, then wait" sequence
// can't race with a notifier.
type Condition struct {
	loop    *ioloop.Loop
	waiters []*ioloop.Future[struct{}]
}

// NewCondition returns a Condition with no waiters.
func NewCondition(loop *ioloop.Loop) *Condition { return &Condition{loop: loop} }

// Wait returns a Future resolving the next time Notify/NotifyAll is called.
func (c *Condition) Wait(timeout time.Duration) *ioloop.Future[struct{}] {
	f := ioloop.NewFuture[struct{}]()
	c.waiters = append(c.waiters, f)
	if timeout > 0 {
		h := c.loop.CallLater(timeout, func() {
			if !f.Done() {
				f.SetException(ErrTimeout)
			}
		})
		f.AddDoneCallback(func(*ioloop.Future[struct{}]) { h.Cancel() })
	}
	return f
}

// Notify wakes up to n waiters (FIFO); n <= 0 means "one".
func (c *Condition) Notify(n int) {
	if n <= 0 {
		n = 1
	}
	for n > 0 && len(c.waiters) > 0 {
		w := c.waiters[0]
		c.waiters = c.waiters[1:]
		if w.Done() {
			continue
		}
		w.SetResult(struct{}{})
		n--
	}
}

// NotifyAll wakes every current waiter.
func (c *Condition) NotifyAll() {
	waiters := c.waiters
	c.waiters = nil
	for _, w := range waiters {
		if w.Done() {
			continue
		}
		w.SetResult(struct{}{})
	}
}
