// Package queue implements the cooperative Queue/PriorityQueue/LifoQueue
// family, generalized from Tornado's queues.py. Every wait
// operation resolves an ioloop.Future instead of blocking a goroutine, so
// waiters can be driven from the same single-threaded loop as everything
// else in this module.
package queue

import (
	"container/heap"
	"errors"
	"time"

	"loom/internal/ioloop"
)

// ErrFull is returned by PutNoWait when the queue is at capacity.
var ErrFull = errors.New("queue: full")

// ErrEmpty is returned by GetNoWait when the queue has no items.
var ErrEmpty = errors.New("queue: empty")

// ErrTimeout is returned when a bounded wait's deadline elapses first.
var ErrTimeout = errors.New("queue: timeout")

// ordering selects FIFO, LIFO, or priority-heap discipline.
type ordering int

const (
	orderFIFO ordering = iota
	orderLIFO
	orderPriority
)

// Prioritized may be implemented by values put into a PriorityQueue to
// control heap order; unprioritized values default to priority 0.
type Prioritized interface{ Priority() int }

type item struct {
	priority int
	seq      int64
	value    any
}

type itemHeap []item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].priority == h[j].priority {
		return h[i].seq < h[j].seq
	}
	return h[i].priority < h[j].priority
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type putWaiter struct {
	value  any
	future *ioloop.Future[struct{}]
}

// Queue is a cooperative bounded FIFO queue driven by an ioloop.Loop.
// PriorityQueue and LifoQueue share this implementation with a different
// ordering discipline.
type Queue struct {
	loop    *ioloop.Loop
	maxsize int
	order   ordering
	seq     int64

	items []item // FIFO/LIFO storage
	heap  itemHeap

	putWaiters []*putWaiter
	getWaiters []*ioloop.Future[any]

	unfinished  int
	joinWaiters []*ioloop.Future[struct{}]
}

func newQueue(loop *ioloop.Loop, maxsize int, order ordering) *Queue {
	q := &Queue{loop: loop, maxsize: maxsize, order: order}
	if order == orderPriority {
		heap.Init(&q.heap)
	}
	return q
}

// NewQueue returns a FIFO queue. maxsize <= 0 means unbounded.
func NewQueue(loop *ioloop.Loop, maxsize int) *Queue { return newQueue(loop, maxsize, orderFIFO) }

// NewPriorityQueue returns a min-heap-ordered queue; values implementing
// Prioritized control order, others default to priority 0, ties broken by
// insertion order.
func NewPriorityQueue(loop *ioloop.Loop, maxsize int) *Queue {
	return newQueue(loop, maxsize, orderPriority)
}

// NewLifoQueue returns a stack-ordered queue.
func NewLifoQueue(loop *ioloop.Loop, maxsize int) *Queue { return newQueue(loop, maxsize, orderLIFO) }

func (q *Queue) size() int {
	if q.order == orderPriority {
		return q.heap.Len()
	}
	return len(q.items)
}

// QSize returns the number of items currently queued.
func (q *Queue) QSize() int { return q.size() }

// Full reports whether the queue is at its configured maxsize.
func (q *Queue) Full() bool { return q.maxsize > 0 && q.size() >= q.maxsize }

// Empty reports whether the queue currently holds no items.
func (q *Queue) Empty() bool { return q.size() == 0 }

func (q *Queue) priorityOf(v any) int {
	if p, ok := v.(Prioritized); ok {
		return p.Priority()
	}
	return 0
}

func (q *Queue) pushLocked(v any) {
	q.seq++
	switch q.order {
	case orderPriority:
		heap.Push(&q.heap, item{priority: q.priorityOf(v), seq: q.seq, value: v})
	default:
		q.items = append(q.items, item{seq: q.seq, value: v})
	}
}

func (q *Queue) popLocked() any {
	switch q.order {
	case orderPriority:
		return heap.Pop(&q.heap).(item).value
	case orderLIFO:
		n := len(q.items)
		it := q.items[n-1]
		q.items = q.items[:n-1]
		return it.value
	default:
		it := q.items[0]
		q.items = q.items[1:]
		return it.value
	}
}

// enqueue pushes v, marks it unfinished, and wakes one waiting getter if
// any, handing it the value directly to preserve FIFO wake order.
func (q *Queue) enqueue(v any) {
	q.unfinished++
	for len(q.getWaiters) > 0 {
		w := q.getWaiters[0]
		q.getWaiters = q.getWaiters[1:]
		if w.Done() {
			continue
		}
		w.SetResult(v)
		return
	}
	q.pushLocked(v)
}

// dequeue pops the next item (if any) and, if space opened up, admits one
// waiting putter's pending value into the queue.
func (q *Queue) dequeue() (any, bool) {
	if q.Empty() {
		return nil, false
	}
	v := q.popLocked()
	q.admitOnePutter()
	return v, true
}

func (q *Queue) admitOnePutter() {
	for len(q.putWaiters) > 0 {
		pw := q.putWaiters[0]
		q.putWaiters = q.putWaiters[1:]
		if pw.future.Done() {
			continue
		}
		q.pushLocked(pw.value)
		q.unfinished++
		pw.future.SetResult(struct{}{})
		return
	}
}

// PutNoWait enqueues v immediately or fails with ErrFull.
func (q *Queue) PutNoWait(v any) error {
	if q.Full() {
		return ErrFull
	}
	q.enqueue(v)
	return nil
}

// Put returns a Future that resolves once v has been enqueued. If the queue
// is full the Future waits (FIFO among other waiting putters); if timeout
// is non-zero and elapses first the Future resolves with ErrTimeout.
func (q *Queue) Put(v any, timeout time.Duration) *ioloop.Future[struct{}] {
	f := ioloop.NewFuture[struct{}]()
	if !q.Full() {
		q.enqueue(v)
		f.SetResult(struct{}{})
		return f
	}
	pw := &putWaiter{value: v, future: f}
	q.putWaiters = append(q.putWaiters, pw)
	if timeout > 0 {
		h := q.loop.CallLater(timeout, func() {
			if !f.Done() {
				f.SetException(ErrTimeout)
			}
		})
		f.AddDoneCallback(func(*ioloop.Future[struct{}]) { h.Cancel() })
	}
	return f
}

// Get returns a Future resolving with the next item in queue order. If the
// queue is empty, the Future waits until Put/PutNoWait or the timeout.
func (q *Queue) Get(timeout time.Duration) *ioloop.Future[any] {
	f := ioloop.NewFuture[any]()
	if v, ok := q.dequeue(); ok {
		f.SetResult(v)
		return f
	}
	q.getWaiters = append(q.getWaiters, f)
	if timeout > 0 {
		h := q.loop.CallLater(timeout, func() {
			if !f.Done() {
				f.SetException(ErrTimeout)
			}
		})
		f.AddDoneCallback(func(*ioloop.Future[any]) { h.Cancel() })
	}
	return f
}

// GetNoWait returns the next item or ErrEmpty.
func (q *Queue) GetNoWait() (any, error) {
	if v, ok := q.dequeue(); ok {
		return v, nil
	}
	return nil, ErrEmpty
}

// TaskDone records completion of one previously-dequeued item. Once as many
// TaskDone calls have occurred as enqueues, Join's Future resolves.
func (q *Queue) TaskDone() {
	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 {
		waiters := q.joinWaiters
		q.joinWaiters = nil
		for _, w := range waiters {
			w.SetResult(struct{}{})
		}
	}
}

// Join returns a Future that resolves once all enqueued items have been
// marked done via TaskDone.
func (q *Queue) Join() *ioloop.Future[struct{}] {
	f := ioloop.NewFuture[struct{}]()
	if q.unfinished == 0 {
		f.SetResult(struct{}{})
		return f
	}
	q.joinWaiters = append(q.joinWaiters, f)
	return f
}
