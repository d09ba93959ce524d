package ioloop_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/ioloop"
)

func runLoop(t *testing.T, l *ioloop.Loop) func() {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run()
	}()
	return func() {
		l.Stop()
		<-done
	}
}

func TestLoop_CallbacksRunInOrder(t *testing.T) {
	l := ioloop.New(nil)
	stop := runLoop(t, l)
	defer stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		l.AddCallback(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestLoop_TimersFireInDeadlineOrder(t *testing.T) {
	l := ioloop.New(nil)
	stop := runLoop(t, l)
	defer stop()

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(3)

	now := time.Now()
	l.CallAt(now.Add(30*time.Millisecond), func() {
		mu.Lock()
		order = append(order, "c")
		mu.Unlock()
		wg.Done()
	})
	l.CallAt(now.Add(10*time.Millisecond), func() {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
		wg.Done()
	})
	l.CallAt(now.Add(20*time.Millisecond), func() {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
		wg.Done()
	})

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestLoop_TimerCancel(t *testing.T) {
	l := ioloop.New(nil)
	stop := runLoop(t, l)
	defer stop()

	fired := make(chan struct{}, 1)
	h := l.CallLater(5*time.Millisecond, func() { fired <- struct{}{} })
	h.Cancel()

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestFuture_ResultAndDoneCallback(t *testing.T) {
	f := ioloop.NewFuture[int]()
	var got int
	var wg sync.WaitGroup
	wg.Add(1)
	f.AddDoneCallback(func(fut *ioloop.Future[int]) {
		v, err := fut.Result()
		require.NoError(t, err)
		got = v
		wg.Done()
	})

	f.SetResult(42)
	wg.Wait()
	assert.Equal(t, 42, got)
	assert.True(t, f.Done())
}

func TestFuture_SetResultAfterDoneIsNoop(t *testing.T) {
	f := ioloop.NewFuture[int]()
	f.SetResult(1)
	f.SetResult(2)
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_CancelPending(t *testing.T) {
	f := ioloop.NewFuture[int]()
	assert.True(t, f.Cancel())
	assert.True(t, f.Cancelled())
	_, err := f.Result()
	assert.ErrorIs(t, err, ioloop.ErrCancelled)
}

func TestFuture_CancelAfterDoneIsNoop(t *testing.T) {
	f := ioloop.NewFuture[int]()
	f.SetResult(7)
	assert.False(t, f.Cancel())
	assert.False(t, f.Cancelled())
}

func TestChain_CopiesResult(t *testing.T) {
	src := ioloop.NewFuture[string]()
	dst := ioloop.NewFuture[string]()
	ioloop.Chain(src, dst)

	src.SetResult("hi")
	v, err := dst.Result()
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestRunInExecutor_ResolvesOnLoop(t *testing.T) {
	l := ioloop.New(nil)
	stop := runLoop(t, l)
	defer stop()

	f := ioloop.RunInExecutor(l, ioloop.GoExecutor{}, func() (int, error) {
		return 99, nil
	})

	deadline := time.After(time.Second)
	for !f.Done() {
		select {
		case <-deadline:
			t.Fatal("executor future never resolved")
		case <-time.After(time.Millisecond):
		}
	}
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}
