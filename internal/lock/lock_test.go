package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquire_PerKeyFIFO(t *testing.T) {
	l := New(4)
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		l.Acquire("conv-1", func() error {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestAcquire_GlobalCeiling(t *testing.T) {
	l := New(2)
	var running int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		key := string(rune('a' + i))
		l.Acquire(key, func() error {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
	}
	wg.Wait()

	if maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent handlers, saw %d", maxSeen)
	}
}

func TestAcquire_HandlerErrorDoesNotBlockQueue(t *testing.T) {
	l := New(1)
	var wg sync.WaitGroup

	wg.Add(1)
	l.Acquire("k", func() error {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	done := make(chan struct{})
	l.Acquire("k", func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("next handler for the same key never ran after a panicking handler")
	}
}

func TestStats(t *testing.T) {
	l := New(1)
	block := make(chan struct{})
	started := make(chan struct{})

	l.Acquire("k1", func() error {
		close(started)
		<-block
		return nil
	})
	<-started

	done := make(chan struct{})
	l.Acquire("k1", func() error {
		close(done)
		return nil
	})

	stats := l.Stats()
	if stats.Active != 1 {
		t.Fatalf("expected 1 active, got %d", stats.Active)
	}
	if stats.QueuedByKey["k1"] != 1 {
		t.Fatalf("expected k1 queued 1, got %d", stats.QueuedByKey["k1"])
	}

	close(block)
	<-done
}
