package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSemaphoreLimitsConcurrency(t *testing.T) {
	p := New(2)
	var running, maxRunning int32
	done := make(chan struct{}, 10)

	for i := 0; i < 10; i++ {
		p.Go(func() {
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxRunning)
				if n <= cur || atomic.CompareAndSwapInt32(&maxRunning, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			done <- struct{}{}
		})
	}
	p.Wait()
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
}

func TestBlockReleasesSlotForOthers(t *testing.T) {
	p := New(1)
	entered := make(chan struct{})
	release := make(chan struct{})
	secondRan := make(chan struct{})

	p.Go(func() {
		p.Block(func() {
			close(entered)
			<-release
		})
	})

	<-entered
	p.Go(func() {
		close(secondRan)
	})

	select {
	case <-secondRan:
	case <-time.After(time.Second):
		t.Fatalf("second task never ran while first was blocked externally")
	}
	close(release)
	p.Wait()
}

// TestGoFromInsideGoNeverDeadlocks exercises the scheduler's actual usage
// pattern: a goroutine dispatched via Go itself calls Go again (nested
// dependency dispatch) while the pool is already at capacity. Go must
// never synchronously acquire a slot in the calling goroutine, or this
// would deadlock forever instead of completing.
func TestGoFromInsideGoNeverDeadlocks(t *testing.T) {
	p := New(1)
	inner := make(chan struct{})

	p.Go(func() {
		p.Go(func() {
			close(inner)
		})
	})

	select {
	case <-inner:
	case <-time.After(time.Second):
		t.Fatalf("nested Go() call deadlocked against a saturated pool")
	}
	p.Wait()
}

func TestInlineRunsSynchronously(t *testing.T) {
	var p Inline
	order := []int{}
	p.Go(func() { order = append(order, 1) })
	p.Block(func() { order = append(order, 2) })
	p.Wait()
	assert.Equal(t, []int{1, 2}, order)
}
