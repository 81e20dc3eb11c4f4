// Package pool provides the bounded worker pool the scheduler spawns
// execute calls on. It is a narrow collaborator contract — New/Go/Block
// — separate from the database itself, so tests can swap in a
// synchronous pool that runs everything inline.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs scheduler work under a bounded concurrency limit.
type Pool interface {
	// Go schedules fn to run and returns immediately, without waiting to
	// acquire a slot — the caller may itself be occupying one.
	Go(fn func())

	// Block runs fn as a "blocking externally" section: a goroutine that
	// calls Block gives its slot back to the pool for the duration of fn,
	// so a worker parked waiting on a dependency never starves the pool
	// of capacity to build that dependency. fn must not call Go or Block
	// on the same Pool from inside another Block call on a different
	// goroutine while holding resources only this goroutine can release;
	// ordinary dependency waits are exactly what this exists for.
	Block(fn func())

	// Wait blocks until every fn passed to Go has returned.
	Wait()
}

// Semaphore is the default Pool, limiting concurrent execute calls to a
// fixed capacity using golang.org/x/sync/semaphore. A goroutine inside
// Block releases its weight before running fn and re-acquires it after,
// so blocked builders don't count against the running total.
type Semaphore struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New returns a Semaphore-backed Pool admitting at most capacity
// concurrent Go callbacks at a time. capacity must be at least 1.
func New(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{
		sem: semaphore.NewWeighted(int64(capacity)),
	}
}

// Go never blocks the caller on acquiring a slot: the caller may itself be
// a goroutine already holding one (dispatching a dependency from inside a
// running rule), and synchronously acquiring a second slot there would
// deadlock once outstanding work exceeds capacity. Acquisition happens
// inside the spawned goroutine instead, where it's safe to wait.
func (p *Semaphore) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

func (p *Semaphore) Block(fn func()) {
	p.sem.Release(1)
	defer func() {
		_ = p.sem.Acquire(context.Background(), 1)
	}()
	fn()
}

func (p *Semaphore) Wait() {
	p.wg.Wait()
}
