// Package gate provides a counting admission gate that grants slots in
// arrival order.
package gate

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of concurrent holders when none is configured.
const DefaultCapacity = 5

// ErrReleased is returned by Release when no slot is held.
var ErrReleased = errors.New("gate: release without matching acquire")

// Gate bounds how many callers hold a slot at once. Waiters are admitted
// first in, first out: a late arrival never overtakes a queued caller, even
// when a slot is free at the moment it arrives.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	active   atomic.Int64
	waiting  atomic.Int64
}

// New creates a gate with the given capacity. Non-positive values use
// DefaultCapacity.
func New(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}
}

// Acquire blocks until a slot is granted or ctx is done. On error no slot is
// held.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.sem.TryAcquire(1) {
		g.active.Add(1)
		return nil
	}
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return err
	}
	g.active.Add(1)
	return nil
}

// Release frees a slot, handing it to the oldest waiter if there is one.
func (g *Gate) Release() {
	for {
		n := g.active.Load()
		if n == 0 {
			panic(ErrReleased)
		}
		if g.active.CompareAndSwap(n, n-1) {
			break
		}
	}
	g.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released however fn returns.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// Stats is a point-in-time view of the gate.
type Stats struct {
	Capacity int `json:"capacity"`
	Active   int `json:"active"`
	Waiting  int `json:"waiting"`
}

// Stats reports current occupancy. Active and Waiting are read separately and
// may be momentarily out of step while a waiter is being admitted.
func (g *Gate) Stats() Stats {
	return Stats{
		Capacity: g.capacity,
		Active:   int(g.active.Load()),
		Waiting:  int(g.waiting.Load()),
	}
}
