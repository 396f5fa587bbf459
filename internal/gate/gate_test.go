package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBurstNeverExceedsCapacity(t *testing.T) {
	const n, k = 3, 7
	g := New(n)

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < n+k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), func(context.Context) error {
				cur := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(n))
	assert.Equal(t, Stats{Capacity: n}, g.Stats())
}

func TestWaitersAdmittedInArrivalOrder(t *testing.T) {
	g := New(2)
	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, g.Acquire(ctx))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, g.Acquire(ctx))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.Release()
		}(i)
		// Make arrival order deterministic: the waiter is counted just
		// before it queues, so give it a moment to reach the queue.
		waitFor(t, func() bool { return g.Stats().Waiting == i+1 })
		time.Sleep(5 * time.Millisecond)
	}

	g.Release()
	wg.Wait()
	g.Release()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, g.Stats().Active)
}

func TestAcquireHonorsContext(t *testing.T) {
	g := New(1)
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, g.Stats().Waiting)

	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
}

func TestDoReleasesOnError(t *testing.T) {
	g := New(1)
	boom := errors.New("boom")
	err := g.Do(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, g.Stats().Active)
}

func TestLateArrivalDoesNotOvertakeWaiter(t *testing.T) {
	g := New(1)
	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx))

	got := make(chan string, 2)
	go func() {
		assert.NoError(t, g.Acquire(ctx))
		got <- "first"
		g.Release()
	}()
	waitFor(t, func() bool { return g.Stats().Waiting == 1 })
	time.Sleep(5 * time.Millisecond)

	g.Release()
	require.NoError(t, g.Acquire(ctx))
	got <- "late"
	g.Release()

	assert.Equal(t, "first", <-got)
	assert.Equal(t, "late", <-got)
	assert.Equal(t, Stats{Capacity: 1}, g.Stats())
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrReleased, func() { New(1).Release() })
}
