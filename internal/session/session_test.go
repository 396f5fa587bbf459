package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCreatesOnFirstAccess(t *testing.T) {
	s := NewStore()
	defer s.Close()

	sess := s.Get("abc")
	assert.Equal(t, "abc", sess.ID)
	assert.Empty(t, sess.Exchanges)
	assert.Equal(t, 1, s.Len())
}

func TestWindowKeepsLastSix(t *testing.T) {
	s := NewStore()
	defer s.Close()

	for i := 1; i <= 7; i++ {
		s.Append("s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	h := s.History("s1")
	require.Len(t, h, 6)
	assert.Equal(t, "q2", h[0].Input)
	assert.Equal(t, "a7", h[5].Output)
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewStore(WithWindow(2))
	defer s.Close()

	s.Append("s1", "q1", "a1")
	h := s.History("s1")
	h[0].Input = "mutated"
	assert.Equal(t, "q1", s.History("s1")[0].Input)
}

func TestClearIsIdempotent(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Append("s1", "q", "a")
	s.Clear("s1")
	s.Clear("s1")
	s.Clear("never-seen")

	assert.Empty(t, s.History("s1"))
	assert.Equal(t, 0, s.Len())
}

func TestConcurrentSessions(t *testing.T) {
	s := NewStore()
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%4)
			for j := 0; j < 10; j++ {
				s.Append(id, "q", "a")
				_ = s.History(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, s.Len())
	for i := 0; i < 4; i++ {
		assert.Len(t, s.History(fmt.Sprintf("s%d", i)), DefaultWindow)
	}
}

func TestEvictIdleSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := NewStore(WithTTL(time.Hour), withClock(clock))
	defer s.Close()

	s.Append("old", "q", "a")
	mu.Lock()
	now = now.Add(50 * time.Minute)
	mu.Unlock()
	s.Append("fresh", "q", "a")
	mu.Lock()
	now = now.Add(20 * time.Minute)
	mu.Unlock()

	assert.Equal(t, 1, s.Evict())
	assert.Empty(t, s.History("old"))
	assert.Len(t, s.History("fresh"), 1)
}

func TestCloseWithoutTTL(t *testing.T) {
	s := NewStore()
	s.Close()
	s.Close()
}
