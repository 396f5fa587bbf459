// Package session keeps the recent conversation window of each chat session
// in memory.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is the number of exchanges kept per session.
const DefaultWindow = 6

// Exchange is one user message and the reply it received.
type Exchange struct {
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// Session is a snapshot of one conversation.
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Exchanges []Exchange `json:"exchanges"`
}

// Store holds sessions keyed by id. Different sessions may be used
// concurrently; concurrent appends to one session are applied whole but in
// no guaranteed order.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	window   int
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithWindow sets how many exchanges are kept per session.
func WithWindow(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTTL evicts sessions idle for longer than ttl. Zero disables eviction.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store. With a TTL set, a janitor goroutine runs until
// Close is called.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		window:   DefaultWindow,
		now:      time.Now,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")

	if s.ttl > 0 {
		go s.janitor(janitorInterval(s.ttl))
	} else {
		close(s.done)
	}
	return s
}

// NewID returns a fresh random session id.
func NewID() string { return uuid.NewString() }

// Get returns the session, creating it on first access.
func (s *Store) Get(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id).snapshot()
}

// Append records an exchange, evicting the oldest once the window is full.
func (s *Store) Append(id, input, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(id)
	now := s.now()
	sess.Exchanges = append(sess.Exchanges, Exchange{Input: input, Output: output, At: now})
	if over := len(sess.Exchanges) - s.window; over > 0 {
		// Copy down so the backing array does not grow without bound.
		sess.Exchanges = append(sess.Exchanges[:0], sess.Exchanges[over:]...)
	}
	sess.UpdatedAt = now
}

// History returns the exchanges of a session, oldest first. Unknown
// sessions have an empty history.
func (s *Store) History(id string) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return []Exchange{}
	}
	return sess.snapshot().Exchanges
}

// Clear forgets a session. Clearing an unknown session is not an error.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the janitor. It is safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Evict removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Evict() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) getLocked(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		now := s.now()
		sess = &Session{ID: id, CreatedAt: now, UpdatedAt: now}
		s.sessions[id] = sess
	}
	return sess
}

func (s *Store) janitor(every time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.logger.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

func janitorInterval(ttl time.Duration) time.Duration {
	every := ttl / 2
	if every < time.Second {
		every = time.Second
	}
	return every
}

func (sess *Session) snapshot() Session {
	cp := *sess
	cp.Exchanges = make([]Exchange, len(sess.Exchanges))
	copy(cp.Exchanges, sess.Exchanges)
	return cp
}
