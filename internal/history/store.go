package history

import (
	"context"
	"sync"
	"time"
)

type session struct {
	window         *Window
	lastActivityAt time.Time
}

// Store keeps one bounded Window per conversation session. Sessions idle for
// longer than the configured timeout are dropped by the janitor.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*session
	capacity    int
	idleTimeout time.Duration
	now         func() time.Time
	onChange    func(active int)
}

type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSizeHook registers a callback invoked with the session count after it changes.
func WithSizeHook(hook func(active int)) StoreOption {
	return func(s *Store) {
		s.onChange = hook
	}
}

func NewStore(capacity int, idleTimeout time.Duration, opts ...StoreOption) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	s := &Store{
		sessions:    make(map[string]*session),
		capacity:    capacity,
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render returns the transcript for sessionID. Unknown sessions render empty.
func (s *Store) Render(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ""
	}
	sess.lastActivityAt = s.now()
	return sess.window.Render()
}

func (s *Store) Append(sessionID string, turn Turn) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{window: NewWindow(s.capacity)}
		s.sessions[sessionID] = sess
	}
	sess.window.Append(turn)
	sess.lastActivityAt = s.now()
	count := len(s.sessions)
	hook := s.onChange
	s.mu.Unlock()

	if !ok && hook != nil {
		hook(count)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ExpireIdle()
			}
		}
	}()
}

// ExpireIdle drops sessions without activity inside the idle timeout and
// returns how many were removed.
func (s *Store) ExpireIdle() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivityAt) < s.idleTimeout {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	count := len(s.sessions)
	hook := s.onChange
	s.mu.Unlock()

	if removed > 0 && hook != nil {
		hook(count)
	}
	return removed
}
