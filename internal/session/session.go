// Package session keeps per-client conversation memory for the HTTP front-end.
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/memory"
)

// Session is one client conversation.
type Session struct {
	ID       string
	Memory   *memory.Memory
	lastSeen time.Time
}

// Registry maps session IDs to sessions. Sessions idle for longer than the TTL are evicted
// by EvictExpired (or the Run janitor); when the registry is full the least recently used
// session is evicted to make room.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*list.Element
	lru         *list.List // front = most recently used
	ttl         time.Duration
	maxSessions int
	maxTurns    int
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry. ttl <= 0 disables expiry and maxSessions <= 0 disables the cap.
// Each new session gets a memory capped at maxTurns.
func NewRegistry(ttl time.Duration, maxSessions, maxTurns int, opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*list.Element),
		lru:         list.New(),
		ttl:         ttl,
		maxSessions: maxSessions,
		maxTurns:    maxTurns,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the session for id, creating it when missing or expired.
// An empty id creates a session with a new random ID.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()

	if id == "" {
		id = uuid.NewString()
	} else if el, ok := r.sessions[id]; ok {
		s := el.Value.(*Session)
		if !r.expired(s, now) {
			s.lastSeen = now
			r.lru.MoveToFront(el)
			return s
		}
		r.remove(el)
	}

	for r.maxSessions > 0 && r.lru.Len() >= r.maxSessions {
		oldest := r.lru.Back()
		r.logger.Debug("evicting least recently used session", zap.String("session_id", oldest.Value.(*Session).ID))
		r.remove(oldest)
	}
	s := &Session{ID: id, Memory: memory.New(r.maxTurns), lastSeen: now}
	r.sessions[id] = r.lru.PushFront(s)
	return s
}

// Get returns a live session without creating one.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s := el.Value.(*Session)
	if r.expired(s, r.now()) {
		r.remove(el)
		return nil, false
	}
	return s, true
}

// Delete ends a session and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.sessions[id]
	if !ok {
		return false
	}
	r.remove(el)
	return true
}

// Len returns the number of tracked sessions, including expired ones not yet evicted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// EvictExpired removes idle sessions and returns how many were removed.
func (r *Registry) EvictExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for el := r.lru.Back(); el != nil; {
		prev := el.Prev()
		if !r.expired(el.Value.(*Session), now) {
			break
		}
		r.remove(el)
		n++
		el = prev
	}
	return n
}

// Run evicts expired sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictExpired(); n > 0 {
				r.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return r.ttl > 0 && now.Sub(s.lastSeen) > r.ttl
}

func (r *Registry) remove(el *list.Element) {
	s := r.lru.Remove(el).(*Session)
	delete(r.sessions, s.ID)
}
