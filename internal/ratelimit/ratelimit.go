// Package ratelimit implements a fixed-window request counter keyed by
// arbitrary string identifiers (client IP, user ID). The window is a hard
// reset, not a true sliding window: the counter fully reopens once the
// interval from the first hit elapses, regardless of how recent the last
// burst was.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Entry tracks the request count for a single identifier within one window.
type Entry struct {
	Count     int
	ResetTime time.Time
}

// Store is the key-value abstraction behind the limiter. The default is the
// in-memory MemoryStore; a networked store can be swapped in without
// changing the limiter contract. Implementations must be safe for
// concurrent use; the limiter additionally serializes check-then-write
// sequences so two concurrent requests for the same identifier can never
// both pass when only one slot remains.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry)
	Delete(key string)
	Range(fn func(key string, e Entry) bool)
}

// MemoryStore is a mutex-guarded map implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *MemoryStore) Set(key string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) Range(fn func(key string, e Entry) bool) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	entries := make([]Entry, 0, len(s.entries))
	for k, e := range s.entries {
		keys = append(keys, k)
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for i := range keys {
		if !fn(keys[i], entries[i]) {
			return
		}
	}
}

// Options configures one rate-limit window.
type Options struct {
	Interval    time.Duration
	MaxRequests int
}

// Limiter enforces fixed-window limits over an injected Store.
type Limiter struct {
	mu    sync.Mutex // serializes check-then-write per Allow call
	store Store
	login Options
	api   Options
	now   func() time.Time // injectable clock for testing
	done  chan struct{}
}

// New creates a Limiter with the given login and general API presets.
func New(store Store, login, api Options) *Limiter {
	return &Limiter{
		store: store,
		login: login,
		api:   api,
		now:   time.Now,
		done:  make(chan struct{}),
	}
}

// Allow checks whether a request identified by id is permitted under opts.
// A missing or expired entry is replaced with a fresh one counting this
// request; an exhausted window denies without mutating state.
func (l *Limiter) Allow(id string, opts Options) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.store.Get(id)

	if !ok || now.After(e.ResetTime) {
		l.store.Set(id, Entry{Count: 1, ResetTime: now.Add(opts.Interval)})
		return true
	}

	if e.Count >= opts.MaxRequests {
		return false
	}

	e.Count++
	l.store.Set(id, e)
	return true
}

// AllowLogin applies the login preset (default 5 requests per minute).
// Checked per source IP before any database lookup or password comparison.
func (l *Limiter) AllowLogin(id string) bool {
	return l.Allow(id, l.login)
}

// AllowAPI applies the general API preset (default 100 requests per minute).
func (l *Limiter) AllowAPI(id string) bool {
	return l.Allow(id, l.api)
}

// Cleanup removes expired entries and returns how many were swept. Lookup
// correctness does not depend on it; it only bounds memory.
func (l *Limiter) Cleanup() int {
	now := l.now()
	var expired []string
	l.store.Range(func(key string, e Entry) bool {
		if now.After(e.ResetTime) {
			expired = append(expired, key)
		}
		return true
	})
	for _, key := range expired {
		l.store.Delete(key)
	}
	return len(expired)
}

// Start runs a periodic cleanup sweep until the context is cancelled or
// Stop is called. It blocks; run it in its own goroutine.
func (l *Limiter) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				slog.Debug("swept expired rate-limit entries", "count", n)
			}
		case <-ctx.Done():
			return
		case <-l.done:
			return
		}
	}
}

// Stop terminates a running Start loop.
func (l *Limiter) Stop() {
	close(l.done)
}

// ClientIP resolves the client address for rate-limit keying. It prefers the
// first X-Forwarded-For entry, then X-Real-IP, falling back to "unknown".
// It never fails.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return "unknown"
}
