package transactions

import (
	"sync"
	"sync/atomic"
)

// Guard keeps the last-known-good result per view key and discards results
// of requests that were superseded while in flight.
type Guard[T any] struct {
	seq atomic.Uint64

	mu     sync.Mutex
	latest map[string]uint64
	good   map[string]T
}

// NewGuard creates an empty guard.
func NewGuard[T any]() *Guard[T] {
	return &Guard[T]{
		latest: make(map[string]uint64),
		good:   make(map[string]T),
	}
}

// Begin issues a request token for key. Tokens increase monotonically.
func (g *Guard[T]) Begin(key string) uint64 {
	token := g.seq.Add(1)

	g.mu.Lock()
	g.latest[key] = token
	g.mu.Unlock()

	return token
}

// Commit stores v as the last-known-good value for key if token is still the
// latest one issued for key. It reports whether v was stored.
func (g *Guard[T]) Commit(key string, token uint64, v T) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.latest[key] != token {
		return false
	}
	g.good[key] = v
	return true
}

// LastGood returns the last committed value for key.
func (g *Guard[T]) LastGood(key string) (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.good[key]
	return v, ok
}
