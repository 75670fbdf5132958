package inflight

import (
	"sync"

	"github.com/example/rental-checkout/internal/apperr"
)

// Action names a rider-triggered call that must not run twice at once.
type Action string

const (
	Estimate Action = "estimate"
	Book     Action = "book"
	Pay      Action = "pay"
)

// Guard is a per (session, action) busy flag. A second Acquire for the same
// pair fails with apperr.ErrInFlight until the first is released. Calls are
// never cancelled or queued.
type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewGuard() *Guard { return &Guard{running: make(map[string]struct{})} }

func (g *Guard) Acquire(session string, action Action) (release func(), err error) {
	key := session + "/" + string(action)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[key]; busy {
		return nil, apperr.ErrInFlight
	}
	g.running[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, key)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether action is running for session.
func (g *Guard) Busy(session string, action Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.running[session+"/"+string(action)]
	return busy
}
