package lifecycle

import (
	"sync"
	"time"
)

// DefaultGuardStaleAfter is how long an in-progress window build may hold the
// guard before a new attempt is allowed to take over.
const DefaultGuardStaleAfter = 2 * time.Second

// WindowCreationGuard serializes window builds. A refused attempt is dropped,
// not queued.
type WindowCreationGuard struct {
	mu         sync.Mutex
	inProgress bool
	startedAt  time.Time

	staleAfter time.Duration
	now        func() time.Time
}

// NewWindowCreationGuard returns an idle guard. Zero staleAfter selects the
// default.
func NewWindowCreationGuard(staleAfter time.Duration) *WindowCreationGuard {
	if staleAfter <= 0 {
		staleAfter = DefaultGuardStaleAfter
	}
	return &WindowCreationGuard{
		staleAfter: staleAfter,
		now:        time.Now,
		startedAt:  time.Now(),
	}
}

// TryAcquire marks a build as in progress. It fails when another build started
// less than staleAfter ago. The returned release func is idempotent and
// must be deferred by the caller.
func (g *WindowCreationGuard) TryAcquire() (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.inProgress && now.Sub(g.startedAt) < g.staleAfter {
		return nil, false
	}
	g.inProgress = true
	g.startedAt = now

	var once sync.Once
	return func() { once.Do(g.release) }, true
}

func (g *WindowCreationGuard) release() {
	g.mu.Lock()
	g.inProgress = false
	g.startedAt = g.now()
	g.mu.Unlock()
}

// InProgress reports whether a build currently holds the guard.
func (g *WindowCreationGuard) InProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inProgress
}

// WithClock replaces the time source. Intended for tests.
func (g *WindowCreationGuard) WithClock(now func() time.Time) *WindowCreationGuard {
	g.mu.Lock()
	g.now = now
	g.mu.Unlock()
	return g
}
