package lifecycle

import (
	"sync"
	"time"
)

// Shared bundles the process-wide lifecycle state. Components receive the
// *Shared at construction rather than reaching for globals.
type Shared struct {
	Readiness *ReadinessState
	Guard     *WindowCreationGuard
	Dedup     *Deduplicator

	startTime time.Time
}

// Options tunes the timings used by a Shared. Zero values select defaults.
type Options struct {
	GuardStaleAfter time.Duration
	DedupWindow     time.Duration
}

// NewShared builds a fresh state bundle with its start time set to now.
func NewShared(opts Options) *Shared {
	return &Shared{
		Readiness: NewReadinessState(),
		Guard:     NewWindowCreationGuard(opts.GuardStaleAfter),
		Dedup:     NewDeduplicator(opts.DedupWindow),
		startTime: time.Now(),
	}
}

var (
	globalOnce   sync.Once
	globalShared *Shared
)

// Global returns the process-wide state, creating it on first use.
func Global() *Shared {
	globalOnce.Do(func() {
		globalShared = NewShared(Options{})
	})
	return globalShared
}

// StartTime is when this state bundle was created.
func (s *Shared) StartTime() time.Time {
	return s.startTime
}

// Uptime returns the elapsed time since StartTime.
func (s *Shared) Uptime() time.Duration {
	return time.Since(s.startTime)
}
