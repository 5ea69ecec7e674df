package lifecycle

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long an activation key suppresses its repeats.
const DefaultDedupWindow = 5 * time.Second

// Deduplicator remembers only the most recent key. An A, B, A sequence
// delivers the second A because B overwrote the slot.
type Deduplicator struct {
	mu     sync.Mutex
	key    string
	seenAt time.Time
	seen   bool

	window time.Duration
	now    func() time.Time
}

// NewDeduplicator returns an empty deduplicator. Zero window selects the default.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduplicator{window: window, now: time.Now}
}

// Admit reports whether key should be processed. An admitted key overwrites
// the slot; a suppressed one leaves it untouched.
func (d *Deduplicator) Admit(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.seen && d.key == key && now.Sub(d.seenAt) < d.window {
		return false
	}
	d.key = key
	d.seenAt = now
	d.seen = true
	return true
}

// WithClock replaces the time source. Intended for tests.
func (d *Deduplicator) WithClock(now func() time.Time) *Deduplicator {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
	return d
}
