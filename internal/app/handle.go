package app

import (
	"sync"
	"sync/atomic"
)

// Handle stands in for the running application. It becomes available once
// the main loop has been entered and lets background tasks ask the process to
// quit or to relaunch itself.
type Handle struct {
	attached         atomic.Bool
	startupCompleted atomic.Bool
	relaunch         atomic.Bool

	mu   sync.Mutex
	quit func()
}

// NewHandle returns a handle that is not yet attached.
func NewHandle() *Handle {
	return &Handle{}
}

// Attach makes the handle available. quit must make the main loop return.
func (h *Handle) Attach(quit func()) {
	h.mu.Lock()
	h.quit = quit
	h.mu.Unlock()
	h.attached.Store(true)
}

// Ready reports whether the handle has been attached.
func (h *Handle) Ready() bool {
	return h.attached.Load()
}

// MarkStartupCompleted records that backend startup has finished.
func (h *Handle) MarkStartupCompleted() {
	h.startupCompleted.Store(true)
}

// StartupCompleted reports whether MarkStartupCompleted has been called.
func (h *Handle) StartupCompleted() bool {
	return h.startupCompleted.Load()
}

// Quit asks the main loop to return. It is a no-op before Attach.
func (h *Handle) Quit() {
	h.mu.Lock()
	quit := h.quit
	h.mu.Unlock()
	if quit != nil {
		quit()
	}
}

// Restart requests a relaunch after the main loop returns. It reports false
// when the handle is not attached.
func (h *Handle) Restart() bool {
	if !h.Ready() {
		return false
	}
	h.relaunch.Store(true)
	h.Quit()
	return true
}

// RelaunchRequested reports whether Restart has been called.
func (h *Handle) RelaunchRequested() bool {
	return h.relaunch.Load()
}
