// Package lightweight controls the reduced operating mode in which the window
// is torn down while backend services keep running.
package lightweight

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hooks are invoked on mode changes. Both run outside the controller lock.
type Hooks struct {
	// OnEnter tears down the window.
	OnEnter func()
	// OnExit runs once the mode has been left.
	OnExit func()
}

// Controller tracks whether the app is in lightweight mode.
type Controller struct {
	logger *zap.Logger

	mu        sync.Mutex
	active    bool
	exiting   bool
	hooks     Hooks
	autoTimer *time.Timer

	exitDelay time.Duration
}

// NewController creates an inactive controller. exitDelay models the teardown
// time of leaving the mode; RequestExit completes asynchronously after it.
func NewController(logger *zap.Logger, exitDelay time.Duration) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{logger: logger, exitDelay: exitDelay}
}

// SetHooks installs mode-change callbacks.
func (c *Controller) SetHooks(h Hooks) {
	c.mu.Lock()
	c.hooks = h
	c.mu.Unlock()
}

// IsActive reports whether lightweight mode is on.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SetActive flips the flag without running hooks. Used for silent start
// where no window exists to tear down.
func (c *Controller) SetActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
	c.logger.Debug("Lightweight mode flag set", zap.Bool("active", active))
}

// Enter switches into lightweight mode and tears down the window.
func (c *Controller) Enter() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	onEnter := c.hooks.OnEnter
	c.mu.Unlock()

	c.logger.Info("Entering lightweight mode")
	if onEnter != nil {
		onEnter()
	}
}

// RequestExit asks to leave lightweight mode. The flag clears after the
// configured exit delay; callers poll IsActive.
func (c *Controller) RequestExit() {
	c.mu.Lock()
	if !c.active || c.exiting {
		c.mu.Unlock()
		return
	}
	c.exiting = true
	delay := c.exitDelay
	c.mu.Unlock()

	c.logger.Info("Exiting lightweight mode")
	if delay <= 0 {
		c.finishExit()
		return
	}
	time.AfterFunc(delay, c.finishExit)
}

func (c *Controller) finishExit() {
	c.mu.Lock()
	c.active = false
	c.exiting = false
	onExit := c.hooks.OnExit
	c.mu.Unlock()

	if onExit != nil {
		onExit()
	}
}

// RunOnceAutoLightweight leaves lightweight mode once a window has been
// created, since showing a window implies the user wants the full UI.
func (c *Controller) RunOnceAutoLightweight() {
	if c.IsActive() {
		c.RequestExit()
	}
}

// ScheduleAutoEnter enters lightweight mode after idle unless windowVisible
// reports a visible window at that time. A previous schedule is replaced.
func (c *Controller) ScheduleAutoEnter(after time.Duration, windowVisible func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoTimer != nil {
		c.autoTimer.Stop()
	}
	c.logger.Info("Auto lightweight scheduled", zap.Duration("after", after))
	c.autoTimer = time.AfterFunc(after, func() {
		if windowVisible != nil && windowVisible() {
			c.logger.Debug("Window visible, skipping auto lightweight")
			return
		}
		c.Enter()
	})
}

// CancelAutoEnter stops a pending auto entry.
func (c *Controller) CancelAutoEnter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autoTimer != nil {
		c.autoTimer.Stop()
		c.autoTimer = nil
	}
}
