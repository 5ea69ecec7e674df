//go:build nogui || headless || linux

package tray

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// App is the headless tray: it keeps state and logs instead of drawing.
type App struct {
	ctrl    Controller
	logger  *zap.SugaredLogger
	version string
	traffic *trafficMonitor

	mu          sync.Mutex
	initialized bool
	created     bool
	tooltip     string
}

// New creates the tray app (stub version).
func New(ctrl Controller, traffic TrafficSource, version string, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{ctrl: ctrl, logger: logger.With("type", "tray"), version: version}
	a.traffic = newTrafficMonitor(traffic, time.Second, a.logger, func(r Rate) { a.setTooltip(&r) })
	return a
}

// Init prepares the tray before the icon exists.
func (a *App) Init() error {
	if a.ctrl == nil {
		return errors.New("tray controller is required")
	}
	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()
	return nil
}

// Run blocks until ctx is done (stub version - no tray is drawn).
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Tray functionality disabled (nogui/headless build)")
	<-ctx.Done()
	return ctx.Err()
}

// Create marks the tray as created.
func (a *App) Create() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return errors.New("tray is not initialized")
	}
	a.created = true
	return nil
}

// Update recomputes the tooltip from the controller.
func (a *App) Update() {
	var rate *Rate
	if a.traffic.running() {
		r := a.traffic.current()
		rate = &r
	}
	a.setTooltip(rate)
}

func (a *App) setTooltip(rate *Rate) {
	a.mu.Lock()
	created := a.created
	a.mu.Unlock()
	if !created {
		return
	}
	text := tooltip(a.version, a.ctrl.Mode(), a.ctrl.SystemProxyEnabled(), a.ctrl.TunEnabled(), rate)
	a.mu.Lock()
	a.tooltip = text
	a.mu.Unlock()
}

// Tooltip returns the last computed tooltip.
func (a *App) Tooltip() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tooltip
}

// SubscribeTraffic starts the traffic poller.
func (a *App) SubscribeTraffic() {
	a.traffic.start()
}

// UnsubscribeTraffic stops the traffic poller.
func (a *App) UnsubscribeTraffic() {
	a.traffic.stop()
}

// Quit is a no-op without a tray.
func (a *App) Quit() {}
