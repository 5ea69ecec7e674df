//go:build !nogui && !headless && !linux

package tray

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"fyne.io/systray"
	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/lifecycle"
)

// App is the system tray icon and menu.
type App struct {
	ctrl    Controller
	logger  *zap.SugaredLogger
	version string
	traffic *trafficMonitor

	mu          sync.Mutex
	initialized bool
	ready       bool

	showItem     *systray.MenuItem
	modeItems    map[string]*systray.MenuItem
	sysproxyItem *systray.MenuItem
	tunItem      *systray.MenuItem
}

// New creates the tray app.
func New(ctrl Controller, traffic TrafficSource, version string, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{
		ctrl:      ctrl,
		logger:    logger.With("type", "tray"),
		version:   version,
		modeItems: make(map[string]*systray.MenuItem),
	}
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

// Run starts the tray loop. It blocks and must run on the main goroutine.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting system tray")
	go func() {
		<-ctx.Done()
		a.logger.Info("Context cancelled, quitting systray")
		systray.Quit()
	}()
	systray.Run(a.onReady, a.onExit)
	return ctx.Err()
}

// Create waits for the icon to appear.
func (a *App) Create() error {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if !initialized {
		return errors.New("tray is not initialized")
	}
	if !lifecycle.WaitUntil(a.isReady, 50*time.Millisecond, 40) {
		return errors.New("tray icon did not appear")
	}
	return nil
}

func (a *App) isReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *App) onReady() {
	systray.SetTitle("")
	if runtime.GOOS == "darwin" {
		systray.SetTemplateIcon(icon(), icon())
	} else {
		systray.SetIcon(icon())
	}

	a.showItem = systray.AddMenuItem("Dashboard", "Open the dashboard")
	systray.AddSeparator()
	for _, m := range Modes {
		a.modeItems[m] = systray.AddMenuItemCheckbox(modeTitle(m)+" Mode", "Switch engine mode", false)
	}
	systray.AddSeparator()
	a.sysproxyItem = systray.AddMenuItemCheckbox("System Proxy", "Toggle system proxy", false)
	a.tunItem = systray.AddMenuItemCheckbox("TUN Mode", "Toggle TUN mode", false)
	systray.AddSeparator()
	lightItem := systray.AddMenuItem("Lightweight Mode", "Close the window and keep the engine running")
	more := systray.AddMenuItem("More", "")
	restartCore := more.AddSubMenuItem("Restart Core", "Restart the proxy engine")
	restartApp := more.AddSubMenuItem("Restart App", "Restart OutClash")
	diagnostics := more.AddSubMenuItem("Copy Diagnostics", "Copy system information to the clipboard")
	openDir := more.AddSubMenuItem("Open Config Dir", "Open the configuration directory")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit OutClash")

	for mode, item := range a.modeItems {
		go a.forward(item, func(m string) func() { return func() { a.ctrl.ChangeMode(m) } }(mode))
	}
	go a.forward(a.showItem, a.ctrl.ShowWindow)
	go a.forward(a.sysproxyItem, a.ctrl.ToggleSystemProxy)
	go a.forward(a.tunItem, a.ctrl.ToggleTunMode)
	go a.forward(lightItem, a.ctrl.EnterLightweight)
	go a.forward(restartCore, a.ctrl.RestartCore)
	go a.forward(restartApp, a.ctrl.RestartApp)
	go a.forward(diagnostics, a.ctrl.CopyDiagnostics)
	go a.forward(openDir, a.ctrl.OpenConfigDir)
	go func() {
		<-quit.ClickedCh
		a.logger.Info("Quit selected from tray menu")
		a.ctrl.Quit()
	}()

	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()
	a.logger.Info("System tray ready")
	a.Update()
}

func (a *App) forward(item *systray.MenuItem, fn func()) {
	for range item.ClickedCh {
		fn()
		a.Update()
	}
}

func (a *App) onExit() {
	a.UnsubscribeTraffic()
	a.logger.Info("System tray exited")
}

// Update refreshes check marks and the tooltip from the controller.
func (a *App) Update() {
	if !a.isReady() {
		return
	}
	mode := a.ctrl.Mode()
	for m, item := range a.modeItems {
		setChecked(item, m == mode)
	}
	setChecked(a.sysproxyItem, a.ctrl.SystemProxyEnabled())
	setChecked(a.tunItem, a.ctrl.TunEnabled())

	var rate *Rate
	if a.traffic.running() {
		r := a.traffic.current()
		rate = &r
	}
	a.setTooltip(rate)
}

func (a *App) setTooltip(rate *Rate) {
	if !a.isReady() {
		return
	}
	systray.SetTooltip(tooltip(a.version, a.ctrl.Mode(), a.ctrl.SystemProxyEnabled(), a.ctrl.TunEnabled(), rate))
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// SubscribeTraffic starts showing live traffic rates in the tooltip.
func (a *App) SubscribeTraffic() {
	a.traffic.start()
}

// UnsubscribeTraffic stops the traffic poller.
func (a *App) UnsubscribeTraffic() {
	a.traffic.stop()
}

// Quit removes the tray icon.
func (a *App) Quit() {
	systray.Quit()
}
