package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/hotkey"
	"github.com/outclash/outclash-go/internal/server"
	"github.com/outclash/outclash-go/internal/tray"
)

const commandTimeout = 30 * time.Second

var _ server.Controller = (*App)(nil)

// ShowWindow makes the main window visible, creating it if needed.
func (a *App) ShowWindow() bool {
	if a.cfg.Window == nil {
		return false
	}
	return a.cfg.Window.EnsureVisible(true)
}

// HandleDeepLink schedules delivery of an activation link.
func (a *App) HandleDeepLink(param string) {
	if a.cfg.DeepLinks == nil {
		a.logger.Warn("Deep link dropped, no scheduler", zap.String("param", param))
		return
	}
	a.cfg.DeepLinks.Schedule(param)
}

// ChangeMode implements server.Controller.
func (a *App) ChangeMode(ctx context.Context, mode string) error {
	return a.ChangeClashMode(ctx, mode)
}

// EnterLightweight switches to the reduced mode.
func (a *App) EnterLightweight() {
	if a.cfg.Lightweight != nil {
		a.cfg.Lightweight.Enter()
	}
}

// Quit asks the main loop to return.
func (a *App) Quit() {
	a.cfg.Handle.Quit()
}

func (a *App) background(fn func(ctx context.Context) error, what string) {
	a.goAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.logger.Warn("Command failed", zap.String("command", what), zap.Error(err))
		}
	})
}

// TrayController adapts the App to the tray menu, whose actions are fire and
// forget.
func (a *App) TrayController() tray.Controller {
	return trayController{a}
}

type trayController struct{ a *App }

func (t trayController) ShowWindow()              { t.a.ShowWindow() }
func (t trayController) Mode() string             { return t.a.Mode() }
func (t trayController) SystemProxyEnabled() bool { return t.a.SystemProxyEnabled() }
func (t trayController) TunEnabled() bool         { return t.a.TunEnabled() }
func (t trayController) EnterLightweight()        { t.a.EnterLightweight() }
func (t trayController) Quit()                    { t.a.Quit() }

func (t trayController) ChangeMode(mode string) {
	t.a.background(func(ctx context.Context) error {
		return t.a.ChangeClashMode(ctx, mode)
	}, "change_mode")
}

func (t trayController) ToggleSystemProxy() {
	enable := !t.a.SystemProxyEnabled()
	t.a.background(func(ctx context.Context) error {
		return t.a.SetSystemProxy(ctx, enable)
	}, "toggle_system_proxy")
}

func (t trayController) ToggleTunMode() {
	enable := !t.a.TunEnabled()
	t.a.background(func(ctx context.Context) error {
		return t.a.SetTunMode(ctx, enable)
	}, "toggle_tun_mode")
}

func (t trayController) RestartCore() {
	t.a.background(t.a.RestartCore, "restart_core")
}

func (t trayController) RestartApp() {
	t.a.goAsync(t.a.RestartApp)
}

func (t trayController) CopyDiagnostics() {
	_ = t.a.ExportDiagnostics()
}

func (t trayController) OpenConfigDir() {
	if err := t.a.OpenConfigDir(); err != nil {
		t.a.logger.Warn("Failed to open config dir", zap.Error(err))
	}
}

// BindHotkeys installs the handlers for every hotkey action.
func (a *App) BindHotkeys(m *hotkey.Manager) {
	tc := trayController{a}
	m.Handle(hotkey.ActionOpenOrCloseDashboard, a.toggleDashboard)
	m.Handle(hotkey.ActionClashModeRule, func() { tc.ChangeMode("rule") })
	m.Handle(hotkey.ActionClashModeGlobal, func() { tc.ChangeMode("global") })
	m.Handle(hotkey.ActionClashModeDirect, func() { tc.ChangeMode("direct") })
	m.Handle(hotkey.ActionToggleSystemProxy, tc.ToggleSystemProxy)
	m.Handle(hotkey.ActionToggleTunMode, tc.ToggleTunMode)
	m.Handle(hotkey.ActionEntryLightweightMode, a.EnterLightweight)
	m.Handle(hotkey.ActionQuit, a.Quit)
}

// toggleDashboard shows the window, or enters lightweight mode when it is
// already open.
func (a *App) toggleDashboard() {
	if a.cfg.Window != nil && a.cfg.Window.IsVisible() {
		a.EnterLightweight()
		return
	}
	a.ShowWindow()
}
