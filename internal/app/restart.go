package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/engine"
	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/logs"
)

const resetTimeout = 30 * time.Second

// Reset releases the resources that must not outlive the process: live
// traffic polling, the system proxy, the engine and, on macOS, the DNS
// override. All steps run; their failures are joined.
func (a *App) Reset(ctx context.Context) error {
	var errs []error

	if t := a.currentTray(); t != nil {
		t.UnsubscribeTraffic()
	}
	if a.cfg.SystemProxy != nil {
		if err := a.cfg.SystemProxy.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to reset system proxy: %w", err))
		}
	}
	if a.cfg.Engine != nil {
		if err := a.cfg.Engine.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("failed to stop engine: %w", err))
		}
	}
	if a.goos == "darwin" && a.dnsSettingsEnabled() {
		if err := a.restoreDNS(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore DNS: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		a.logger.Error("Resource reset incomplete", zap.Error(err))
	}
	return err
}

func (a *App) dnsSettingsEnabled() bool {
	if a.cfg.Store == nil {
		return false
	}
	return config.BoolValue(a.cfg.Store.Verge().EnableDNSSettings, false)
}

// RestartCore restarts the engine and tells the frontend how it went. There
// is no retry.
func (a *App) RestartCore(ctx context.Context) error {
	logger := logs.For(a.cfg.Logger, logs.TypeCore)
	if a.cfg.Engine == nil {
		return fmt.Errorf("engine not configured")
	}

	err := a.cfg.Engine.Restart(ctx)
	a.metrics.RecordEngineRestart(err)
	if err != nil {
		logger.Error("Engine restart failed", zap.Error(err))
		a.notice(events.StatusSetConfigError, err.Error())
		return err
	}

	logger.Info("Engine restarted")
	if a.cfg.Notifier != nil {
		a.cfg.Notifier.RefreshClash()
	}
	a.notice(events.StatusSetConfigOK, "ok")
	return nil
}

// RestartApp cleans up and relaunches the application. A failed cleanup
// aborts the restart. Without an attached handle the process spawns its
// replacement and exits: 0 after a successful spawn, 1 otherwise.
func (a *App) RestartApp() {
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	err := a.Reset(ctx)
	cancel()
	if err != nil {
		a.notice(events.StatusRestartAppError, fmt.Sprintf("Failed to cleanup resources: %v", err))
		return
	}

	if a.cfg.Handle.Restart() {
		a.notice(events.StatusRestartAppInfo, "Restarting application...")
		return
	}

	a.notice(events.StatusRestartAppError, "Failed to get app handle for restart")
	a.exit(a.Relaunch())
}

// Relaunch starts a new instance with the current arguments and returns the
// exit code the current process should terminate with.
func (a *App) Relaunch() int {
	exe, err := a.executable()
	if err != nil {
		a.logger.Error("Failed to locate executable for restart", zap.Error(err))
		return 1
	}
	if err := a.spawn(exe, a.cfg.Args); err != nil {
		a.logger.Error("Failed to spawn new instance", zap.String("exe", exe), zap.Error(err))
		return 1
	}
	a.logger.Info("New instance spawned", zap.String("exe", exe), zap.Strings("args", a.cfg.Args))
	return 0
}

func (a *App) notice(status, message string) {
	if a.cfg.Notifier != nil {
		a.cfg.Notifier.Notice(status, message)
	}
}
