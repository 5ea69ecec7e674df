package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/logs"
)

var errNoStore = errors.New("config store not configured")

const closeConnectionsTimeout = 10 * time.Second

// Mode returns the engine routing mode from the persisted config.
func (a *App) Mode() string {
	if a.cfg.Store == nil {
		return config.DefaultMode
	}
	return a.cfg.Store.Clash().Mode()
}

// ChangeClashMode switches the engine's routing mode live, persists it and,
// when enabled, closes existing connections in the background so that they
// are re-routed.
func (a *App) ChangeClashMode(ctx context.Context, mode string) error {
	logger := logs.For(a.cfg.Logger, logs.TypeCore)
	if a.cfg.IPC == nil || a.cfg.Store == nil {
		return errNoStore
	}
	logger.Info("Changing engine mode", zap.String("mode", mode))

	if err := a.cfg.IPC.PatchConfigs(ctx, map[string]any{"mode": mode}); err != nil {
		logger.Error("Failed to patch engine mode", zap.Error(err))
		a.notice(events.StatusChangeModeError, err.Error())
		return fmt.Errorf("failed to patch engine mode: %w", err)
	}

	a.cfg.Store.PatchClash(map[string]any{"mode": mode})
	if err := a.cfg.Store.SaveClash(); err != nil {
		logger.Error("Failed to save engine config", zap.Error(err))
		return fmt.Errorf("failed to save engine config: %w", err)
	}
	if a.cfg.Notifier != nil {
		a.cfg.Notifier.RefreshClash()
	}
	a.updateTray()

	if config.BoolValue(a.cfg.Store.Verge().AutoCloseConnection, true) {
		a.goAsync(a.closeConnections)
	}
	return nil
}

func (a *App) closeConnections() {
	logger := logs.For(a.cfg.Logger, logs.TypeCore)
	ctx, cancel := context.WithTimeout(context.Background(), closeConnectionsTimeout)
	defer cancel()

	conns, err := a.cfg.IPC.GetConnections(ctx)
	if err != nil {
		logger.Warn("Failed to list connections", zap.Error(err))
		return
	}
	closed := 0
	for _, c := range conns.Connections {
		if err := a.cfg.IPC.DeleteConnection(ctx, c.ID); err != nil {
			logger.Debug("Failed to close connection", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		closed++
	}
	logger.Debug("Closed connections after mode change", zap.Int("closed", closed))
}

// SystemProxyEnabled reports the persisted system proxy switch.
func (a *App) SystemProxyEnabled() bool {
	if a.cfg.Store == nil {
		return false
	}
	return config.BoolValue(a.cfg.Store.Verge().EnableSystemProxy, false)
}

// SetSystemProxy persists the system proxy switch and applies it.
func (a *App) SetSystemProxy(ctx context.Context, enable bool) error {
	if a.cfg.Store == nil {
		return errNoStore
	}
	a.cfg.Store.PatchVerge(config.Verge{EnableSystemProxy: config.BoolPtr(enable)})
	if err := a.cfg.Store.SaveVerge(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	var err error
	if a.cfg.SystemProxy != nil {
		verge := a.cfg.Store.Verge()
		err = a.cfg.SystemProxy.Update(ctx, verge, a.Port())
		a.cfg.SystemProxy.UpdateGuard(verge)
	}
	if a.cfg.Notifier != nil {
		a.cfg.Notifier.RefreshVerge()
	}
	a.updateTray()
	return err
}

// TunEnabled reports the persisted TUN switch.
func (a *App) TunEnabled() bool {
	if a.cfg.Store == nil {
		return false
	}
	return config.BoolValue(a.cfg.Store.Verge().EnableTunMode, false)
}

// SetTunMode persists the TUN switch and pushes it to the engine.
func (a *App) SetTunMode(ctx context.Context, enable bool) error {
	if a.cfg.Store == nil {
		return errNoStore
	}
	a.cfg.Store.PatchVerge(config.Verge{EnableTunMode: config.BoolPtr(enable)})
	if err := a.cfg.Store.SaveVerge(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	patch := map[string]any{"tun": map[string]any{"enable": enable}}
	var err error
	if a.cfg.IPC != nil {
		if perr := a.cfg.IPC.PatchConfigs(ctx, patch); perr != nil {
			err = fmt.Errorf("failed to patch engine tun: %w", perr)
		}
	}
	a.cfg.Store.PatchClash(patch)
	if serr := a.cfg.Store.SaveClash(); serr != nil {
		err = errors.Join(err, fmt.Errorf("failed to save engine config: %w", serr))
	}
	if a.cfg.Notifier != nil {
		a.cfg.Notifier.RefreshVerge()
		a.cfg.Notifier.RefreshClash()
	}
	a.updateTray()
	return err
}
