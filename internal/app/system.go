package app

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/engine"
	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/storage"
	"github.com/outclash/outclash-go/internal/updatecheck"
)

// Uptime is the time since the process-wide start time.
func (a *App) Uptime() time.Duration {
	return a.cfg.Shared.Uptime()
}

// RunningMode reports how the engine is hosted.
func (a *App) RunningMode() string {
	if a.cfg.Engine == nil {
		return string(engine.RunningModeNotRunning)
	}
	return string(a.cfg.Engine.RunningMode())
}

// IsAdmin reports whether the process runs with elevated privileges.
func (a *App) IsAdmin() bool {
	return a.isAdmin()
}

// SystemInfo renders the diagnostic summary shown in the UI and copied by
// ExportDiagnostics.
func (a *App) SystemInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "System Name: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "System Version: %s\n", osVersion())
	fmt.Fprintf(&b, "System Arch: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "App Version: %s\n", a.Version())
	fmt.Fprintf(&b, "Running Mode: %s\n", a.RunningMode())
	fmt.Fprintf(&b, "Is Admin: %t", a.IsAdmin())
	return b.String()
}

// ExportDiagnostics copies SystemInfo to the clipboard.
func (a *App) ExportDiagnostics() error {
	if err := a.copyText(a.SystemInfo()); err != nil {
		logs.For(a.cfg.Logger, logs.TypeSystem).Warn("Failed to copy diagnostics", zap.Error(err))
		return fmt.Errorf("failed to copy diagnostics: %w", err)
	}
	return nil
}

// OpenConfigDir opens the application home directory in the file manager.
func (a *App) OpenConfigDir() error {
	if a.cfg.Store == nil {
		return errNoStore
	}
	return a.open(a.cfg.Store.Dirs().Home)
}

// Imports lists the most recent subscription imports.
func (a *App) Imports(limit int) ([]*storage.ImportRecord, error) {
	if a.cfg.History == nil {
		return nil, nil
	}
	return a.cfg.History.ListImports(limit)
}

// VersionInfo returns the last update check, or just the running version
// when no checker is configured.
func (a *App) VersionInfo() updatecheck.Info {
	if a.cfg.Updates == nil {
		return updatecheck.Info{CurrentVersion: a.cfg.Version}
	}
	return a.cfg.Updates.Info()
}
