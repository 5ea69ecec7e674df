package logs

import "go.uber.org/zap"

// Type tags a log line with the subsystem that produced it.
type Type string

// Subsystem categories.
const (
	TypeSetup    Type = "setup"
	TypeWindow   Type = "window"
	TypeCore     Type = "core"
	TypeTray     Type = "tray"
	TypeConfig   Type = "config"
	TypeSystem   Type = "system"
	TypeDeepLink Type = "deeplink"
	TypeHotkey   Type = "hotkey"
	TypeTimer    Type = "timer"
)

// For returns a child logger carrying the subsystem type field.
func For(logger *zap.Logger, t Type) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("type", string(t)))
}
