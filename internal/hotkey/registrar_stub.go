//go:build nogui || headless || !(darwin || windows)

package hotkey

import "go.uber.org/zap"

// NewSystemRegistrar returns an in-process registrar: this build has no
// desktop hotkey hook.
func NewSystemRegistrar(logger *zap.Logger) Registrar {
	if logger != nil {
		logger.Debug("Global hotkeys are handled in process only")
	}
	return &localRegistrar{}
}
