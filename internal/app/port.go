package app

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/config"
)

// FindUnusedPort asks the OS for a free loopback port, returning fallback if
// none can be bound.
func FindUnusedPort(fallback uint16) uint16 {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fallback
	}
	defer ln.Close()
	if addr, ok := ln.Addr().(*net.TCPAddr); ok && addr.Port > 0 {
		return uint16(addr.Port)
	}
	return fallback
}

// resolvePort picks the mixed port and writes it to both documents.
func (a *App) resolvePort(context.Context) error {
	store := a.cfg.Store
	if store == nil {
		return errSkipped
	}
	verge := store.Verge()

	port := store.Clash().MixedPort()
	if verge.VergeMixedPort != nil && *verge.VergeMixedPort != 0 {
		port = *verge.VergeMixedPort
	}
	if config.BoolValue(verge.EnableRandomPort, false) {
		port = FindUnusedPort(port)
		a.logger.Info("Random port selected", zap.Uint16("port", port))
	}
	a.port.Store(uint32(port))

	store.PatchVerge(config.Verge{VergeMixedPort: config.Uint16Ptr(port)})
	if err := store.SaveVerge(); err != nil {
		return fmt.Errorf("failed to save port to %s: %w", config.VergeFileName, err)
	}
	store.PatchClash(map[string]any{"mixed-port": int(port)})
	if err := store.SaveClash(); err != nil {
		return fmt.Errorf("failed to save port to %s: %w", config.ClashFileName, err)
	}
	return nil
}
