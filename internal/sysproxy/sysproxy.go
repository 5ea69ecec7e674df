// Package sysproxy points the operating system's proxy settings at the local
// engine and keeps them there.
package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/logs"
)

// DefaultHost is the address the system proxy is pointed at.
const DefaultHost = "127.0.0.1"

// Settings is a system proxy configuration.
type Settings struct {
	Enable bool
	Host   string
	Port   uint16
	Bypass string
}

// Address returns host:port.
func (s Settings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BypassList splits Bypass on commas, semicolons and newlines.
func (s Settings) BypassList() []string {
	fields := strings.FieldsFunc(s.Bypass, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Matches reports whether two settings point at the same proxy.
func (s Settings) Matches(o Settings) bool {
	if s.Enable != o.Enable {
		return false
	}
	if !s.Enable {
		return true
	}
	return s.Host == o.Host && s.Port == o.Port
}

// ErrUnsupported is returned on platforms without a system proxy backend.
var ErrUnsupported = errors.New("system proxy is not supported on this platform")

// Applier talks to the platform proxy configuration.
type Applier interface {
	Apply(ctx context.Context, s Settings) error
	Reset(ctx context.Context) error
	Current(ctx context.Context) (Settings, error)
}

// Manager applies the configured proxy and runs the proxy guard.
type Manager struct {
	applier Applier
	logger  *zap.Logger

	mu          sync.Mutex
	desired     Settings
	guardCancel context.CancelFunc
	guardDone   chan struct{}
}

// NewManager creates a manager for the current platform.
func NewManager(logger *zap.Logger) *Manager {
	return NewManagerWith(newPlatformApplier(), logger)
}

// NewManagerWith creates a manager around applier.
func NewManagerWith(applier Applier, logger *zap.Logger) *Manager {
	return &Manager{applier: applier, logger: logs.For(logger, logs.TypeSystem)}
}

// SettingsFor derives the desired settings from the app settings and the
// engine's mixed port.
func SettingsFor(verge *config.Verge, port uint16) Settings {
	bypass := config.StringValue(verge.SystemProxyBypass)
	if bypass == "" {
		bypass = DefaultBypass
	}
	return Settings{
		Enable: config.BoolValue(verge.EnableSystemProxy, false),
		Host:   DefaultHost,
		Port:   port,
		Bypass: bypass,
	}
}

// Update applies the system proxy when enabled and clears it otherwise.
func (m *Manager) Update(ctx context.Context, verge *config.Verge, port uint16) error {
	s := SettingsFor(verge, port)
	m.mu.Lock()
	m.desired = s
	m.mu.Unlock()

	if !s.Enable {
		m.logger.Debug("System proxy disabled, resetting")
		return m.applier.Reset(ctx)
	}
	m.logger.Info("Applying system proxy", zap.String("address", s.Address()))
	if err := m.applier.Apply(ctx, s); err != nil {
		return fmt.Errorf("failed to apply system proxy: %w", err)
	}
	return nil
}

// Reset clears the system proxy and stops the guard.
func (m *Manager) Reset(ctx context.Context) error {
	m.StopGuard()
	m.mu.Lock()
	m.desired = Settings{}
	m.mu.Unlock()
	if err := m.applier.Reset(ctx); err != nil && !errors.Is(err, ErrUnsupported) {
		return fmt.Errorf("failed to reset system proxy: %w", err)
	}
	return nil
}

// UpdateGuard starts the guard when both the system proxy and the guard are
// enabled, and stops it otherwise.
func (m *Manager) UpdateGuard(verge *config.Verge) {
	enabled := config.BoolValue(verge.EnableSystemProxy, false) && config.BoolValue(verge.EnableProxyGuard, false)
	if !enabled {
		m.StopGuard()
		return
	}
	secs := config.Uint64Value(verge.ProxyGuardDuration, 30)
	if secs == 0 {
		secs = 30
	}
	m.StartGuard(time.Duration(secs) * time.Second)
}

// StartGuard re-applies the desired settings every interval if something
// else changed them. A running guard is replaced.
func (m *Manager) StartGuard(interval time.Duration) {
	m.StopGuard()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.guardCancel = cancel
	m.guardDone = done
	m.mu.Unlock()

	m.logger.Info("Proxy guard started", zap.Duration("interval", interval))
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.enforce(ctx)
			}
		}
	}()
}

// StopGuard stops the guard if it is running.
func (m *Manager) StopGuard() {
	m.mu.Lock()
	cancel, done := m.guardCancel, m.guardDone
	m.guardCancel, m.guardDone = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Debug("Proxy guard stopped")
}

// GuardRunning reports whether the guard goroutine is active.
func (m *Manager) GuardRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guardCancel != nil
}

func (m *Manager) enforce(ctx context.Context) {
	m.mu.Lock()
	want := m.desired
	m.mu.Unlock()
	if !want.Enable {
		return
	}

	cur, err := m.applier.Current(ctx)
	if err != nil {
		m.logger.Debug("Failed to read system proxy", zap.Error(err))
		return
	}
	if cur.Matches(want) {
		return
	}
	m.logger.Info("System proxy changed externally, restoring",
		zap.String("current", cur.Address()), zap.String("want", want.Address()))
	if err := m.applier.Apply(ctx, want); err != nil {
		m.logger.Warn("Failed to restore system proxy", zap.Error(err))
	}
}
