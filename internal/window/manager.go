package window

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/lifecycle"
	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/observability"
)

// Readiness timeouts for the frontend after a window is shown.
const (
	DefaultReadyTimeout            = 8 * time.Second
	DefaultLightweightReadyTimeout = 3 * time.Second
	DefaultReadinessPollInterval   = 100 * time.Millisecond
)

// Lightweight is the reduced-mode controller as seen by the manager.
type Lightweight interface {
	IsActive() bool
	SetActive(active bool)
	RunOnceAutoLightweight()
}

// Notifier receives the startup-completed signal for the frontend.
type Notifier interface {
	StartupCompleted()
}

// Timings tunes the readiness monitor. Zero values select defaults.
type Timings struct {
	PollInterval            time.Duration
	ReadyTimeout            time.Duration
	LightweightReadyTimeout time.Duration
}

func (t Timings) withDefaults() Timings {
	if t.PollInterval <= 0 {
		t.PollInterval = DefaultReadinessPollInterval
	}
	if t.ReadyTimeout <= 0 {
		t.ReadyTimeout = DefaultReadyTimeout
	}
	if t.LightweightReadyTimeout <= 0 {
		t.LightweightReadyTimeout = DefaultLightweightReadyTimeout
	}
	return t
}

// Config wires a Manager to its collaborators.
type Config struct {
	Host        Host
	Shared      *lifecycle.Shared
	Lightweight Lightweight
	Notifier    Notifier
	// OnStartupCompleted marks backend startup as finished on the app handle.
	OnStartupCompleted func()
	URL                string
	Metrics            *observability.MetricsManager
	Logger             *zap.Logger
	Timings            Timings
}

// Manager implements ensure-visible for the main window.
type Manager struct {
	host               Host
	shared             *lifecycle.Shared
	lw                 Lightweight
	notifier           Notifier
	onStartupCompleted func()
	url                string
	metrics            *observability.MetricsManager
	logger             *zap.Logger
	timings            Timings

	tasks sync.WaitGroup
}

// NewManager creates a manager from cfg.
func NewManager(cfg Config) *Manager {
	shared := cfg.Shared
	if shared == nil {
		shared = lifecycle.Global()
	}
	onStartup := cfg.OnStartupCompleted
	if onStartup == nil {
		onStartup = func() {}
	}
	return &Manager{
		host:               cfg.Host,
		shared:             shared,
		lw:                 cfg.Lightweight,
		notifier:           cfg.Notifier,
		onStartupCompleted: onStartup,
		url:                cfg.URL,
		metrics:            cfg.Metrics,
		logger:             logs.For(cfg.Logger, logs.TypeWindow),
		timings:            cfg.Timings.withDefaults(),
	}
}

// EnsureVisible shows the main window, building it if needed. With show
// false it performs a silent start instead. It returns true only when a
// window ends up shown.
func (m *Manager) EnsureVisible(show bool) bool {
	m.logger.Info("Creating/showing main window", zap.Bool("show", show))

	if !show {
		m.logger.Info("Silent start, not creating a window")
		m.lw.SetActive(true)
		m.notifier.StartupCompleted()
		m.metrics.RecordWindowRequest(observability.WindowSilent)
		return false
	}

	if w, ok := m.host.MainWindow(); ok {
		if m.showExisting(w) {
			m.metrics.RecordWindowRequest(observability.WindowReused)
			return true
		}
		m.logger.Warn("Failed to show existing window, destroying and rebuilding")
		_ = w.Destroy()
	}

	release, ok := m.shared.Guard.TryAcquire()
	if !ok {
		m.logger.Info("Window creation already in progress, ignoring request")
		m.metrics.RecordWindowRequest(observability.WindowRefused)
		return false
	}
	defer release()

	lightweightAtCreation := m.lw.IsActive()

	w, err := m.host.Build(DefaultOptions(m.url))
	if err != nil {
		m.logger.Error("Failed to create main window", zap.Error(err))
		m.metrics.RecordWindowRequest(observability.WindowFailed)
		return false
	}
	m.logger.Debug("Main window created")
	m.metrics.RecordWindowRequest(observability.WindowBuilt)

	m.shared.Readiness.ResetStage()

	timeout := m.timings.ReadyTimeout
	if lightweightAtCreation {
		timeout = m.timings.LightweightReadyTimeout
	}

	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		m.afterBuild(w, timeout)
	}()
	return true
}

func (m *Manager) showExisting(w Window) bool {
	m.logger.Info("Main window exists, showing it")
	if minimized, err := w.IsMinimized(); err == nil && minimized {
		m.logger.Info("Window is minimized, unminimizing")
		_ = w.Unminimize()
	}
	showErr := w.Show()
	focusErr := w.SetFocus()
	if showErr != nil || focusErr != nil {
		m.logger.Debug("Existing window did not respond",
			zap.NamedError("show_error", showErr),
			zap.NamedError("focus_error", focusErr))
		return false
	}
	return true
}

func (m *Manager) afterBuild(w Window, timeout time.Duration) {
	m.onStartupCompleted()
	m.logger.Debug("Window task started, startup marked completed")

	m.lw.RunOnceAutoLightweight()
	m.notifier.StartupCompleted()

	_ = w.Show()
	_ = w.SetFocus()
	m.logger.Info("Window shown, monitoring UI readiness", zap.Duration("timeout", timeout))

	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		m.monitorReadiness(timeout)
	}()
}

func (m *Manager) monitorReadiness(timeout time.Duration) {
	readiness := m.shared.Readiness
	if lifecycle.WaitFor(readiness.IsReady, m.timings.PollInterval, timeout) {
		m.logger.Info("UI fully loaded and ready")
		if w, ok := m.host.MainWindow(); ok {
			if err := w.Eval(RemoveOverlayScript); err != nil {
				m.logger.Debug("Failed to remove loading overlay", zap.Error(err))
			}
		}
		return
	}

	m.logger.Warn("UI load monitoring timed out, window is already visible", zap.Duration("timeout", timeout))
	m.metrics.RecordReadinessTimeout()
	readiness.MarkReady()
}

// Destroy tears the main window down and clears readiness so the next build
// starts from scratch.
func (m *Manager) Destroy() {
	if w, ok := m.host.MainWindow(); ok {
		if err := w.Destroy(); err != nil {
			m.logger.Debug("Destroy main window failed", zap.Error(err))
		}
	}
	m.shared.Readiness.Reset()
}

// IsVisible reports whether a main window exists.
func (m *Manager) IsVisible() bool {
	_, ok := m.host.MainWindow()
	return ok
}

// Wait blocks until background window tasks have finished.
func (m *Manager) Wait() {
	m.tasks.Wait()
}
