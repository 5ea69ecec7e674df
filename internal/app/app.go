// Package app wires the lifecycle components together: it runs the startup
// sequence, owns the restart and reset flows and answers the commands issued
// by the tray, the hotkeys and the embedded server.
package app

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/deeplink"
	"github.com/outclash/outclash-go/internal/engine"
	"github.com/outclash/outclash-go/internal/engine/ipc"
	"github.com/outclash/outclash-go/internal/lifecycle"
	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/observability"
	"github.com/outclash/outclash-go/internal/storage"
	"github.com/outclash/outclash-go/internal/sysproxy"
	"github.com/outclash/outclash-go/internal/updatecheck"
	"github.com/outclash/outclash-go/internal/window"
)

// Engine is the proxy-core supervisor.
type Engine interface {
	Init(ctx context.Context) error
	Restart(ctx context.Context) error
	Stop() error
	RunningMode() engine.RunningMode
}

// EngineIPC is the live control channel of the running engine.
type EngineIPC interface {
	PatchConfigs(ctx context.Context, patch map[string]any) error
	GetConnections(ctx context.Context) (*ipc.Connections, error)
	DeleteConnection(ctx context.Context, id string) error
}

// Notifier pushes notices and refresh requests to the frontend.
type Notifier interface {
	Notice(status, message string)
	RefreshClash()
	RefreshVerge()
}

// SystemProxy applies the OS proxy settings.
type SystemProxy interface {
	Update(ctx context.Context, verge *config.Verge, port uint16) error
	Reset(ctx context.Context) error
	UpdateGuard(verge *config.Verge)
}

// Window is the main window manager.
type Window interface {
	EnsureVisible(show bool) bool
	IsVisible() bool
}

// Lightweight is the reduced-mode controller.
type Lightweight interface {
	Enter()
	ScheduleAutoEnter(after time.Duration, windowVisible func() bool)
}

// DeepLinks delivers activation links.
type DeepLinks interface {
	Schedule(raw string)
	Replay(c *deeplink.Capture) bool
}

// Profiles is the part of the profile store used at startup.
type Profiles interface {
	AutoCleanup() ([]string, error)
}

// History lists past imports.
type History interface {
	ListImports(limit int) ([]*storage.ImportRecord, error)
}

// Timers schedules profile refreshes.
type Timers interface {
	Init()
}

// Hotkeys registers the configured shortcuts.
type Hotkeys interface {
	Init(enabled bool, entries []string) error
}

// Tray is the system tray icon.
type Tray interface {
	Init() error
	Create() error
	Update()
	SubscribeTraffic()
	UnsubscribeTraffic()
}

// Updates reports the outcome of the last release check.
type Updates interface {
	Info() updatecheck.Info
}

// Server is the embedded local server.
type Server interface {
	Start(ctx context.Context) error
}

// Config wires an App.
type Config struct {
	Version string
	// Silent suppresses the window at startup regardless of settings.
	Silent bool
	// Args are passed to a relaunched process.
	Args []string

	Store         *config.Store
	Shared        *lifecycle.Shared
	Handle        *Handle
	Engine        Engine
	IPC           EngineIPC
	Profiles      Profiles
	History       History
	SystemProxy   SystemProxy
	Window        Window
	Lightweight   Lightweight
	DeepLinks     DeepLinks
	Capture       *deeplink.Capture
	Timers        Timers
	Hotkeys       Hotkeys
	Notifier      Notifier
	Updates       Updates
	Observability *observability.Manager
	Logger        *zap.Logger

	// RegisterScheme registers the URL schemes with the OS.
	RegisterScheme func(ctx context.Context) error
}

// App is the application controller.
type App struct {
	cfg     Config
	logger  *zap.Logger
	metrics *observability.MetricsManager
	tracing *observability.TracingManager

	mu     sync.RWMutex
	tray   Tray
	server Server

	port    atomic.Uint32
	version string

	goos       string
	restoreDNS func(ctx context.Context) error
	copyText   func(text string) error
	open       func(target string) error
	executable func() (string, error)
	spawn      func(exe string, args []string) error
	exit       func(code int)
	isAdmin    func() bool

	tasks sync.WaitGroup
}

// New creates an App. Tray and server are attached later with
// AttachSurfaces since both are built around the App itself.
func New(cfg Config) *App {
	if cfg.Shared == nil {
		cfg.Shared = lifecycle.Global()
	}
	if cfg.Handle == nil {
		cfg.Handle = NewHandle()
	}
	if cfg.Args == nil && len(os.Args) > 1 {
		cfg.Args = os.Args[1:]
	}
	a := &App{
		cfg:        cfg,
		logger:     logs.For(cfg.Logger, logs.TypeSetup),
		goos:       runtime.GOOS,
		restoreDNS: sysproxy.RestorePublicDNS,
		copyText:   clipboard.WriteAll,
		open:       window.OpenExternal,
		executable: os.Executable,
		spawn:      spawnProcess,
		exit:       os.Exit,
		isAdmin:    isAdmin,
	}
	if obs := cfg.Observability; obs != nil {
		a.metrics = obs.Metrics()
		a.tracing = obs.Tracing()
	}
	if cfg.Store != nil {
		a.port.Store(uint32(cfg.Store.Clash().MixedPort()))
	}
	return a
}

// AttachSurfaces installs the tray and the embedded server.
func (a *App) AttachSurfaces(server Server, tray Tray) {
	a.mu.Lock()
	a.server = server
	a.tray = tray
	a.mu.Unlock()
}

func (a *App) currentTray() Tray {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tray
}

func (a *App) currentServer() Server {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.server
}

func (a *App) updateTray() {
	if t := a.currentTray(); t != nil {
		t.Update()
	}
}

// Port returns the resolved mixed port.
func (a *App) Port() uint16 {
	return uint16(a.port.Load())
}

// Version returns the version captured at startup.
func (a *App) Version() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.version != "" {
		return a.version
	}
	return a.cfg.Version
}

// Wait blocks until background tasks started by the App have finished.
func (a *App) Wait() {
	a.tasks.Wait()
}

func (a *App) goAsync(fn func()) {
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		fn()
	}()
}

func spawnProcess(exe string, args []string) error {
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
