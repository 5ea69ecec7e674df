package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/deeplink"
	"github.com/outclash/outclash-go/internal/engine"
	"github.com/outclash/outclash-go/internal/engine/ipc"
	"github.com/outclash/outclash-go/internal/lifecycle"
)

var errBoom = errors.New("boom")

type trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *trace) add(call string) {
	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.mu.Unlock()
}

func (t *trace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

type fakeEngine struct {
	tr         *trace
	initErr    error
	restartErr error
	stopErr    error
	mode       engine.RunningMode
}

func (e *fakeEngine) Init(context.Context) error    { e.tr.add("engine.init"); return e.initErr }
func (e *fakeEngine) Restart(context.Context) error { e.tr.add("engine.restart"); return e.restartErr }
func (e *fakeEngine) Stop() error                   { e.tr.add("engine.stop"); return e.stopErr }
func (e *fakeEngine) RunningMode() engine.RunningMode {
	if e.mode == "" {
		return engine.RunningModeSidecar
	}
	return e.mode
}

type fakeIPC struct {
	tr       *trace
	mu       sync.Mutex
	patchErr error
	patches  []map[string]any
	conns    []ipc.Connection
	deleted  []string
}

func (c *fakeIPC) PatchConfigs(_ context.Context, patch map[string]any) error {
	c.tr.add("ipc.patch")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patches = append(c.patches, patch)
	return c.patchErr
}

func (c *fakeIPC) GetConnections(context.Context) (*ipc.Connections, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &ipc.Connections{Connections: append([]ipc.Connection(nil), c.conns...)}, nil
}

func (c *fakeIPC) DeleteConnection(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *fakeIPC) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

type notice struct{ status, message string }

type fakeNotifier struct {
	mu            sync.Mutex
	notices       []notice
	refreshClash  int
	refreshVerges int
}

func (n *fakeNotifier) Notice(status, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{status, message})
}

func (n *fakeNotifier) RefreshClash() {
	n.mu.Lock()
	n.refreshClash++
	n.mu.Unlock()
}

func (n *fakeNotifier) RefreshVerge() {
	n.mu.Lock()
	n.refreshVerges++
	n.mu.Unlock()
}

func (n *fakeNotifier) Notices() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type fakeSysproxy struct {
	tr       *trace
	resetErr error
	ports    []uint16
	guards   int
}

func (s *fakeSysproxy) Update(_ context.Context, _ *config.Verge, port uint16) error {
	s.tr.add("sysproxy.update")
	s.ports = append(s.ports, port)
	return nil
}

func (s *fakeSysproxy) Reset(context.Context) error {
	s.tr.add("sysproxy.reset")
	return s.resetErr
}

func (s *fakeSysproxy) UpdateGuard(*config.Verge) { s.guards++ }

type fakeWindow struct {
	tr      *trace
	visible bool
	shows   []bool
}

func (w *fakeWindow) EnsureVisible(show bool) bool {
	w.tr.add("window.ensure")
	w.shows = append(w.shows, show)
	w.visible = true
	return true
}

func (w *fakeWindow) IsVisible() bool { return w.visible }

type fakeTray struct {
	tr      *trace
	initErr error

	mu      sync.Mutex
	updates int
}

func (t *fakeTray) Init() error   { t.tr.add("tray.init"); return t.initErr }
func (t *fakeTray) Create() error { t.tr.add("tray.create"); return nil }

func (t *fakeTray) Update() {
	t.tr.add("tray.update")
	t.mu.Lock()
	t.updates++
	t.mu.Unlock()
}

func (t *fakeTray) SubscribeTraffic()   {}
func (t *fakeTray) UnsubscribeTraffic() { t.tr.add("tray.unsubscribe") }

type fakeServer struct{ tr *trace }

func (s *fakeServer) Start(context.Context) error { s.tr.add("server.start"); return nil }

type fakeProfiles struct{ tr *trace }

func (p *fakeProfiles) AutoCleanup() ([]string, error) { p.tr.add("profiles.cleanup"); return nil, nil }

type fakeTimers struct{ tr *trace }

func (f *fakeTimers) Init() { f.tr.add("timer.init") }

type fakeHotkeys struct {
	tr      *trace
	err     error
	enabled bool
}

func (h *fakeHotkeys) Init(enabled bool, _ []string) error {
	h.tr.add("hotkey.init")
	h.enabled = enabled
	return h.err
}

type fakeLightweight struct {
	tr      *trace
	entered int
	after   time.Duration
}

func (l *fakeLightweight) Enter() { l.entered++ }

func (l *fakeLightweight) ScheduleAutoEnter(after time.Duration, _ func() bool) {
	l.tr.add("lightweight.schedule")
	l.after = after
}

type fakeDeepLinks struct {
	tr        *trace
	scheduled []string
}

func (d *fakeDeepLinks) Schedule(raw string) { d.scheduled = append(d.scheduled, raw) }

func (d *fakeDeepLinks) Replay(c *deeplink.Capture) bool {
	d.tr.add("deeplink.replay")
	raw, ok := c.Take()
	if ok {
		d.scheduled = append(d.scheduled, raw)
	}
	return ok
}

type fixture struct {
	tr       *trace
	app      *App
	store    *config.Store
	engine   *fakeEngine
	ipc      *fakeIPC
	notifier *fakeNotifier
	sysproxy *fakeSysproxy
	window   *fakeWindow
	tray     *fakeTray
	hotkeys  *fakeHotkeys
	lw       *fakeLightweight
	links    *fakeDeepLinks
	capture  *deeplink.Capture
	handle   *Handle

	exitCodes []int
	spawned   [][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tr := &trace{}
	store := config.NewStore(config.Dirs{Home: t.TempDir()})
	require.NoError(t, store.Load())

	f := &fixture{
		tr:       tr,
		store:    store,
		engine:   &fakeEngine{tr: tr},
		ipc:      &fakeIPC{tr: tr},
		notifier: &fakeNotifier{},
		sysproxy: &fakeSysproxy{tr: tr},
		window:   &fakeWindow{tr: tr},
		tray:     &fakeTray{tr: tr},
		hotkeys:  &fakeHotkeys{tr: tr},
		lw:       &fakeLightweight{tr: tr},
		links:    &fakeDeepLinks{tr: tr},
		capture:  &deeplink.Capture{},
		handle:   NewHandle(),
	}
	f.app = New(Config{
		Version:        "1.2.3",
		Args:           []string{"--silent"},
		Store:          store,
		Shared:         lifecycle.NewShared(lifecycle.Options{}),
		Handle:         f.handle,
		Engine:         f.engine,
		IPC:            f.ipc,
		Profiles:       &fakeProfiles{tr: tr},
		SystemProxy:    f.sysproxy,
		Window:         f.window,
		Lightweight:    f.lw,
		DeepLinks:      f.links,
		Capture:        f.capture,
		Timers:         &fakeTimers{tr: tr},
		Hotkeys:        f.hotkeys,
		Notifier:       f.notifier,
		Logger:         zaptest.NewLogger(t),
		RegisterScheme: func(context.Context) error { tr.add("scheme.register"); return nil },
	})
	f.app.AttachSurfaces(&fakeServer{tr: tr}, f.tray)
	f.app.copyText = func(string) error { return nil }
	f.app.restoreDNS = func(context.Context) error { tr.add("dns.restore"); return nil }
	f.app.executable = func() (string, error) { return "/opt/outclash/outclash", nil }
	f.app.spawn = func(exe string, args []string) error {
		f.spawned = append(f.spawned, append([]string{exe}, args...))
		return nil
	}
	f.app.exit = func(code int) { f.exitCodes = append(f.exitCodes, code) }
	return f
}
