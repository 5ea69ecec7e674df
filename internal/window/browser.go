package window

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Frontend is the push channel to the page rendered in the browser.
type Frontend interface {
	Eval(script string)
	WindowClosed()
}

// BrowserHost renders the main window as a page of the embedded server in the
// user's default browser. Show and focus re-open the page.
type BrowserHost struct {
	frontend Frontend
	open     func(url string) error
	logger   *zap.Logger

	mu  sync.Mutex
	win *browserWindow
}

// NewBrowserHost creates a host that pushes scripts through frontend.
func NewBrowserHost(frontend Frontend, logger *zap.Logger) *BrowserHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserHost{frontend: frontend, open: OpenExternal, logger: logger}
}

// MainWindow implements Host.
func (h *BrowserHost) MainWindow() (Window, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.win == nil {
		return nil, false
	}
	return h.win, true
}

// Build implements Host.
func (h *BrowserHost) Build(opts Options) (Window, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("window %s has no url", opts.Label)
	}
	if err := h.open(opts.URL); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.URL, err)
	}
	if opts.InitScript != "" {
		h.frontend.Eval(opts.InitScript)
	}

	w := &browserWindow{host: h, url: opts.URL}
	h.mu.Lock()
	h.win = w
	h.mu.Unlock()
	return w, nil
}

func (h *BrowserHost) forget(w *browserWindow) {
	h.mu.Lock()
	if h.win == w {
		h.win = nil
	}
	h.mu.Unlock()
}

type browserWindow struct {
	host *BrowserHost
	url  string

	mu        sync.Mutex
	destroyed bool
	focused   bool
}

func (w *browserWindow) alive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrStale
	}
	return nil
}

func (w *browserWindow) IsMinimized() (bool, error) {
	return false, w.alive()
}

func (w *browserWindow) Unminimize() error { return w.alive() }

func (w *browserWindow) Show() error { return w.alive() }

// SetFocus brings the page to the front by opening it again. The first call
// is a no-op since Build just opened it.
func (w *browserWindow) SetFocus() error {
	if err := w.alive(); err != nil {
		return err
	}
	w.mu.Lock()
	first := !w.focused
	w.focused = true
	w.mu.Unlock()
	if first {
		return nil
	}
	return w.host.open(w.url)
}

func (w *browserWindow) Eval(script string) error {
	if err := w.alive(); err != nil {
		return err
	}
	w.host.frontend.Eval(script)
	return nil
}

func (w *browserWindow) Destroy() error {
	w.mu.Lock()
	already := w.destroyed
	w.destroyed = true
	w.mu.Unlock()
	w.host.forget(w)
	if !already {
		w.host.frontend.WindowClosed()
	}
	return nil
}

// OpenExternal hands target, a URL or a local path, to the platform handler.
func OpenExternal(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux", "freebsd", "openbsd":
		if !hasGUIEnvironment() {
			return fmt.Errorf("no graphical session detected")
		}
		if _, err := exec.LookPath("xdg-open"); err != nil {
			return fmt.Errorf("xdg-open not found in PATH: %w", err)
		}
		cmd = "xdg-open"
		args = []string{url}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return exec.Command(cmd, args...).Start()
}

func hasGUIEnvironment() bool {
	for _, envVar := range []string{"DISPLAY", "WAYLAND_DISPLAY", "XDG_SESSION_TYPE"} {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}
