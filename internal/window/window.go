// Package window builds, shows and recreates the single main window.
package window

import "errors"

// Default geometry of the main window.
const (
	DefaultWidth     = 940
	DefaultHeight    = 700
	DefaultMinWidth  = 1000
	DefaultMinHeight = 800
	MainLabel        = "main"
	DefaultTitle     = "OutClash"
)

// ErrStale is returned by a Window whose underlying view is gone.
var ErrStale = errors.New("window handle is stale")

// Options describe a window to build.
type Options struct {
	Label       string
	Title       string
	URL         string
	Width       int
	Height      int
	MinWidth    int
	MinHeight   int
	Center      bool
	Decorations bool
	Fullscreen  bool
	Visible     bool
	InitScript  string
}

// DefaultOptions returns the main window's build options.
func DefaultOptions(url string) Options {
	return Options{
		Label:       MainLabel,
		Title:       DefaultTitle,
		URL:         url,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		MinWidth:    DefaultMinWidth,
		MinHeight:   DefaultMinHeight,
		Center:      true,
		Decorations: true,
		Fullscreen:  false,
		Visible:     true,
		InitScript:  LoadingOverlayScript,
	}
}

// Window is a live main window.
type Window interface {
	IsMinimized() (bool, error)
	Unminimize() error
	Show() error
	SetFocus() error
	Eval(script string) error
	Destroy() error
}

// Host owns the platform windowing layer.
type Host interface {
	// MainWindow returns the current main window, if one exists.
	MainWindow() (Window, bool)
	// Build creates and registers a new main window.
	Build(opts Options) (Window, error)
}
