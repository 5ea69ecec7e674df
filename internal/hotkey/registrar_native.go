//go:build !nogui && !headless && (darwin || windows)

package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	nativehk "golang.design/x/hotkey"

	"github.com/outclash/outclash-go/internal/logs"
)

var nativeKeys = map[string]nativehk.Key{
	"A": nativehk.KeyA, "B": nativehk.KeyB, "C": nativehk.KeyC, "D": nativehk.KeyD,
	"E": nativehk.KeyE, "F": nativehk.KeyF, "G": nativehk.KeyG, "H": nativehk.KeyH,
	"I": nativehk.KeyI, "J": nativehk.KeyJ, "K": nativehk.KeyK, "L": nativehk.KeyL,
	"M": nativehk.KeyM, "N": nativehk.KeyN, "O": nativehk.KeyO, "P": nativehk.KeyP,
	"Q": nativehk.KeyQ, "R": nativehk.KeyR, "S": nativehk.KeyS, "T": nativehk.KeyT,
	"U": nativehk.KeyU, "V": nativehk.KeyV, "W": nativehk.KeyW, "X": nativehk.KeyX,
	"Y": nativehk.KeyY, "Z": nativehk.KeyZ,

	"0": nativehk.Key0, "1": nativehk.Key1, "2": nativehk.Key2, "3": nativehk.Key3,
	"4": nativehk.Key4, "5": nativehk.Key5, "6": nativehk.Key6, "7": nativehk.Key7,
	"8": nativehk.Key8, "9": nativehk.Key9,

	"F1": nativehk.KeyF1, "F2": nativehk.KeyF2, "F3": nativehk.KeyF3, "F4": nativehk.KeyF4,
	"F5": nativehk.KeyF5, "F6": nativehk.KeyF6, "F7": nativehk.KeyF7, "F8": nativehk.KeyF8,
	"F9": nativehk.KeyF9, "F10": nativehk.KeyF10, "F11": nativehk.KeyF11, "F12": nativehk.KeyF12,

	"SPACE":  nativehk.KeySpace,
	"ENTER":  nativehk.KeyReturn,
	"RETURN": nativehk.KeyReturn,
	"ESCAPE": nativehk.KeyEscape,
	"ESC":    nativehk.KeyEscape,
	"DELETE": nativehk.KeyDelete,
	"TAB":    nativehk.KeyTab,
	"LEFT":   nativehk.KeyLeft,
	"RIGHT":  nativehk.KeyRight,
	"UP":     nativehk.KeyUp,
	"DOWN":   nativehk.KeyDown,
}

// toNative maps a parsed shortcut onto the desktop key codes.
func toNative(sc Shortcut) ([]nativehk.Modifier, nativehk.Key, error) {
	key, ok := nativeKeys[sc.Key]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported key %q", sc.Key)
	}
	mods := make([]nativehk.Modifier, 0, len(sc.Modifiers))
	for _, name := range sc.Modifiers {
		mod, ok := nativeModifiers[name]
		if !ok {
			return nil, 0, fmt.Errorf("unsupported modifier %q", name)
		}
		mods = append(mods, mod)
	}
	return mods, key, nil
}

type nativeBinding struct {
	hk   *nativehk.Hotkey
	done chan struct{}
}

// systemRegistrar installs shortcuts with the operating system.
type systemRegistrar struct {
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*nativeBinding
}

// NewSystemRegistrar returns a registrar backed by OS-wide hotkeys.
func NewSystemRegistrar(logger *zap.Logger) Registrar {
	return &systemRegistrar{
		logger: logs.For(logger, logs.TypeHotkey),
		active: map[string]*nativeBinding{},
	}
}

func (r *systemRegistrar) Register(sc Shortcut, fn func()) error {
	mods, key, err := toNative(sc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.active[sc.String()]; dup {
		return fmt.Errorf("shortcut %s already bound", sc)
	}

	hk := nativehk.New(mods, key)
	if err := hk.Register(); err != nil {
		return err
	}
	b := &nativeBinding{hk: hk, done: make(chan struct{})}
	r.active[sc.String()] = b

	go func() {
		for {
			select {
			case <-b.done:
				return
			case _, ok := <-hk.Keydown():
				if !ok {
					return
				}
				fn()
			}
		}
	}()
	return nil
}

func (r *systemRegistrar) UnregisterAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, b := range r.active {
		close(b.done)
		if err := b.hk.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", name, err))
		}
	}
	r.active = map[string]*nativeBinding{}
	if err := errors.Join(errs...); err != nil {
		r.logger.Debug("Hotkey unregister errors", zap.Error(err))
		return err
	}
	return nil
}
