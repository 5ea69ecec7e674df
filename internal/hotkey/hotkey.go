// Package hotkey parses the configured global shortcuts and dispatches them
// to application actions.
package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/logs"
)

// Actions a shortcut can be bound to.
const (
	ActionOpenOrCloseDashboard = "open_or_close_dashboard"
	ActionClashModeRule        = "clash_mode_rule"
	ActionClashModeGlobal      = "clash_mode_global"
	ActionClashModeDirect      = "clash_mode_direct"
	ActionToggleSystemProxy    = "toggle_system_proxy"
	ActionToggleTunMode        = "toggle_tun_mode"
	ActionEntryLightweightMode = "entry_lightweight_mode"
	ActionQuit                 = "quit"
)

// ErrUnknownAction is returned for a binding naming an unregistered action.
var ErrUnknownAction = errors.New("unknown hotkey action")

var modifierAliases = map[string]string{
	"cmd":              "Super",
	"command":          "Super",
	"super":            "Super",
	"meta":             "Super",
	"ctrl":             "Control",
	"control":          "Control",
	"cmdorctrl":        "CommandOrControl",
	"commandorcontrol": "CommandOrControl",
	"alt":              "Alt",
	"option":           "Alt",
	"shift":            "Shift",
}

// Shortcut is a normalised key combination.
type Shortcut struct {
	Modifiers []string
	Key       string
}

func (s Shortcut) String() string {
	return strings.Join(append(append([]string{}, s.Modifiers...), s.Key), "+")
}

// ParseShortcut parses "CommandOrControl+Shift+D" style accelerators.
func ParseShortcut(text string) (Shortcut, error) {
	parts := strings.Split(text, "+")
	var sc Shortcut
	seen := map[string]bool{}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Shortcut{}, fmt.Errorf("empty key in shortcut %q", text)
		}
		if i == len(parts)-1 {
			if _, isMod := modifierAliases[strings.ToLower(p)]; isMod {
				return Shortcut{}, fmt.Errorf("shortcut %q has no key", text)
			}
			sc.Key = strings.ToUpper(p)
			continue
		}
		mod, ok := modifierAliases[strings.ToLower(p)]
		if !ok {
			return Shortcut{}, fmt.Errorf("unknown modifier %q in shortcut %q", p, text)
		}
		if !seen[mod] {
			seen[mod] = true
			sc.Modifiers = append(sc.Modifiers, mod)
		}
	}
	sort.Strings(sc.Modifiers)
	return sc, nil
}

// Binding ties an action to a shortcut.
type Binding struct {
	Action   string
	Shortcut Shortcut
}

// ParseBinding parses an "action,shortcut" entry from the settings.
func ParseBinding(entry string) (Binding, error) {
	action, keys, ok := strings.Cut(entry, ",")
	if !ok {
		return Binding{}, fmt.Errorf("hotkey entry %q is not action,shortcut", entry)
	}
	sc, err := ParseShortcut(keys)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Action: strings.TrimSpace(action), Shortcut: sc}, nil
}

// Registrar installs shortcuts with the desktop environment.
type Registrar interface {
	Register(sc Shortcut, fn func()) error
	UnregisterAll() error
}

// Manager owns the action table and the active bindings.
type Manager struct {
	registrar Registrar
	logger    *zap.Logger

	mu       sync.Mutex
	actions  map[string]func()
	bindings []Binding
}

// NewManager creates a manager. A nil registrar keeps bindings in process
// only, reachable through Trigger.
func NewManager(registrar Registrar, logger *zap.Logger) *Manager {
	if registrar == nil {
		registrar = &localRegistrar{}
	}
	return &Manager{
		registrar: registrar,
		logger:    logs.For(logger, logs.TypeHotkey),
		actions:   map[string]func(){},
	}
}

// Handle sets the function run for action.
func (m *Manager) Handle(action string, fn func()) {
	m.mu.Lock()
	m.actions[action] = fn
	m.mu.Unlock()
}

// Init replaces all bindings with entries. Bad entries are logged and
// skipped; the joined error reports them. Disabled hotkeys clear everything.
func (m *Manager) Init(enabled bool, entries []string) error {
	if err := m.registrar.UnregisterAll(); err != nil {
		m.logger.Warn("Failed to unregister hotkeys", zap.Error(err))
	}
	m.mu.Lock()
	m.bindings = nil
	m.mu.Unlock()

	if !enabled {
		m.logger.Info("Global hotkeys disabled")
		return nil
	}

	var errs []error
	for _, entry := range entries {
		b, err := ParseBinding(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		action := b.Action
		if !m.hasAction(action) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownAction, action))
			continue
		}
		if err := m.registrar.Register(b.Shortcut, func() { m.Trigger(action) }); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", b.Shortcut, err))
			continue
		}
		m.mu.Lock()
		m.bindings = append(m.bindings, b)
		m.mu.Unlock()
		m.logger.Debug("Hotkey registered", zap.String("action", action), zap.Stringer("shortcut", b.Shortcut))
	}

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Warn("Some hotkeys were not registered", zap.Error(err))
	}
	return err
}

// Bindings returns the active bindings.
func (m *Manager) Bindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Binding(nil), m.bindings...)
}

// Trigger runs action. Unknown actions are reported.
func (m *Manager) Trigger(action string) error {
	m.mu.Lock()
	fn, ok := m.actions[action]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	m.logger.Info("Hotkey action", zap.String("action", action))
	fn()
	return nil
}

func (m *Manager) hasAction(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.actions[action]
	return ok
}

// localRegistrar tracks shortcuts without a desktop hook.
type localRegistrar struct {
	mu   sync.Mutex
	keys map[string]func()
}

func (r *localRegistrar) Register(sc Shortcut, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keys == nil {
		r.keys = map[string]func(){}
	}
	if _, dup := r.keys[sc.String()]; dup {
		return fmt.Errorf("shortcut %s already bound", sc)
	}
	r.keys[sc.String()] = fn
	return nil
}

func (r *localRegistrar) UnregisterAll() error {
	r.mu.Lock()
	r.keys = nil
	r.mu.Unlock()
	return nil
}
