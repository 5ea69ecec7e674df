package tray

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/engine/ipc"
)

// Controller is what the tray menu drives.
type Controller interface {
	ShowWindow()
	Mode() string
	ChangeMode(mode string)
	SystemProxyEnabled() bool
	ToggleSystemProxy()
	TunEnabled() bool
	ToggleTunMode()
	EnterLightweight()
	RestartCore()
	RestartApp()
	CopyDiagnostics()
	OpenConfigDir()
	Quit()
}

// TrafficSource reports the engine's cumulative traffic counters.
type TrafficSource interface {
	GetConnections(ctx context.Context) (*ipc.Connections, error)
}

// Engine modes shown in the menu.
var Modes = []string{"rule", "global", "direct"}

// Rate is a traffic rate in bytes per second.
type Rate struct {
	Up   int64
	Down int64
}

// trafficMonitor polls cumulative counters and derives rates.
type trafficMonitor struct {
	source   TrafficSource
	interval time.Duration
	logger   *zap.SugaredLogger
	onRate   func(Rate)

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	rate     Rate
	lastUp   int64
	lastDown int64
	lastAt   time.Time
}

func newTrafficMonitor(source TrafficSource, interval time.Duration, logger *zap.SugaredLogger, onRate func(Rate)) *trafficMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &trafficMonitor{source: source, interval: interval, logger: logger, onRate: onRate}
}

func (t *trafficMonitor) start() {
	if t.source == nil {
		return
	}
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	t.lastAt = time.Time{}
	t.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.poll(ctx)
			}
		}
	}()
}

func (t *trafficMonitor) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, t.interval)
	defer cancel()
	conns, err := t.source.GetConnections(pollCtx)
	if err != nil {
		t.logger.Debugw("Traffic poll failed", "error", err)
		return
	}
	if r, ok := t.observe(conns.UploadTotal, conns.DownloadTotal, time.Now()); ok && t.onRate != nil {
		t.onRate(r)
	}
}

// observe records a counter sample. The first sample only sets a baseline.
func (t *trafficMonitor) observe(up, down int64, at time.Time) (Rate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevAt := t.lastAt
	prevUp, prevDown := t.lastUp, t.lastDown
	t.lastUp, t.lastDown, t.lastAt = up, down, at
	if prevAt.IsZero() {
		return Rate{}, false
	}
	secs := at.Sub(prevAt).Seconds()
	if secs <= 0 {
		return t.rate, true
	}
	// counters reset when the engine restarts
	if up < prevUp || down < prevDown {
		t.rate = Rate{}
		return t.rate, true
	}
	t.rate = Rate{
		Up:   int64(float64(up-prevUp) / secs),
		Down: int64(float64(down-prevDown) / secs),
	}
	return t.rate, true
}

func (t *trafficMonitor) stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.rate = Rate{}
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *trafficMonitor) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *trafficMonitor) current() Rate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func tooltip(version, mode string, sysproxy, tun bool, rate *Rate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OutClash %s\n", version)
	fmt.Fprintf(&b, "Mode: %s\n", mode)
	fmt.Fprintf(&b, "System proxy: %s\n", onOff(sysproxy))
	fmt.Fprintf(&b, "TUN: %s", onOff(tun))
	if rate != nil {
		fmt.Fprintf(&b, "\n↑ %s/s  ↓ %s/s", formatBytes(rate.Up), formatBytes(rate.Down))
	}
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func modeTitle(mode string) string {
	if mode == "" {
		return mode
	}
	return strings.ToUpper(mode[:1]) + mode[1:]
}
