// Package deeplink delivers external activation links (custom URL schemes)
// to the profile importer once the application is able to show them.
package deeplink

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/lifecycle"
	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/observability"
)

// Lightweight is the reduced-mode controller as seen by the scheduler.
type Lightweight interface {
	IsActive() bool
	RequestExit()
}

// WindowEnsurer shows the main window.
type WindowEnsurer interface {
	EnsureVisible(show bool) bool
}

// Delivery consumes a raw activation string.
type Delivery interface {
	Resolve(ctx context.Context, raw string) error
}

// Timings bounds each wait of a delivery. Zero values select defaults.
type Timings struct {
	PollInterval        time.Duration
	HandleAttempts      int
	LightweightAttempts int
	LightweightSettle   time.Duration
	ReadySettle         time.Duration
}

// Delivery timing defaults.
const (
	DefaultPollInterval        = 20 * time.Millisecond
	DefaultHandleAttempts      = 100
	DefaultLightweightAttempts = 150
	DefaultLightweightSettle   = 200 * time.Millisecond
	DefaultReadySettle         = 120 * time.Millisecond
)

func (t Timings) withDefaults() Timings {
	if t.PollInterval <= 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.HandleAttempts <= 0 {
		t.HandleAttempts = DefaultHandleAttempts
	}
	if t.LightweightAttempts <= 0 {
		t.LightweightAttempts = DefaultLightweightAttempts
	}
	if t.LightweightSettle <= 0 {
		t.LightweightSettle = DefaultLightweightSettle
	}
	if t.ReadySettle <= 0 {
		t.ReadySettle = DefaultReadySettle
	}
	return t
}

// SchedulerConfig wires a Scheduler.
type SchedulerConfig struct {
	Shared *lifecycle.Shared
	// HandleReady reports whether the application handle exists.
	HandleReady func() bool
	Lightweight Lightweight
	Window      WindowEnsurer
	Resolver    Delivery
	// ProfilesDir is created before each delivery.
	ProfilesDir string
	Metrics     *observability.MetricsManager
	Tracing     *observability.TracingManager
	Logger      *zap.Logger
	Timings     Timings
}

// Scheduler runs one background task per activation string.
type Scheduler struct {
	cfg     SchedulerConfig
	timings Timings
	logger  *zap.Logger
	// sleep waits out the settle delays.
	sleep func(time.Duration)

	tasks sync.WaitGroup
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Shared == nil {
		cfg.Shared = lifecycle.Global()
	}
	if cfg.HandleReady == nil {
		cfg.HandleReady = func() bool { return true }
	}
	return &Scheduler{
		cfg:     cfg,
		timings: cfg.Timings.withDefaults(),
		logger:  logs.For(cfg.Logger, logs.TypeDeepLink),
		sleep:   time.Sleep,
	}
}

// Schedule delivers raw in the background and returns immediately.
func (s *Scheduler) Schedule(raw string) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.deliver(raw)
	}()
}

// Wait blocks until all scheduled deliveries have finished.
func (s *Scheduler) Wait() {
	s.tasks.Wait()
}

func (s *Scheduler) deliver(raw string) {
	key := DedupKey(raw)
	if !s.cfg.Shared.Dedup.Admit(key) {
		s.logger.Info("Skipping duplicate deep link", zap.String("key", key))
		s.cfg.Metrics.RecordDeepLink(observability.DeepLinkDeduplicated)
		return
	}

	ctx, span := s.cfg.Tracing.TraceDeepLink(context.Background(), key)
	err := s.run(ctx, raw)
	observability.EndSpan(span, err)

	if err != nil {
		s.logger.Error("Failed to handle deep link", zap.String("param", raw), zap.Error(err))
		s.cfg.Metrics.RecordDeepLink(observability.DeepLinkFailed)
	} else {
		s.cfg.Metrics.RecordDeepLink(observability.DeepLinkDelivered)
	}

	if s.cfg.Shared.Readiness.IsReady() {
		s.sleep(s.timings.ReadySettle)
	}
}

func (s *Scheduler) run(ctx context.Context, raw string) error {
	t := s.timings

	if !lifecycle.WaitUntil(s.cfg.HandleReady, t.PollInterval, t.HandleAttempts) {
		s.logger.Info("Application handle not ready, delivering anyway")
	}

	if lw := s.cfg.Lightweight; lw != nil {
		wasActive := lw.IsActive()
		lw.RequestExit()
		left := lifecycle.WaitUntil(func() bool { return !lw.IsActive() }, t.PollInterval, t.LightweightAttempts)
		if !left {
			s.logger.Warn("Lightweight mode still active, continuing")
		}
		if wasActive {
			s.sleep(t.LightweightSettle)
		}
	}

	if s.cfg.Window != nil {
		_ = s.cfg.Window.EnsureVisible(true)
	}

	if dir := s.cfg.ProfilesDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Debug("Failed to create profiles directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	return s.cfg.Resolver.Resolve(ctx, raw)
}
