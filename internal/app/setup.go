package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/observability"
)

// SlowStartupThreshold is the total startup time above which a warning is logged.
const SlowStartupThreshold = 10 * time.Second

// Startup step names, in execution order.
const (
	StepVersion         = "version"
	StepScheme          = "init_scheme"
	StepStartupScript   = "startup_script"
	StepPort            = "random_port"
	StepConfig          = "init_config"
	StepProfileCleanup  = "profiles_cleanup"
	StepCore            = "core_init"
	StepServer          = "embed_server"
	StepTrayInit        = "tray_init"
	StepTrayCreate      = "tray_create"
	StepSystemProxy     = "sysproxy"
	StepWindow          = "window"
	StepTimer           = "timer_init"
	StepAutoLightweight = "auto_lightweight"
	StepTrayUpdate      = "tray_update"
	StepHotkeys         = "hotkey_init"
	StepDeepLinkReplay  = "deeplink_replay"
)

// errSkipped marks a step whose collaborator is not configured.
var errSkipped = errors.New("skipped")

// StepResult is the outcome of one startup step.
type StepResult struct {
	Name     string
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Report summarises a startup run.
type Report struct {
	Steps   []StepResult
	Elapsed time.Duration
}

// Failed returns the steps that returned an error.
func (r Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Setup runs the startup sequence. Every step runs regardless of earlier
// failures; failures are logged and collected in the report.
func (a *App) Setup(ctx context.Context) Report {
	start := time.Now()
	a.logger.Info("Starting application setup", zap.String("version", a.cfg.Version))

	ctx, span := a.tracing.StartSpan(ctx, "startup")
	defer span.End()

	var report Report
	for _, s := range a.steps() {
		report.Steps = append(report.Steps, a.runStep(ctx, s))
	}

	report.Elapsed = time.Since(start)
	a.metrics.SetStartupDuration(report.Elapsed)
	if report.Elapsed > SlowStartupThreshold {
		a.logger.Warn("Application setup took too long", zap.Duration("elapsed", report.Elapsed))
	} else {
		a.logger.Info("Application setup completed",
			zap.Duration("elapsed", report.Elapsed),
			zap.Int("failed_steps", len(report.Failed())))
	}
	return report
}

func (a *App) steps() []step {
	return []step{
		{StepVersion, a.captureVersion},
		{StepScheme, a.initScheme},
		{StepStartupScript, a.runStartupScript},
		{StepPort, a.resolvePort},
		{StepConfig, a.initConfig},
		{StepProfileCleanup, a.cleanupProfiles},
		{StepCore, a.initCore},
		{StepServer, a.startServer},
		{StepTrayInit, a.initTray},
		{StepTrayCreate, a.createTray},
		{StepSystemProxy, a.updateSystemProxy},
		{StepWindow, a.createWindow},
		{StepTimer, a.initTimers},
		{StepAutoLightweight, a.autoLightweight},
		{StepTrayUpdate, a.refreshTray},
		{StepHotkeys, a.initHotkeys},
		{StepDeepLinkReplay, a.replayDeepLink},
	}
}

func (a *App) runStep(ctx context.Context, s step) (res StepResult) {
	res.Name = s.name
	start := time.Now()

	stepCtx, span := a.tracing.TraceStartupStep(ctx, s.name)
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("step %s panicked: %v", s.name, r)
		}
		res.Duration = time.Since(start)
		if errors.Is(res.Err, errSkipped) {
			res.Err, res.Skipped = nil, true
		}
		observability.EndSpan(span, res.Err)
		a.metrics.RecordStartupStep(s.name, res.Err, res.Duration)

		switch {
		case res.Err != nil:
			a.logger.Error("Startup step failed", zap.String("step", s.name), zap.Error(res.Err))
		case res.Skipped:
			a.logger.Debug("Startup step skipped", zap.String("step", s.name))
		default:
			a.logger.Debug("Startup step finished", zap.String("step", s.name), zap.Duration("took", res.Duration))
		}
	}()

	res.Err = s.run(stepCtx)
	return res
}

func (a *App) captureVersion(context.Context) error {
	v := strings.TrimSpace(a.cfg.Version)
	if v == "" {
		return errSkipped
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid version %q", a.cfg.Version)
	}
	a.mu.Lock()
	a.version = semver.Canonical(v)
	a.mu.Unlock()
	a.logger.Info("Version captured", zap.String("version", a.Version()))
	return nil
}

func (a *App) initScheme(ctx context.Context) error {
	if a.cfg.RegisterScheme == nil {
		return errSkipped
	}
	return a.cfg.RegisterScheme(ctx)
}

func (a *App) runStartupScript(ctx context.Context) error {
	if a.cfg.Store == nil {
		return errSkipped
	}
	script := config.StringValue(a.cfg.Store.Verge().StartupScript)
	if script == "" {
		return errSkipped
	}
	if err := RunStartupScript(ctx, script, a.logger); err != nil {
		a.notice(events.StatusStartupScriptError, err.Error())
		return err
	}
	return nil
}

func (a *App) initConfig(context.Context) error {
	if a.cfg.Store == nil {
		return errSkipped
	}
	if err := a.cfg.Store.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func (a *App) cleanupProfiles(context.Context) error {
	if a.cfg.Profiles == nil {
		return errSkipped
	}
	removed, err := a.cfg.Profiles.AutoCleanup()
	if err != nil {
		return fmt.Errorf("failed to clean up profiles: %w", err)
	}
	if len(removed) > 0 {
		a.logger.Info("Removed unreferenced profile files", zap.Strings("files", removed))
	}
	return nil
}

func (a *App) initCore(ctx context.Context) error {
	if a.cfg.Engine == nil {
		return errSkipped
	}
	if err := a.cfg.Engine.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	return nil
}

func (a *App) startServer(ctx context.Context) error {
	srv := a.currentServer()
	if srv == nil {
		return errSkipped
	}
	return srv.Start(ctx)
}

func (a *App) initTray(context.Context) error {
	t := a.currentTray()
	if t == nil {
		return errSkipped
	}
	return t.Init()
}

func (a *App) createTray(context.Context) error {
	t := a.currentTray()
	if t == nil {
		return errSkipped
	}
	return t.Create()
}

func (a *App) updateSystemProxy(ctx context.Context) error {
	if a.cfg.SystemProxy == nil || a.cfg.Store == nil {
		return errSkipped
	}
	verge := a.cfg.Store.Verge()
	err := a.cfg.SystemProxy.Update(ctx, verge, a.Port())
	a.cfg.SystemProxy.UpdateGuard(verge)
	return err
}

func (a *App) silentStart() bool {
	if a.cfg.Silent {
		return true
	}
	if a.cfg.Store == nil {
		return false
	}
	return config.BoolValue(a.cfg.Store.Verge().EnableSilentStart, false)
}

func (a *App) createWindow(context.Context) error {
	if a.cfg.Window == nil {
		return errSkipped
	}
	show := !a.silentStart()
	if !a.cfg.Window.EnsureVisible(show) && show {
		a.logger.Info("Main window was not created at startup")
	}
	return nil
}

func (a *App) initTimers(context.Context) error {
	if a.cfg.Timers == nil {
		return errSkipped
	}
	a.cfg.Timers.Init()
	return nil
}

func (a *App) autoLightweight(context.Context) error {
	if a.cfg.Lightweight == nil || a.cfg.Store == nil {
		return errSkipped
	}
	verge := a.cfg.Store.Verge()
	if !config.BoolValue(verge.EnableAutoLightWeightMode, false) {
		return errSkipped
	}
	after := time.Duration(config.Uint64Value(verge.AutoLightWeightMinutes, 10)) * time.Minute
	var visible func() bool
	if a.cfg.Window != nil {
		visible = a.cfg.Window.IsVisible
	}
	a.cfg.Lightweight.ScheduleAutoEnter(after, visible)
	return nil
}

func (a *App) refreshTray(context.Context) error {
	t := a.currentTray()
	if t == nil {
		return errSkipped
	}
	t.Update()
	return nil
}

func (a *App) initHotkeys(context.Context) error {
	if a.cfg.Hotkeys == nil || a.cfg.Store == nil {
		return errSkipped
	}
	verge := a.cfg.Store.Verge()
	return a.cfg.Hotkeys.Init(config.BoolValue(verge.EnableGlobalHotkey, true), verge.Hotkeys)
}

func (a *App) replayDeepLink(context.Context) error {
	if a.cfg.DeepLinks == nil || a.cfg.Capture == nil {
		return errSkipped
	}
	if a.cfg.DeepLinks.Replay(a.cfg.Capture) {
		a.logger.Info("Replaying deep link from launch arguments")
	}
	return nil
}
