package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/app"
	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/deeplink"
	"github.com/outclash/outclash-go/internal/engine"
	"github.com/outclash/outclash-go/internal/engine/ipc"
	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/hotkey"
	"github.com/outclash/outclash-go/internal/lifecycle"
	"github.com/outclash/outclash-go/internal/lightweight"
	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/observability"
	"github.com/outclash/outclash-go/internal/profiles"
	"github.com/outclash/outclash-go/internal/scheme"
	"github.com/outclash/outclash-go/internal/secret"
	"github.com/outclash/outclash-go/internal/server"
	"github.com/outclash/outclash-go/internal/storage"
	"github.com/outclash/outclash-go/internal/sysproxy"
	"github.com/outclash/outclash-go/internal/timer"
	"github.com/outclash/outclash-go/internal/tray"
	"github.com/outclash/outclash-go/internal/updatecheck"
	"github.com/outclash/outclash-go/internal/window"
)

var version = "v0.1.0" // This will be injected by -ldflags during build

const (
	appTitle            = "OutClash"
	forwardTimeout      = 2 * time.Second
	shutdownTimeout     = 10 * time.Second
	lightweightSettle   = 300 * time.Millisecond
	subscriptionTimeout = 30 * time.Second
)

func main() {
	v := viper.New()
	rootCmd := &cobra.Command{
		Use:     "outclash [deep-link]",
		Short:   "OutClash - desktop proxy manager",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, args)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", "", "Application home directory (default: OS config dir)")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.Bool("log-to-file", true, "Enable logging to file in standard OS location")
	flags.String("log-dir", "", "Custom log directory path (overrides standard OS location)")
	flags.String("core-path", "", "Path to the proxy engine binary")
	flags.Bool("silent", false, "Start without showing the main window")
	flags.Int("embed-port", server.DefaultPort, "Port of the embedded local server")
	flags.String("tracing-endpoint", "", "OTLP HTTP endpoint; enables tracing when set")

	bindFlags(v, flags)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(ExitCodeGeneralError)
	}
}

// bindFlags lets OUTCLASH_* environment variables stand in for flags.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix("OUTCLASH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
}

func run(v *viper.Viper, args []string) error {
	dirs, err := config.DefaultDirs(v.GetString("config-dir"))
	if err != nil {
		return &exitError{code: ExitCodeConfigError, err: err}
	}
	store := config.NewStore(dirs)
	if err := store.Load(); err != nil {
		return &exitError{code: ExitCodeConfigError, err: fmt.Errorf("failed to load configuration: %w", err)}
	}

	logger, err := setupLogger(v, store.Verge())
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	capture := &deeplink.Capture{}
	link, _ := capture.FromArgs(args)

	embedAddr := fmt.Sprintf("127.0.0.1:%d", v.GetInt("embed-port"))
	if client := newInstanceClient(embedAddr, forwardTimeout); client.alive() {
		if err := client.forward(link); err != nil {
			return err
		}
		logger.Info("Forwarded activation to running instance", zap.String("addr", embedAddr), zap.Bool("deep_link", link != ""))
		return nil
	}

	logger.Info("Starting outclash",
		zap.String("version", version),
		zap.String("home", dirs.Home),
		zap.String("log_level", v.GetString("log-level")))

	obsCfg := observability.DefaultConfig(config.AppName, version)
	if endpoint := v.GetString("tracing-endpoint"); endpoint != "" {
		obsCfg.Tracing.Enabled = true
		obsCfg.Tracing.OTLPEndpoint = endpoint
	}
	obs, err := observability.NewManager(sugar, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	shared := lifecycle.Global()
	handle := app.NewHandle()

	emitter := events.NewEmitter(events.NewBus(), shared.Readiness, logger)
	emitter.AddSink(events.NewToastSink(appTitle, logger))
	emitter.AddSink(obs.Metrics())

	var history *storage.Manager
	if h, err := storage.NewManager(dirs.DatabasePath(), sugar); err != nil {
		logger.Warn("Import history unavailable", zap.Error(err))
	} else {
		history = h
		defer history.Close()
	}

	controllerSecret, err := secret.NewStore(logger).ControllerSecret()
	if err != nil {
		logger.Warn("Failed to read controller secret", zap.Error(err))
	}
	endpoint := ipc.DefaultEndpoint(dirs.Home, currentUsername())
	supervisor := engine.NewSupervisor(engine.Config{
		Binary:     v.GetString("core-path"),
		HomeDir:    dirs.Home,
		ConfigPath: dirs.ClashPath(),
		Secret:     controllerSecret,
		Endpoint:   endpoint,
	}, logs.For(logger, logs.TypeCore).Sugar())
	ipcClient, err := ipc.NewClient(endpoint, controllerSecret, ipc.DefaultOptions(), sugar)
	if err != nil {
		return fmt.Errorf("failed to create engine client: %w", err)
	}
	obs.Health().AddHealthChecker(supervisor)
	obs.Health().AddHealthChecker(ipcClient)

	profileStore := profiles.NewStore(dirs.ProfilesPath(), dirs.ProfilesDir(), profiles.NewFetcher(subscriptionTimeout), logger)
	if err := profileStore.Load(); err != nil {
		logger.Warn("Failed to load profiles", zap.Error(err))
	}

	lw := lightweight.NewController(logger, lightweightSettle)
	windows := window.NewManager(window.Config{
		Host:               window.NewBrowserHost(emitter, logger),
		Shared:             shared,
		Lightweight:        lw,
		Notifier:           emitter,
		OnStartupCompleted: handle.MarkStartupCompleted,
		URL:                "http://" + embedAddr + "/",
		Metrics:            obs.Metrics(),
		Logger:             logger,
	})
	lw.SetHooks(lightweight.Hooks{OnEnter: windows.Destroy})

	var importHistory deeplink.History
	var imports app.History
	if history != nil {
		importHistory, imports = history, history
	}
	scheduler := deeplink.NewScheduler(deeplink.SchedulerConfig{
		Shared:      shared,
		HandleReady: handle.Ready,
		Lightweight: lw,
		Window:      windows,
		Resolver:    deeplink.NewResolver(profileStore, emitter, importHistory, logger),
		ProfilesDir: dirs.ProfilesDir(),
		Metrics:     obs.Metrics(),
		Tracing:     obs.Tracing(),
		Logger:      logger,
	})

	timers := timer.NewManager(profileStore, func(string) { emitter.RefreshProfiles() }, logger)
	hotkeys := hotkey.NewManager(hotkey.NewSystemRegistrar(logger), logger)
	updates := updatecheck.New(version, updatecheck.NewReleaseFeed("", "", logger), func(info updatecheck.Info) {
		emitter.Notice(events.StatusUpdateAvailable, info.LatestVersion)
	}, logger)

	application := app.New(app.Config{
		Version:       version,
		Silent:        v.GetBool("silent"),
		Store:         store,
		Shared:        shared,
		Handle:        handle,
		Engine:        supervisor,
		IPC:           ipcClient,
		Profiles:      profileStore,
		History:       imports,
		SystemProxy:   sysproxy.NewManager(logger),
		Window:        windows,
		Lightweight:   lw,
		DeepLinks:     scheduler,
		Capture:       capture,
		Timers:        timers,
		Hotkeys:       hotkeys,
		Notifier:      emitter,
		Updates:       updates,
		Observability: obs,
		Logger:        logger,
		RegisterScheme: func(ctx context.Context) error {
			return scheme.Register(ctx, logger)
		},
	})
	application.BindHotkeys(hotkeys)

	srv := server.New(server.Config{
		Addr:          embedAddr,
		Controller:    application,
		Readiness:     shared.Readiness,
		Emitter:       emitter,
		Observability: obs,
		Logger:        sugar,
	})
	trayApp := tray.New(application.TrayController(), ipcClient, version, logs.For(logger, logs.TypeTray).Sugar())
	application.AttachSurfaces(srv, trayApp)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	handle.Attach(cancel)
	go updates.Start(ctx)

	go func() {
		report := application.Setup(ctx)
		for _, step := range report.Failed() {
			if step.Name == app.StepServer {
				logger.Error("Embedded server unavailable, activations from other instances will be lost", zap.Error(step.Err))
			}
		}
	}()

	// This is a blocking call that runs the tray event loop
	if err := trayApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Tray application error", zap.Error(err))
	}
	cancel()

	shutdown(application, srv, timers, scheduler, obs, logger)

	if handle.RelaunchRequested() {
		if code := application.Relaunch(); code != ExitCodeSuccess {
			return &exitError{code: code, err: errors.New("failed to relaunch")}
		}
	}
	return nil
}

func shutdown(a *app.App, srv *server.Server, timers *timer.Manager, scheduler *deeplink.Scheduler, obs *observability.Manager, logger *zap.Logger) {
	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	timers.Stop()
	if err := a.Reset(ctx); err != nil {
		logger.Warn("Cleanup finished with errors", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Embedded server shutdown failed", zap.Error(err))
	}
	scheduler.Wait()
	a.Wait()
	if err := obs.Close(ctx); err != nil {
		logger.Debug("Observability shutdown failed", zap.Error(err))
	}
}

func setupLogger(v *viper.Viper, verge *config.Verge) (*zap.Logger, error) {
	cfg := logs.DefaultLogConfig()
	if verge.Logging != nil {
		*cfg = *verge.Logging
	}
	cfg.Level = v.GetString("log-level")
	cfg.EnableFile = v.GetBool("log-to-file")
	cfg.EnableConsole = true
	if dir := v.GetString("log-dir"); dir != "" {
		cfg.LogDir = dir
	}
	if cfg.Filename == "" {
		cfg.Filename = "outclash.log"
	}
	return logs.SetupLogger(cfg)
}

func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
