package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outclash/outclash-go/internal/config"
	"github.com/outclash/outclash-go/internal/events"
)

func stepNames(r Report) []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestSetupRunsStepsInOrder(t *testing.T) {
	f := newFixture(t)
	_, ok := f.capture.FromArgs([]string{"outclash", "outclash://install-config?url=https%3A%2F%2Fexample.com%2Fsub"})
	require.True(t, ok)

	report := f.app.Setup(context.Background())

	assert.Equal(t, []string{
		StepVersion, StepScheme, StepStartupScript, StepPort, StepConfig, StepProfileCleanup,
		StepCore, StepServer, StepTrayInit, StepTrayCreate, StepSystemProxy, StepWindow,
		StepTimer, StepAutoLightweight, StepTrayUpdate, StepHotkeys, StepDeepLinkReplay,
	}, stepNames(report))
	assert.Empty(t, report.Failed())

	assert.Equal(t, []string{
		"scheme.register",
		"profiles.cleanup",
		"engine.init",
		"server.start",
		"tray.init",
		"tray.create",
		"sysproxy.update",
		"window.ensure",
		"timer.init",
		"tray.update",
		"hotkey.init",
		"deeplink.replay",
	}, f.tr.list())

	assert.Equal(t, []bool{true}, f.window.shows)
	assert.Equal(t, "v1.2.3", f.app.Version())
	assert.True(t, f.hotkeys.enabled)
	assert.Equal(t, []string{"outclash://install-config?url=https%3A%2F%2Fexample.com%2Fsub"}, f.links.scheduled)
	assert.Equal(t, 1, f.sysproxy.guards)
}

func TestSetupContinuesAfterFailures(t *testing.T) {
	f := newFixture(t)
	f.engine.initErr = errBoom
	f.tray.initErr = errBoom
	f.hotkeys.err = errBoom

	report := f.app.Setup(context.Background())

	var failed []string
	for _, s := range report.Failed() {
		failed = append(failed, s.Name)
		assert.ErrorIs(t, s.Err, errBoom)
	}
	assert.Equal(t, []string{StepCore, StepTrayInit, StepHotkeys}, failed)
	assert.Contains(t, f.tr.list(), "server.start")
	assert.Contains(t, f.tr.list(), "tray.create")
	assert.Contains(t, f.tr.list(), "deeplink.replay")
}

func TestSetupReportsStartupScriptFailure(t *testing.T) {
	f := newFixture(t)
	f.store.PatchVerge(config.Verge{StartupScript: config.StringPtr(filepath.Join(t.TempDir(), "missing.sh"))})
	require.NoError(t, f.store.SaveVerge())

	report := f.app.Setup(context.Background())

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, StepStartupScript, report.Failed()[0].Name)
	notices := f.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, events.StatusStartupScriptError, notices[0].status)
}

func TestSetupContainsPanics(t *testing.T) {
	f := newFixture(t)
	f.app.cfg.RegisterScheme = func(context.Context) error { panic("scheme handler exploded") }

	report := f.app.Setup(context.Background())

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, StepScheme, report.Failed()[0].Name)
	assert.Contains(t, report.Failed()[0].Err.Error(), "scheme handler exploded")
	assert.Contains(t, f.tr.list(), "hotkey.init")
}

func TestSetupSkipsMissingCollaborators(t *testing.T) {
	a := New(Config{Version: "1.0.0"})

	report := a.Setup(context.Background())

	assert.Empty(t, report.Failed())
	for _, s := range report.Steps {
		if s.Name == StepVersion {
			assert.False(t, s.Skipped)
			continue
		}
		assert.True(t, s.Skipped, s.Name)
	}
}

func TestSetupSilentStart(t *testing.T) {
	f := newFixture(t)
	f.store.PatchVerge(config.Verge{EnableSilentStart: config.BoolPtr(true)})
	require.NoError(t, f.store.SaveVerge())

	f.app.Setup(context.Background())

	assert.Equal(t, []bool{false}, f.window.shows)
}

func TestSetupSilentFlagOverridesSettings(t *testing.T) {
	f := newFixture(t)
	f.app.cfg.Silent = true

	f.app.Setup(context.Background())

	assert.Equal(t, []bool{false}, f.window.shows)
}

func TestSetupSchedulesAutoLightweight(t *testing.T) {
	f := newFixture(t)
	f.store.PatchVerge(config.Verge{
		EnableAutoLightWeightMode: config.BoolPtr(true),
		AutoLightWeightMinutes:    config.Uint64Ptr(5),
	})
	require.NoError(t, f.store.SaveVerge())

	f.app.Setup(context.Background())

	assert.Equal(t, 5*time.Minute, f.lw.after)
	assert.Contains(t, f.tr.list(), "lightweight.schedule")
}

func TestCaptureVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1.2.3", want: "v1.2.3"},
		{in: "v2.0.0-rc.1", want: "v2.0.0-rc.1"},
		{in: "v3.1", want: "v3.1.0"},
		{in: "not-a-version", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := New(Config{Version: tt.in})
			err := a.captureVersion(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.in, a.Version())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Version())
		})
	}
}

func TestResolvePortUsesConfiguredPort(t *testing.T) {
	f := newFixture(t)
	f.store.PatchVerge(config.Verge{VergeMixedPort: config.Uint16Ptr(7899)})

	require.NoError(t, f.app.resolvePort(context.Background()))

	assert.Equal(t, uint16(7899), f.app.Port())
	clash, err := config.LoadClash(f.store.Dirs().ClashPath())
	require.NoError(t, err)
	assert.Equal(t, uint16(7899), clash.MixedPort())
	verge, err := config.LoadVerge(f.store.Dirs().VergePath())
	require.NoError(t, err)
	require.NotNil(t, verge.VergeMixedPort)
	assert.Equal(t, uint16(7899), *verge.VergeMixedPort)
}

func TestResolvePortFallsBackToEnginePort(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.app.resolvePort(context.Background()))

	assert.Equal(t, config.DefaultMixedPort, f.app.Port())
}

func TestResolvePortRandom(t *testing.T) {
	f := newFixture(t)
	f.store.PatchVerge(config.Verge{EnableRandomPort: config.BoolPtr(true)})

	require.NoError(t, f.app.resolvePort(context.Background()))

	port := f.app.Port()
	assert.NotZero(t, port)
	assert.Equal(t, port, f.store.Clash().MixedPort())
	assert.Equal(t, port, *f.store.Verge().VergeMixedPort)
}

func TestFindUnusedPort(t *testing.T) {
	assert.NotZero(t, FindUnusedPort(0))
}
