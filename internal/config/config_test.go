package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultVerge(t *testing.T) {
	v := DefaultVerge()

	assert.False(t, BoolValue(v.EnableSilentStart, true))
	assert.True(t, BoolValue(v.AutoCloseConnection, false))
	assert.Equal(t, uint64(10), Uint64Value(v.AutoLightWeightMinutes, 0))
	assert.Nil(t, v.VergeMixedPort)
}

func TestVergePatchOnlyTouchesSetFields(t *testing.T) {
	v := DefaultVerge()
	v.Patch(Verge{
		EnableRandomPort: BoolPtr(true),
		VergeMixedPort:   Uint16Ptr(7899),
	})

	assert.True(t, *v.EnableRandomPort)
	assert.Equal(t, uint16(7899), *v.VergeMixedPort)
	assert.True(t, *v.AutoCloseConnection, "untouched field must keep its value")
}

func TestVergeCloneIsIndependent(t *testing.T) {
	v := DefaultVerge()
	v.Hotkeys = []string{"open_or_close_dashboard,CmdOrControl+Shift+D"}

	c := v.Clone()
	*c.EnableSilentStart = true
	c.Hotkeys[0] = "changed"

	assert.False(t, *v.EnableSilentStart)
	assert.Equal(t, "open_or_close_dashboard,CmdOrControl+Shift+D", v.Hotkeys[0])
}

func TestClashAccessors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Clash
		port uint16
		mode string
	}{
		{"defaults", DefaultClash(), DefaultMixedPort, DefaultMode},
		{"int port", Clash{"mixed-port": 7890, "mode": "global"}, 7890, "global"},
		{"string port", Clash{"mixed-port": "8000"}, 8000, DefaultMode},
		{"out of range", Clash{"mixed-port": 70000}, DefaultMixedPort, DefaultMode},
		{"missing", Clash{}, DefaultMixedPort, DefaultMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.port, tt.cfg.MixedPort())
			assert.Equal(t, tt.mode, tt.cfg.Mode())
		})
	}
}

func TestStoreLoadCreatesDefaults(t *testing.T) {
	dirs := Dirs{Home: t.TempDir()}
	s := NewStore(dirs)

	require.NoError(t, s.Load())

	assert.FileExists(t, dirs.VergePath())
	assert.FileExists(t, dirs.ClashPath())
	assert.DirExists(t, dirs.ProfilesDir())
	assert.Equal(t, DefaultExternalController, s.Clash().ExternalController())
}

func TestStoreRoundTrip(t *testing.T) {
	dirs := Dirs{Home: t.TempDir()}
	s := NewStore(dirs)
	require.NoError(t, s.Load())

	s.PatchVerge(Verge{VergeMixedPort: Uint16Ptr(7777), EnableSilentStart: BoolPtr(true)})
	s.PatchClash(map[string]any{"mixed-port": 7777, "mode": "direct"})
	require.NoError(t, s.SaveVerge())
	require.NoError(t, s.SaveClash())

	reloaded := NewStore(dirs)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, uint16(7777), *reloaded.Verge().VergeMixedPort)
	assert.True(t, *reloaded.Verge().EnableSilentStart)
	assert.Equal(t, uint16(7777), reloaded.Clash().MixedPort())
	assert.Equal(t, "direct", reloaded.Clash().Mode())
}

func TestLoadClashKeepsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ClashFileName)
	doc := map[string]any{
		"mode":    "global",
		"proxies": []any{map[string]any{"name": "a", "type": "ss"}},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := LoadClash(path)
	require.NoError(t, err)

	assert.Equal(t, "global", cfg.Mode())
	assert.Contains(t, cfg, "proxies")
	assert.Equal(t, DefaultMixedPort, cfg.MixedPort())
}

func TestLoadClashRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ClashFileName)
	require.NoError(t, os.WriteFile(path, []byte("mode: [unterminated"), 0600))

	_, err := LoadClash(path)
	assert.Error(t, err)
}

func TestLoadVergeEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), VergeFileName)
	require.NoError(t, os.WriteFile(path, []byte("enable_silent_start: false\n"), 0600))
	t.Setenv("OUTCLASH_ENABLE_SILENT_START", "true")

	v, err := LoadVerge(path)
	require.NoError(t, err)
	assert.True(t, BoolValue(v.EnableSilentStart, false))
}

func TestDefaultDirsOverride(t *testing.T) {
	d, err := DefaultDirs("/tmp/outclash-test")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/outclash-test", d.Home)
	assert.Equal(t, filepath.Join("/tmp/outclash-test", "profiles"), d.ProfilesDir())
}
