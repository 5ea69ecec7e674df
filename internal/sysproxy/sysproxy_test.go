package sysproxy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/outclash/outclash-go/internal/config"
)

type fakeApplier struct {
	mu      sync.Mutex
	current Settings
	applies int
	resets  int
}

func (f *fakeApplier) Apply(_ context.Context, s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
	f.applies++
	return nil
}

func (f *fakeApplier) Reset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = Settings{}
	f.resets++
	return nil
}

func (f *fakeApplier) Current(_ context.Context) (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeApplier) set(s Settings) {
	f.mu.Lock()
	f.current = s
	f.mu.Unlock()
}

func (f *fakeApplier) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applies, f.resets
}

func TestUpdateAppliesOrResets(t *testing.T) {
	fa := &fakeApplier{}
	m := NewManagerWith(fa, zaptest.NewLogger(t))
	verge := config.DefaultVerge()

	verge.EnableSystemProxy = config.BoolPtr(true)
	require.NoError(t, m.Update(context.Background(), verge, 7897))
	cur, _ := fa.Current(context.Background())
	assert.True(t, cur.Enable)
	assert.Equal(t, "127.0.0.1:7897", cur.Address())
	assert.Equal(t, DefaultBypass, cur.Bypass)

	verge.EnableSystemProxy = config.BoolPtr(false)
	require.NoError(t, m.Update(context.Background(), verge, 7897))
	applies, resets := fa.counts()
	assert.Equal(t, 1, applies)
	assert.Equal(t, 1, resets)
}

func TestSettingsForCustomBypass(t *testing.T) {
	verge := config.DefaultVerge()
	verge.SystemProxyBypass = config.StringPtr("a.com; b.com,\n c.com")

	s := SettingsFor(verge, 1080)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, s.BypassList())
	assert.False(t, s.Enable)
}

func TestGuardRestoresExternalChange(t *testing.T) {
	fa := &fakeApplier{}
	m := NewManagerWith(fa, zaptest.NewLogger(t))
	verge := config.DefaultVerge()
	verge.EnableSystemProxy = config.BoolPtr(true)
	require.NoError(t, m.Update(context.Background(), verge, 7897))

	m.StartGuard(5 * time.Millisecond)
	defer m.StopGuard()
	fa.set(Settings{Enable: true, Host: "10.0.0.1", Port: 8080})

	require.Eventually(t, func() bool {
		cur, _ := fa.Current(context.Background())
		return cur.Address() == "127.0.0.1:7897"
	}, time.Second, 5*time.Millisecond)
}

func TestUpdateGuardFollowsSettings(t *testing.T) {
	m := NewManagerWith(&fakeApplier{}, zaptest.NewLogger(t))
	verge := config.DefaultVerge()
	verge.EnableSystemProxy = config.BoolPtr(true)
	verge.EnableProxyGuard = config.BoolPtr(true)

	m.UpdateGuard(verge)
	assert.True(t, m.GuardRunning())

	verge.EnableProxyGuard = config.BoolPtr(false)
	m.UpdateGuard(verge)
	assert.False(t, m.GuardRunning())
}

func TestResetStopsGuard(t *testing.T) {
	fa := &fakeApplier{}
	m := NewManagerWith(fa, zaptest.NewLogger(t))
	m.StartGuard(time.Hour)

	require.NoError(t, m.Reset(context.Background()))
	assert.False(t, m.GuardRunning())
	_, resets := fa.counts()
	assert.Equal(t, 1, resets)
}

func TestSettingsMatches(t *testing.T) {
	a := Settings{Enable: true, Host: "127.0.0.1", Port: 1}
	assert.True(t, a.Matches(Settings{Enable: true, Host: "127.0.0.1", Port: 1, Bypass: "x"}))
	assert.False(t, a.Matches(Settings{Enable: true, Host: "127.0.0.1", Port: 2}))
	assert.False(t, a.Matches(Settings{}))
	assert.True(t, Settings{}.Matches(Settings{Host: "ignored"}))
}
