package deeplink

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/outclash/outclash-go/internal/lifecycle"
)

type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(step string) {
	tr.mu.Lock()
	tr.steps = append(tr.steps, step)
	tr.mu.Unlock()
}

func (tr *trace) all() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

type traceLightweight struct {
	tr     *trace
	active atomic.Bool
	// stuck keeps the mode active after an exit request.
	stuck bool
	polls atomic.Int32
}

func (l *traceLightweight) IsActive() bool {
	l.polls.Add(1)
	return l.active.Load()
}

func (l *traceLightweight) RequestExit() {
	l.tr.add("lightweight-exit")
	if !l.stuck {
		l.active.Store(false)
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

type traceWindow struct{ tr *trace }

func (w *traceWindow) EnsureVisible(show bool) bool {
	w.tr.add("window")
	return show
}

type traceResolver struct {
	tr  *trace
	err error

	mu   sync.Mutex
	seen []string
}

func (r *traceResolver) Resolve(_ context.Context, raw string) error {
	r.tr.add("resolve")
	r.mu.Lock()
	r.seen = append(r.seen, raw)
	r.mu.Unlock()
	return r.err
}

func (r *traceResolver) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

type schedFixture struct {
	tr       *trace
	lw       *traceLightweight
	resolver *traceResolver
	sleeps   *sleepRecorder
	shared   *lifecycle.Shared
	dir      string
	sched    *Scheduler
}

func newSchedFixture(t *testing.T, handleReady func() bool) *schedFixture {
	t.Helper()
	tr := &trace{}
	f := &schedFixture{
		tr:       tr,
		lw:       &traceLightweight{tr: tr},
		resolver: &traceResolver{tr: tr},
		sleeps:   &sleepRecorder{},
		shared:   lifecycle.NewShared(lifecycle.Options{}),
		dir:      filepath.Join(t.TempDir(), "profiles"),
	}
	f.sched = NewScheduler(SchedulerConfig{
		Shared:      f.shared,
		HandleReady: handleReady,
		Lightweight: f.lw,
		Window:      &traceWindow{tr: tr},
		Resolver:    f.resolver,
		ProfilesDir: f.dir,
		Logger:      zaptest.NewLogger(t),
		Timings: Timings{
			PollInterval:        time.Millisecond,
			HandleAttempts:      3,
			LightweightAttempts: 3,
			LightweightSettle:   DefaultLightweightSettle,
			ReadySettle:         DefaultReadySettle,
		},
	})
	f.sched.sleep = f.sleeps.sleep
	return f
}

func TestScheduleDeliversInOrder(t *testing.T) {
	f := newSchedFixture(t, nil)
	f.lw.active.Store(true)

	f.sched.Schedule("outclash://x?url=https%3A%2F%2Fa.b")
	f.sched.Wait()

	assert.Equal(t, []string{"lightweight-exit", "window", "resolve"}, f.tr.all())
	assert.DirExists(t, f.dir)
	assert.False(t, f.lw.IsActive())
}

func TestScheduleWithoutHandleStillDelivers(t *testing.T) {
	var polls atomic.Int32
	f := newSchedFixture(t, func() bool {
		polls.Add(1)
		return false
	})

	f.sched.Schedule("outclash://x?url=a")
	f.sched.Wait()

	assert.Equal(t, int32(3), polls.Load())
	assert.Len(t, f.resolver.calls(), 1)
}

func TestScheduleSuppressesDuplicates(t *testing.T) {
	f := newSchedFixture(t, nil)

	f.sched.Schedule("outclash://x?url=https%3A%2F%2Fa.b&name=one")
	f.sched.Wait()
	f.sched.Schedule("clash://y?url=https%3A%2F%2Fa.b&name=two")
	f.sched.Wait()
	f.sched.Schedule("outclash://x?url=https%3A%2F%2Fother")
	f.sched.Wait()

	assert.Equal(t, []string{
		"outclash://x?url=https%3A%2F%2Fa.b&name=one",
		"outclash://x?url=https%3A%2F%2Fother",
	}, f.resolver.calls())
}

func TestScheduleDeliversAfterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	f := newSchedFixture(t, nil)
	f.shared.Dedup.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	f.sched.Schedule("outclash://x?url=a")
	f.sched.Wait()
	mu.Lock()
	now = now.Add(lifecycle.DefaultDedupWindow)
	mu.Unlock()
	f.sched.Schedule("outclash://x?url=a")
	f.sched.Wait()

	assert.Len(t, f.resolver.calls(), 2)
}

func TestScheduleConcurrentDuplicatesDeliverOnce(t *testing.T) {
	f := newSchedFixture(t, nil)

	for i := 0; i < 10; i++ {
		f.sched.Schedule("outclash://x?url=same")
	}
	f.sched.Wait()

	assert.Len(t, f.resolver.calls(), 1)
}

func TestScheduleResolverErrorIsContained(t *testing.T) {
	f := newSchedFixture(t, nil)
	f.resolver.err = errors.New("boom")
	f.shared.Readiness.Transition(lifecycle.StageReady)

	f.sched.Schedule("outclash://x?url=a")
	f.sched.Wait()

	assert.Len(t, f.resolver.calls(), 1)
}

func TestScheduleSettleDelays(t *testing.T) {
	tests := []struct {
		name   string
		active bool
		ready  bool
		want   []time.Duration
	}{
		{name: "inactive and not ready", want: nil},
		{name: "lightweight active", active: true, want: []time.Duration{DefaultLightweightSettle}},
		{name: "ui ready", ready: true, want: []time.Duration{DefaultReadySettle}},
		{name: "active and ready", active: true, ready: true, want: []time.Duration{DefaultLightweightSettle, DefaultReadySettle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSchedFixture(t, nil)
			f.lw.active.Store(tt.active)
			if tt.ready {
				f.shared.Readiness.Transition(lifecycle.StageReady)
			}

			f.sched.Schedule("outclash://x?url=a")
			f.sched.Wait()

			assert.Equal(t, tt.want, f.sleeps.all())
			assert.Len(t, f.resolver.calls(), 1)
		})
	}
}

func TestScheduleDeliversWhenLightweightNeverExits(t *testing.T) {
	f := newSchedFixture(t, nil)
	f.lw.active.Store(true)
	f.lw.stuck = true

	f.sched.Schedule("outclash://x?url=a")
	f.sched.Wait()

	// one initial read plus the bounded poll
	assert.Equal(t, int32(1+3), f.lw.polls.Load())
	assert.True(t, f.lw.active.Load())
	assert.Equal(t, []string{"lightweight-exit", "window", "resolve"}, f.tr.all())
	assert.Equal(t, []time.Duration{DefaultLightweightSettle}, f.sleeps.all())
}

func TestCaptureAndReplay(t *testing.T) {
	f := newSchedFixture(t, nil)
	var c Capture

	link, ok := c.FromArgs([]string{"--silent", "koala-clash://install-config?url=x", "outclash://other"})
	require.True(t, ok)
	assert.Equal(t, "koala-clash://install-config?url=x", link)

	assert.True(t, f.sched.Replay(&c))
	assert.False(t, f.sched.Replay(&c))
	f.sched.Wait()

	assert.Equal(t, []string{"koala-clash://install-config?url=x"}, f.resolver.calls())
}

func TestCaptureIgnoresOtherArgs(t *testing.T) {
	var c Capture
	_, ok := c.FromArgs([]string{"--config-dir", "/tmp", "https://example.com"})
	assert.False(t, ok)
	_, ok = c.Take()
	assert.False(t, ok)
}
