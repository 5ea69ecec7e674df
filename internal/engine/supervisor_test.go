//go:build !windows

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSupervisorLifecycle(t *testing.T) {
	s := NewSupervisor(Config{
		Binary:      "sleep",
		Args:        []string{"30"},
		StopTimeout: 2 * time.Second,
	}, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, RunningModeNotRunning, s.RunningMode())
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, RunningModeSidecar, s.RunningMode())
	assert.NotZero(t, s.PID())
	assert.NoError(t, s.HealthCheck(context.Background()))

	require.Error(t, s.Start(context.Background()), "double start must fail")

	require.NoError(t, s.Stop())
	assert.Equal(t, RunningModeNotRunning, s.RunningMode())
	assert.Error(t, s.HealthCheck(context.Background()))
	require.NotNil(t, s.ExitInfo())
	assert.NotEmpty(t, s.ExitInfo().Signal)
}

func TestSupervisorRestart(t *testing.T) {
	s := NewSupervisor(Config{Binary: "sleep", Args: []string{"30"}}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, s.Init(context.Background()))
	first := s.PID()

	require.NoError(t, s.Restart(context.Background()))
	assert.NotEqual(t, first, s.PID())
	assert.Equal(t, StatusRunning, s.Status())

	require.NoError(t, s.Stop())
}

func TestSupervisorStopWhenIdle(t *testing.T) {
	s := NewSupervisor(Config{Binary: "sleep"}, nil)
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}

func TestSupervisorCapturesOutput(t *testing.T) {
	s := NewSupervisor(Config{Binary: "echo", Args: []string{"engine", "booted"}}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, s.Init(context.Background()))

	require.Eventually(t, func() bool {
		out := s.Output()
		return s.Status() == StatusStopped && len(out) == 1 && out[0] == "engine booted"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitMissingBinary(t *testing.T) {
	s := NewSupervisor(Config{Binary: "definitely-not-an-engine-binary"}, nil)
	assert.Error(t, s.Init(context.Background()))
}

func TestDefaultArgs(t *testing.T) {
	s := NewSupervisor(Config{
		HomeDir:    "/home/u/.config/outclash",
		ConfigPath: "/home/u/.config/outclash/config.yaml",
		Endpoint:   "unix:///tmp/outclash.sock",
		Secret:     "s3cr3t",
	}, nil)

	args := s.defaultArgs()
	assert.Equal(t, []string{
		"-d", "/home/u/.config/outclash",
		"-f", "/home/u/.config/outclash/config.yaml",
		"-ext-ctl-unix", "/tmp/outclash.sock",
		"-secret", "s3cr3t",
	}, args)
	assert.Equal(t, "****", maskSensitiveArgs(args)[7])
}
