package tray

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/outclash/outclash-go/internal/engine/ipc"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", formatBytes(0))
	assert.Equal(t, "1023 B", formatBytes(1023))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
	assert.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestObserveDerivesRates(t *testing.T) {
	m := newTrafficMonitor(nil, time.Second, zaptest.NewLogger(t).Sugar(), nil)
	t0 := time.Unix(100, 0)

	_, ok := m.observe(1000, 2000, t0)
	assert.False(t, ok, "first sample is a baseline")

	r, ok := m.observe(3000, 6000, t0.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, Rate{Up: 1000, Down: 2000}, r)

	r, ok = m.observe(10, 10, t0.Add(3*time.Second))
	require.True(t, ok)
	assert.Equal(t, Rate{}, r, "counter reset yields zero")
}

func TestTooltip(t *testing.T) {
	text := tooltip("v1.2.0", "rule", true, false, nil)
	assert.Equal(t, "OutClash v1.2.0\nMode: rule\nSystem proxy: on\nTUN: off", text)

	text = tooltip("v1.2.0", "global", false, true, &Rate{Up: 2048, Down: 10})
	assert.Contains(t, text, "↑ 2.0 KiB/s")
	assert.Contains(t, text, "↓ 10 B/s")
}

type countingSource struct {
	calls atomic.Int32
	total atomic.Int64
}

func (s *countingSource) GetConnections(context.Context) (*ipc.Connections, error) {
	s.calls.Add(1)
	n := s.total.Add(1024)
	return &ipc.Connections{UploadTotal: n, DownloadTotal: n}, nil
}

func TestTrafficMonitorStartStop(t *testing.T) {
	src := &countingSource{}
	rates := make(chan Rate, 64)
	m := newTrafficMonitor(src, 5*time.Millisecond, zaptest.NewLogger(t).Sugar(), func(r Rate) {
		select {
		case rates <- r:
		default:
		}
	})

	m.start()
	m.start()
	assert.True(t, m.running())

	select {
	case r := <-rates:
		assert.Positive(t, r.Up)
	case <-time.After(time.Second):
		t.Fatal("no rate reported")
	}

	m.stop()
	assert.False(t, m.running())
	calls := src.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load())
}

func TestIconIsPNG(t *testing.T) {
	data := icon()
	require.NotEmpty(t, data)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}
