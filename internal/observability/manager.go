package observability

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config enables the metrics registry and the trace exporter.
type Config struct {
	Metrics MetricsConfig `json:"metrics"`
	Tracing TracingConfig `json:"tracing"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// DefaultConfig turns metrics on and leaves tracing off, pointed at a local
// collector.
func DefaultConfig(service, version string) Config {
	return Config{
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			ServiceName:    service,
			ServiceVersion: version,
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1,
		},
	}
}

// Manager bundles health, metrics and tracing for the rest of the app.
// Metrics may be nil; every MetricsManager method tolerates that.
type Manager struct {
	health  *HealthManager
	metrics *MetricsManager
	tracing *TracingManager
	started time.Time
}

func NewManager(logger *zap.SugaredLogger, cfg Config) (*Manager, error) {
	tracing, err := NewTracingManager(logger, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		health:  NewHealthManager(logger),
		tracing: tracing,
		started: time.Now(),
	}
	if cfg.Metrics.Enabled {
		m.metrics = NewMetricsManager(logger)
	}
	return m, nil
}

func (m *Manager) Health() *HealthManager   { return m.health }
func (m *Manager) Metrics() *MetricsManager { return m.metrics }
func (m *Manager) Tracing() *TracingManager { return m.tracing }

// UpdateMetrics refreshes the gauges computed at scrape time.
func (m *Manager) UpdateMetrics() {
	m.metrics.SetUptime(m.started)
}

// Close flushes the trace exporter.
func (m *Manager) Close(ctx context.Context) error {
	return m.tracing.Close(ctx)
}
