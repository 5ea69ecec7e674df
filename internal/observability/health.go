// Package observability holds the health checks, prometheus metrics and
// OpenTelemetry tracing of the running application.
package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthChecker is a component that can report whether it works. The engine
// supervisor and the engine IPC client are the registered ones.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Name() string
}

// CheckFunc adapts a function into a HealthChecker.
type CheckFunc struct {
	ComponentName string
	Check         func(ctx context.Context) error
}

func (c CheckFunc) Name() string                          { return c.ComponentName }
func (c CheckFunc) HealthCheck(ctx context.Context) error { return c.Check(ctx) }

// ComponentHealth is the outcome of one checker.
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthReport is the /healthz body.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components []ComponentHealth `json:"components"`
}

const healthTimeout = 5 * time.Second

// HealthManager runs the registered checkers concurrently on demand.
type HealthManager struct {
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	checkers []HealthChecker
}

func NewHealthManager(logger *zap.SugaredLogger) *HealthManager {
	return &HealthManager{logger: logger}
}

// AddHealthChecker registers c.
func (hm *HealthManager) AddHealthChecker(c HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers = append(hm.checkers, c)
}

// Check runs every checker and reports healthy only when all of them are.
func (hm *HealthManager) Check(ctx context.Context) HealthReport {
	hm.mu.RLock()
	checkers := append([]HealthChecker(nil), hm.checkers...)
	hm.mu.RUnlock()

	results := make([]ComponentHealth, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := c.HealthCheck(ctx)
			results[i] = ComponentHealth{Name: c.Name(), Healthy: err == nil, Latency: time.Since(start).String()}
			if err != nil {
				results[i].Error = err.Error()
				hm.logger.Debugw("Health check failed", "component", c.Name(), "error", err)
			}
		}()
	}
	wg.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })

	report := HealthReport{Healthy: true, CheckedAt: time.Now(), Components: results}
	for _, r := range results {
		report.Healthy = report.Healthy && r.Healthy
	}
	return report
}

// HealthzHandler answers 200 when healthy and 503 otherwise.
func (hm *HealthManager) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		report := hm.Check(ctx)

		code := http.StatusOK
		if !report.Healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			hm.logger.Errorw("Failed to encode health report", "error", err)
		}
	}
}
