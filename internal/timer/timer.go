// Package timer refreshes remote profiles on their configured intervals.
package timer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/profiles"
)

// Source lists profiles and refreshes one of them.
type Source interface {
	Items() []profiles.Item
	UpdateItem(ctx context.Context, uid string) error
}

type task struct {
	interval uint64
	ticker   *time.Ticker
	stop     chan struct{}
}

// Manager runs one ticker per remote profile with a non-zero interval.
type Manager struct {
	source    Source
	onUpdated func(uid string)
	unit      time.Duration
	logger    *zap.Logger

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

// NewManager creates a manager. onUpdated, if set, runs after each
// successful refresh.
func NewManager(source Source, onUpdated func(uid string), logger *zap.Logger) *Manager {
	return &Manager{
		source:    source,
		onUpdated: onUpdated,
		unit:      time.Minute,
		logger:    logs.For(logger, logs.TypeTimer),
		tasks:     map[string]*task{},
	}
}

// WithUnit sets the duration of one interval unit. Intended for tests.
func (m *Manager) WithUnit(unit time.Duration) *Manager {
	m.unit = unit
	return m
}

// Init starts refresh tasks for the current profile list.
func (m *Manager) Init() {
	m.logger.Info("Initializing profile update timer")
	m.Refresh()
}

// Refresh reconciles the running tasks with the profile list: new or changed
// intervals are (re)started, removed profiles are stopped.
func (m *Manager) Refresh() {
	want := map[string]uint64{}
	for _, it := range m.source.Items() {
		if it.Type == profiles.TypeRemote && it.UpdateInterval() > 0 {
			want[it.UID] = it.UpdateInterval()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, t := range m.tasks {
		if interval, ok := want[uid]; !ok || interval != t.interval {
			m.stopLocked(uid, t)
		}
	}
	for uid, interval := range want {
		if _, ok := m.tasks[uid]; ok {
			continue
		}
		m.startLocked(uid, interval)
	}
}

func (m *Manager) startLocked(uid string, interval uint64) {
	t := &task{
		interval: interval,
		ticker:   time.NewTicker(time.Duration(interval) * m.unit),
		stop:     make(chan struct{}),
	}
	m.tasks[uid] = t
	m.logger.Debug("Timer task added", zap.String("uid", uid), zap.Uint64("minutes", interval))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-t.stop:
				return
			case <-t.ticker.C:
				m.update(uid)
			}
		}
	}()
}

func (m *Manager) stopLocked(uid string, t *task) {
	t.ticker.Stop()
	close(t.stop)
	delete(m.tasks, uid)
	m.logger.Debug("Timer task removed", zap.String("uid", uid))
}

func (m *Manager) update(uid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m.logger.Info("Updating profile", zap.String("uid", uid))
	if err := m.source.UpdateItem(ctx, uid); err != nil {
		m.logger.Warn("Failed to update profile", zap.String("uid", uid), zap.Error(err))
		return
	}
	if m.onUpdated != nil {
		m.onUpdated(uid)
	}
}

// Tasks returns the uids with a running task.
func (m *Manager) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tasks))
	for uid := range m.tasks {
		out = append(out, uid)
	}
	return out
}

// Stop cancels every task and waits for running refreshes to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	for uid, t := range m.tasks {
		m.stopLocked(uid, t)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
