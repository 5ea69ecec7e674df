package events

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultQueueLimit caps how many notices are held before the UI is ready.
const DefaultQueueLimit = 100

// Readiness is the subset of lifecycle.ReadinessState the emitter needs.
type Readiness interface {
	IsReady() bool
	OnReady(fn func())
}

// Sink receives every notice in addition to the bus, e.g. desktop toasts.
type Sink interface {
	Notify(status, message string)
}

// Emitter publishes frontend notifications. Notices emitted before the UI is
// ready are queued and flushed in order once it is.
type Emitter struct {
	bus       *Bus
	readiness Readiness
	logger    *zap.Logger

	mu    sync.Mutex
	queue []Event
	limit int
	sinks []Sink
}

// NewEmitter wires an emitter to bus. readiness may be nil, in which case
// notices are published immediately.
func NewEmitter(bus *Bus, readiness Readiness, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		bus:       bus,
		readiness: readiness,
		logger:    logger,
		limit:     DefaultQueueLimit,
	}
	if readiness != nil {
		readiness.OnReady(e.Flush)
	}
	return e
}

// Bus returns the underlying bus.
func (e *Emitter) Bus() *Bus {
	return e.bus
}

// AddSink registers an extra notice receiver.
func (e *Emitter) AddSink(s Sink) {
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

// Notice emits a status/message pair.
func (e *Emitter) Notice(status, message string) {
	evt := newEvent(TypeNotice, map[string]any{
		"status":  status,
		"message": message,
	})

	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	if e.readiness != nil && !e.readiness.IsReady() {
		if len(e.queue) >= e.limit {
			e.queue = e.queue[1:]
			e.logger.Debug("Notice queue full, dropping oldest")
		}
		e.queue = append(e.queue, evt)
		e.mu.Unlock()
	} else {
		e.mu.Unlock()
		e.bus.Publish(evt)
	}

	for _, s := range sinks {
		s.Notify(status, message)
	}
}

// Flush publishes every queued notice.
func (e *Emitter) Flush() {
	e.mu.Lock()
	queued := e.queue
	e.queue = nil
	e.mu.Unlock()

	if len(queued) > 0 {
		e.logger.Debug("Flushing queued notices", zap.Int("count", len(queued)))
	}
	for _, evt := range queued {
		e.bus.Publish(evt)
	}
}

// Pending returns the number of queued notices.
func (e *Emitter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// StartupCompleted tells the frontend the backend is up.
func (e *Emitter) StartupCompleted() {
	e.bus.Publish(newEvent(TypeStartupCompleted, nil))
}

// RefreshClash asks the frontend to reload engine state.
func (e *Emitter) RefreshClash() {
	e.bus.Publish(newEvent(TypeRefreshClash, nil))
}

// RefreshVerge asks the frontend to reload app settings.
func (e *Emitter) RefreshVerge() {
	e.bus.Publish(newEvent(TypeRefreshVerge, nil))
}

// RefreshProfiles asks the frontend to reload profiles.
func (e *Emitter) RefreshProfiles() {
	e.bus.Publish(newEvent(TypeRefreshProfiles, nil))
}

// StageChanged reports a readiness stage transition.
func (e *Emitter) StageChanged(stage string) {
	e.bus.Publish(newEvent(TypeStageChanged, map[string]any{"stage": stage}))
}

// Eval asks the frontend to run script.
func (e *Emitter) Eval(script string) {
	e.bus.Publish(newEvent(TypeEval, map[string]any{"script": script}))
}

// WindowClosed tells the frontend its window is gone.
func (e *Emitter) WindowClosed() {
	e.bus.Publish(newEvent(TypeWindowClose, nil))
}

// IsErrorStatus reports whether status denotes a failure notice.
func IsErrorStatus(status string) bool {
	return strings.HasSuffix(status, "::error")
}
