package lifecycle

import (
	"sync"
	"sync/atomic"
)

// UIReadyStage tracks how far the frontend has progressed in mounting.
type UIReadyStage int

const (
	StageNotStarted UIReadyStage = iota
	StageLoading
	StageDomReady
	StageResourcesLoaded
	StageReady
)

var stageNames = map[UIReadyStage]string{
	StageNotStarted:      "NotStarted",
	StageLoading:         "Loading",
	StageDomReady:        "DomReady",
	StageResourcesLoaded: "ResourcesLoaded",
	StageReady:           "Ready",
}

func (s UIReadyStage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseStage maps a stage name as sent by the frontend to a stage.
func ParseStage(name string) (UIReadyStage, bool) {
	for stage, n := range stageNames {
		if n == name {
			return stage, true
		}
	}
	return StageNotStarted, false
}

// ReadinessState is the UI readiness stage plus the ready flag. Transitions
// are unconditional overwrites; only StageReady sets the flag.
type ReadinessState struct {
	mu    sync.Mutex
	stage UIReadyStage
	ready atomic.Bool

	listenersMu sync.Mutex
	listeners   []func()
}

// NewReadinessState returns a state at StageNotStarted.
func NewReadinessState() *ReadinessState {
	return &ReadinessState{}
}

// Transition moves to stage. Entering StageReady sets the ready flag.
// The stage and the flag change together so a concurrent Reset never lands
// between them.
func (r *ReadinessState) Transition(stage UIReadyStage) {
	r.mu.Lock()
	r.stage = stage
	flipped := stage == StageReady && r.ready.CompareAndSwap(false, true)
	r.mu.Unlock()

	if flipped {
		r.notify()
	}
}

// Stage returns the current stage.
func (r *ReadinessState) Stage() UIReadyStage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// MarkReady sets the ready flag without touching the stage. Used when the
// frontend never reports in and the window is shown regardless.
func (r *ReadinessState) MarkReady() {
	r.mu.Lock()
	flipped := r.ready.CompareAndSwap(false, true)
	r.mu.Unlock()

	if flipped {
		r.notify()
	}
}

// Reset clears both the stage and the ready flag.
func (r *ReadinessState) Reset() {
	r.mu.Lock()
	r.stage = StageNotStarted
	r.ready.Store(false)
	r.mu.Unlock()
}

// ResetStage puts the stage back to StageNotStarted and leaves the flag alone.
func (r *ReadinessState) ResetStage() {
	r.mu.Lock()
	r.stage = StageNotStarted
	r.mu.Unlock()
}

// IsReady reports the ready flag. It never blocks.
func (r *ReadinessState) IsReady() bool {
	return r.ready.Load()
}

// OnReady registers fn to run each time the flag flips from false to true.
// Callbacks run synchronously on the goroutine that flipped the flag.
func (r *ReadinessState) OnReady(fn func()) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

func (r *ReadinessState) notify() {
	r.listenersMu.Lock()
	fns := append([]func(){}, r.listeners...)
	r.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
