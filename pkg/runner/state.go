// Package runner drives an [actions.World] on a fixed tick interval in its
// own goroutine, with start, stop, pause and resume controls.
//
// # Runner Lifecycle
//
// A runner moves through a small state machine; every transition is
// validated against [validTransitions]:
//
//	Idle → Running → Stopped
//
// with pauses in between:
//
//	Running → Paused → Running
//
// A stopped runner may be started again.
//
// # Thread Safety
//
// The action world itself is confined to the runner's loop goroutine.
// Other goroutines reach it only through [Runner.Do], which runs a
// function on the loop goroutine between ticks. Lifecycle methods and
// [Runner.State] are safe for concurrent use.
//
// # OpenTelemetry Integration
//
// Lifecycle operations and each loop iteration create spans. The tracer
// scope is "github.com/StricklySoft/seqactions/pkg/runner".
package runner

// State is the lifecycle state of a [Runner].
type State string

const (
	// StateIdle is the state of a runner that has never been started.
	StateIdle State = "idle"

	// StateRunning means the loop goroutine is ticking the world.
	StateRunning State = "running"

	// StatePaused means the loop goroutine is alive and serving Do, but
	// does not tick.
	StatePaused State = "paused"

	// StateStopped means the loop goroutine has exited.
	StateStopped State = "stopped"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a recognized runner state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateRunning, StatePaused, StateStopped:
		return true
	default:
		return false
	}
}

// IsActive reports whether the loop goroutine is alive in this state.
func (s State) IsActive() bool {
	return s == StateRunning || s == StatePaused
}

// validTransitions lists the allowed targets for each source state.
//
//	Idle    → Running
//	Running → Paused, Stopped
//	Paused  → Running, Stopped
//	Stopped → Running
var validTransitions = map[State][]State{
	StateIdle:    {StateRunning},
	StateRunning: {StatePaused, StateStopped},
	StatePaused:  {StateRunning, StateStopped},
	StateStopped: {StateRunning},
}

// ValidTransition reports whether the runner may move from one state to
// another.
func ValidTransition(from, to State) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
