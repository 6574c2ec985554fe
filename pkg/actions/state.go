package actions

// State is the queue state of one agent.
//
// The flow for an agent is:
//
//	Idle → Running → Idle → ...
//
// with pauses in between:
//
//	Running → Paused → Running
//
// and a terminal Despawned reachable from every other state. The
// transient step between two actions, while a callback runs on a detached
// action, is not a stored state.
type State string

const (
	// StateIdle means the agent has no current action. Its queue may
	// still hold pending actions, for example after Cancel.
	StateIdle State = "idle"

	// StateRunning means the current action is started and polled every
	// tick.
	StateRunning State = "running"

	// StatePaused means the current action was stopped with StopPaused.
	// It stays current but is not polled until resumed.
	StatePaused State = "paused"

	// StateDespawned is the terminal state entered when the agent's queue
	// is torn down because the agent no longer resolves.
	StateDespawned State = "despawned"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Valid reports whether the state is one of the recognized queue states.
// The zero value ("") is not valid.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateRunning, StatePaused, StateDespawned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateDespawned
}

// validTransitions lists the allowed targets for each source state.
//
//	Idle      → Running, Despawned
//	Running   → Idle, Paused, Despawned
//	Paused    → Running, Idle, Despawned
//	Despawned → (none)
var validTransitions = map[State][]State{
	StateIdle:      {StateRunning, StateDespawned},
	StateRunning:   {StateIdle, StatePaused, StateDespawned},
	StatePaused:    {StateRunning, StateIdle, StateDespawned},
	StateDespawned: {},
}

// ValidTransition reports whether moving from one state to another is
// allowed. Same-state transitions are always rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// StateChangeHandler observes agent state changes. Handlers run
// synchronously inside the driver; they must not modify queues, and a
// panicking handler is recovered and logged.
type StateChangeHandler func(agent Agent, old, new State)
