// Package actions implements per-agent sequential action queues for
// tick-driven simulations.
//
// # Queues
//
// An agent (an entity in the host simulation) owns a queue of pending
// [Action] values and at most one current action. The current action is
// polled once per tick through [World.Tick]; when it reports finished it is
// torn down and the next pending action starts. Actions whose OnStart
// reports them finished immediately are chained within the same call, so a
// run of zero-duration actions never stalls for a tick.
//
// # Lifecycle
//
// Every action instance observes its callbacks in this order:
//
//	OnAdd → ( OnStart → IsFinished* → OnStop )* → OnRemove → OnDrop
//
// OnStart and OnStop repeat when an action is paused and resumed. OnAdd,
// OnRemove and OnDrop fire exactly once.
//
// # Modifying Queues
//
// [World.Actions] returns the immediate surface, for ordinary game logic
// running outside any action callback. [World.Deferred] returns the
// deferred surface, for use inside callbacks: commands are buffered and
// applied once the callback stack for the tick has unwound. Before a
// callback runs, its action is detached from the agent's slots, so an
// action never observes itself in the queue it is being driven by.
//
// # Despawn
//
// Agents may disappear from the host at any time. The driver checks
// [Host.Alive] at the top of each agent's step and after every callback,
// and tears the queue down with [NoAgent] passed to the remaining callbacks
// instead of failing.
//
// # Thread Safety
//
// A [World] is confined to the goroutine driving the simulation. None of
// its methods are safe for concurrent use.
package actions

import (
	"strconv"
)

// Agent identifies the entity an action queue is attached to. Agents are
// issued by the host; the zero value [NoAgent] never names a live agent.
type Agent uint64

// NoAgent is passed to OnStop, OnRemove and OnDrop once the owning agent
// has been despawned.
const NoAgent Agent = 0

// Valid reports whether a names an agent, as opposed to [NoAgent].
func (a Agent) Valid() bool {
	return a != NoAgent
}

// String returns the decimal id, or "none" for [NoAgent].
func (a Agent) String() string {
	if !a.Valid() {
		return "none"
	}
	return strconv.FormatUint(uint64(a), 10)
}

// Action is one unit of sequential work. Implementations are supplied by
// callers; the queue only relies on this contract.
//
// Every callback receives the world, which gives unrestricted access to
// shared state, including other agents' queues. Modifying the calling
// agent's own queue must go through [World.Deferred].
type Action interface {
	// OnAdd is called when the action is pushed onto the queue.
	OnAdd(agent Agent, w *World)

	// OnStart is called when the action becomes current, and again on
	// resume after a pause. Returning true reports the action already
	// finished; the queue then advances without waiting for a poll.
	OnStart(agent Agent, w *World) bool

	// IsFinished is polled once per tick for a running action, starting
	// with the tick after OnStart. It must not modify state that other
	// agents' actions depend on.
	IsFinished(agent Agent, w *World) bool

	// OnStop is called when the action leaves the current slot. agent is
	// NoAgent if the owner was despawned.
	OnStop(agent Agent, w *World, reason StopReason)

	// OnRemove is called once when the action permanently leaves the
	// queue. agent is NoAgent if the owner was despawned.
	OnRemove(agent Agent, w *World)

	// OnDrop is the final call. No callback follows it.
	OnDrop(agent Agent, w *World, reason DropReason)
}

// BaseAction supplies no-op OnAdd, OnRemove and OnDrop for actions that
// only care about starting, polling and stopping.
type BaseAction struct{}

// OnAdd does nothing.
func (BaseAction) OnAdd(Agent, *World) {}

// OnRemove does nothing.
func (BaseAction) OnRemove(Agent, *World) {}

// OnDrop does nothing.
func (BaseAction) OnDrop(Agent, *World, DropReason) {}

// StopReason explains why an action left the current slot.
type StopReason string

const (
	// StopFinished means the action completed, either by reporting
	// finished or through Done or Next.
	StopFinished StopReason = "finished"

	// StopCanceled means the action was canceled, cleared, or its agent
	// was despawned.
	StopCanceled StopReason = "canceled"

	// StopPaused means the action was paused and will receive OnStart
	// again when resumed. Actions should save resumable progress here.
	StopPaused StopReason = "paused"
)

// String returns the string representation of the reason.
func (r StopReason) String() string {
	return string(r)
}

// Valid reports whether r is a recognized stop reason.
func (r StopReason) Valid() bool {
	switch r {
	case StopFinished, StopCanceled, StopPaused:
		return true
	default:
		return false
	}
}

// DropReason explains why an action reached its final OnDrop.
type DropReason string

const (
	// DropDone means the action ran to completion.
	DropDone DropReason = "done"

	// DropCleared means the action was canceled, skipped, or cleared.
	DropCleared DropReason = "cleared"

	// DropDespawned means the owning agent was despawned.
	DropDespawned DropReason = "despawned"
)

// String returns the string representation of the reason.
func (r DropReason) String() string {
	return string(r)
}

// Valid reports whether r is a recognized drop reason.
func (r DropReason) Valid() bool {
	switch r {
	case DropDone, DropCleared, DropDespawned:
		return true
	default:
		return false
	}
}

// AddOrder selects which end of the queue new actions are inserted at.
type AddOrder string

const (
	// OrderBack appends actions behind everything already pending.
	OrderBack AddOrder = "back"

	// OrderFront inserts actions ahead of everything already pending.
	// A batch inserted at the front keeps its own order.
	OrderFront AddOrder = "front"
)

// String returns the string representation of the order.
func (o AddOrder) String() string {
	return string(o)
}

// Valid reports whether o is a recognized order. The zero value is
// treated as OrderBack by Add and is also valid.
func (o AddOrder) Valid() bool {
	switch o {
	case "", OrderBack, OrderFront:
		return true
	default:
		return false
	}
}

// AddConfig controls how Add inserts actions. The zero value appends
// without starting.
type AddConfig struct {
	// Order is the insertion end.
	Order AddOrder

	// Start advances the queue after insertion when the agent has no
	// current action.
	Start bool

	// Repeat sends each added action back to the end of the queue every
	// time it finishes, instead of removing it. OnAdd runs once; OnStop
	// runs on every finish. Cancel, Clear, Skip and despawn still remove
	// and drop it.
	Repeat bool
}

// DefaultAddConfig returns {Order: OrderBack, Start: true}.
func DefaultAddConfig() AddConfig {
	return AddConfig{Order: OrderBack, Start: true}
}
