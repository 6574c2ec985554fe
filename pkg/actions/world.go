package actions

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/StricklySoft/seqactions/pkg/actions"

// entry is an action together with the bookkeeping the driver keeps for
// it. An entry lives in exactly one place at a time: an agent's queue, an
// agent's current slot, or a local variable of the driver while one of its
// callbacks runs.
type entry struct {
	id      string
	action  Action
	started uint64 // frame of the most recent OnStart
	paused  bool
	repeat  bool
}

func newEntry(action Action) *entry {
	return &entry{id: uuid.NewString(), action: action}
}

// agentActions is the per-agent slot pair: the current action and the
// pending queue.
type agentActions struct {
	state   State
	current *entry
	queue   []*entry

	// advancing is set while an advance loop runs for the agent; nested
	// advance requests coming from drained commands fold into it.
	advancing bool

	// carryOver is set when an advance hit its start budget with actions
	// still pending. The next tick continues the advance.
	carryOver bool

	// despawnPending is set when Despawn was requested while one of the
	// agent's callbacks was running.
	despawnPending bool
}

// World owns the action queues of every attached agent and drives them.
// It is the shared store handed to every [Action] callback.
//
// Create one with [NewWorldBuilder]. A World is not safe for concurrent
// use.
type World struct {
	host   Host
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	stateHandlers []StateChangeHandler

	agents map[Agent]*agentActions
	order  []Agent
	frame  uint64

	deferred deferredBuffer

	// busy counts, per agent, the callbacks currently on the stack.
	busy map[Agent]int
	// depth counts all callbacks currently on the stack.
	depth    int
	flushing bool
	ticking  bool
}

// Host returns the host the world consults for agent liveness.
func (w *World) Host() Host {
	return w.host
}

// Config returns the driver configuration.
func (w *World) Config() Config {
	return w.cfg
}

// Frame returns the number of completed ticks.
func (w *World) Frame() uint64 {
	return w.frame
}

// Attach gives agent an empty action queue in [StateIdle]. The agent must
// be alive according to the host and not already attached.
func (w *World) Attach(agent Agent) error {
	if !agent.Valid() {
		return sserr.Validationf("actions: cannot attach %s", agent)
	}
	if _, ok := w.agents[agent]; ok {
		return sserr.Newf(sserr.CodeConflict, "actions: agent %s is already attached", agent)
	}
	if !w.host.Alive(agent) {
		return sserr.AgentNotFound(uint64(agent))
	}
	w.agents[agent] = &agentActions{state: StateIdle}
	w.order = append(w.order, agent)
	w.logger.Debug("actions: agent attached", "agent", uint64(agent))
	return nil
}

// Attached reports whether agent currently has an action queue.
func (w *World) Attached(agent Agent) bool {
	_, ok := w.agents[agent]
	return ok
}

// Agents returns the attached agents in attachment order.
func (w *World) Agents() []Agent {
	return slices.Clone(w.order)
}

// State returns the queue state of agent. The second result is false if
// the agent is not attached.
func (w *World) State(agent Agent) (State, bool) {
	a, ok := w.agents[agent]
	if !ok {
		return "", false
	}
	return a.state, true
}

// Current returns the agent's current action. While one of the agent's
// callbacks runs, the action driving it is detached and Current reports
// nothing.
func (w *World) Current(agent Agent) (Action, bool) {
	a, ok := w.agents[agent]
	if !ok || a.current == nil {
		return nil, false
	}
	return a.current.action, true
}

// CurrentID returns the entry id of the agent's current action, as used in
// logs and traces, or "" if there is none.
func (w *World) CurrentID(agent Agent) string {
	a, ok := w.agents[agent]
	if !ok || a.current == nil {
		return ""
	}
	return a.current.id
}

// Pending returns the agent's not yet started actions in queue order.
func (w *World) Pending(agent Agent) []Action {
	a, ok := w.agents[agent]
	if !ok {
		return nil
	}
	out := make([]Action, len(a.queue))
	for i, e := range a.queue {
		out[i] = e.action
	}
	return out
}

// Len returns the number of pending actions for agent.
func (w *World) Len(agent Agent) int {
	if a, ok := w.agents[agent]; ok {
		return len(a.queue)
	}
	return 0
}

// setState moves a to next after validating the transition, then notifies
// the registered handlers.
func (w *World) setState(agent Agent, a *agentActions, next State) {
	prev := a.state
	if prev == next {
		return
	}
	if !ValidTransition(prev, next) {
		w.logger.Error("actions: invalid state transition",
			"agent", uint64(agent),
			"old_state", string(prev),
			"new_state", string(next),
		)
		return
	}
	a.state = next

	for _, h := range w.stateHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("actions: state change handler panicked",
						"panic", r,
						"agent", uint64(agent),
						"old_state", string(prev),
						"new_state", string(next),
					)
				}
			}()
			h(agent, prev, next)
		}()
	}
}

// call runs fn as a callback of agent: the reentrancy guard and the drain
// gate see it on the stack until it returns.
func (w *World) call(agent Agent, fn func()) {
	w.busy[agent]++
	w.depth++
	defer func() {
		w.depth--
		if w.busy[agent]--; w.busy[agent] <= 0 {
			delete(w.busy, agent)
		}
	}()
	fn()
}

// gone reports whether agent must be torn down.
func (w *World) gone(agent Agent, a *agentActions) bool {
	return a.despawnPending || !w.host.Alive(agent)
}

// arg is the agent value passed to teardown callbacks: the agent itself
// while it is alive, NoAgent afterwards.
func (w *World) arg(agent Agent, a *agentActions) Agent {
	if w.gone(agent, a) {
		return NoAgent
	}
	return agent
}

// misuse handles an immediate modification requested while one of the
// agent's callbacks is on the stack.
func (w *World) misuse(agent Agent, op string) error {
	err := sserr.Reentrant(uint64(agent), op)
	if w.cfg.StrictReentrancy {
		panic(err)
	}
	w.logger.Error("actions: reentrant modification ignored",
		"agent", uint64(agent),
		"op", op,
		"error", err,
	)
	return err
}

// =========================================================================
// WorldBuilder
// =========================================================================

// WorldBuilder constructs a [World]. All methods return the builder for
// chaining; call [WorldBuilder.Build] to validate and construct.
//
// Example:
//
//	reg := actions.NewRegistry()
//	world, err := actions.NewWorldBuilder(reg).
//	    WithConfig(cfg).
//	    WithLogger(logger).
//	    OnStateChange(func(agent actions.Agent, old, new actions.State) {
//	        logger.Debug("queue state", "agent", uint64(agent), "from", old, "to", new)
//	    }).
//	    Build()
type WorldBuilder struct {
	host          Host
	cfg           *Config
	logger        *slog.Logger
	tp            trace.TracerProvider
	stateHandlers []StateChangeHandler
}

// NewWorldBuilder starts building a world backed by host.
func NewWorldBuilder(host Host) *WorldBuilder {
	return &WorldBuilder{host: host}
}

// WithConfig sets the driver configuration. [DefaultConfig] is used
// otherwise.
func (b *WorldBuilder) WithConfig(cfg Config) *WorldBuilder {
	b.cfg = &cfg
	return b
}

// WithLogger sets the logger. [slog.Default] is used otherwise.
func (b *WorldBuilder) WithLogger(logger *slog.Logger) *WorldBuilder {
	b.logger = logger
	return b
}

// WithTracerProvider sets the tracer provider. The global provider from
// otel is used otherwise.
func (b *WorldBuilder) WithTracerProvider(tp trace.TracerProvider) *WorldBuilder {
	b.tp = tp
	return b
}

// OnStateChange registers a handler called on every agent state change,
// in registration order.
func (b *WorldBuilder) OnStateChange(handler StateChangeHandler) *WorldBuilder {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// Build validates the configuration and returns the world.
func (b *WorldBuilder) Build() (*World, error) {
	if b.host == nil {
		return nil, sserr.New(sserr.CodeValidationRequired,
			"actions: host must not be nil")
	}

	cfg := DefaultConfig()
	if b.cfg != nil {
		cfg = *b.cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	var tracer trace.Tracer
	if b.tp != nil {
		tracer = b.tp.Tracer(tracerName)
	} else {
		tracer = otel.Tracer(tracerName)
	}

	return &World{
		host:          b.host,
		cfg:           cfg,
		logger:        logger,
		tracer:        tracer,
		stateHandlers: slices.Clone(b.stateHandlers),
		agents:        make(map[Agent]*agentActions),
		busy:          make(map[Agent]int),
	}, nil
}
