package actions

import (
	"context"
	"slices"

	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// AgentActions applies queue edits for one agent immediately. Methods
// chain; the first error is kept and returned by [AgentActions.Err].
// Later calls still run after an error.
//
// The immediate surface must not be used for an agent from inside one of
// that agent's callbacks. Such calls are rejected: with
// Config.StrictReentrancy the world panics, otherwise the call is logged
// and ignored. Use [World.Deferred] there.
//
// Example:
//
//	err := world.Actions(agent).
//	    Add(walkTo(door)).
//	    Order(actions.OrderFront).
//	    Add(openDoor()).
//	    Err()
type AgentActions struct {
	w       *World
	agent   Agent
	cfg     AddConfig
	reverse bool
	err     error
}

// Actions returns the immediate edit surface for agent, with the add
// configuration set to [DefaultAddConfig].
func (w *World) Actions(agent Agent) *AgentActions {
	return &AgentActions{w: w, agent: agent, cfg: DefaultAddConfig()}
}

// Err returns the first error recorded by the chain, or nil.
func (b *AgentActions) Err() error {
	return b.err
}

func (b *AgentActions) record(err error) *AgentActions {
	if err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// Config sets the configuration for subsequent adds.
func (b *AgentActions) Config(cfg AddConfig) *AgentActions {
	b.cfg = cfg
	return b
}

// Order sets the insertion end for subsequent adds.
func (b *AgentActions) Order(order AddOrder) *AgentActions {
	b.cfg.Order = order
	return b
}

// Start sets whether subsequent adds start the queue when it is idle.
func (b *AgentActions) Start(start bool) *AgentActions {
	b.cfg.Start = start
	return b
}

// Repeat sets whether subsequently added actions repeat. See
// [AddConfig.Repeat].
func (b *AgentActions) Repeat(repeat bool) *AgentActions {
	b.cfg.Repeat = repeat
	return b
}

// Reverse flips the order of every later AddMany batch. Calling it again
// restores the given order.
func (b *AgentActions) Reverse() *AgentActions {
	b.reverse = !b.reverse
	return b
}

// Add adds a single action. See [AgentActions.AddMany].
func (b *AgentActions) Add(action Action) *AgentActions {
	return b.AddMany(action)
}

// AddMany calls OnAdd on each action, then inserts the batch at the
// configured end, keeping the batch's order at either end. If Start is set
// and the agent has no current action, the queue advances.
//
// If the add is rejected, each action receives OnDrop right away:
// OnDrop(NoAgent, DropDespawned) when the agent has no queue,
// OnDrop(agent, DropCleared) on reentrant misuse.
func (b *AgentActions) AddMany(actions ...Action) *AgentActions {
	if b.reverse {
		actions = slices.Clone(actions)
		slices.Reverse(actions)
	}
	return b.record(b.w.addActions(b.agent, b.cfg, actions))
}

// Next finishes the current action as if it reported finished
// (OnStop(StopFinished) if it is running, then OnRemove and
// OnDrop(DropDone)) and advances the queue. An idle agent just advances.
func (b *AgentActions) Next() *AgentActions {
	return b.record(b.w.modify(b.agent, "next", func(ctx context.Context, a *agentActions) error {
		b.w.next(ctx, b.agent, a)
		return nil
	}))
}

// Done finishes the current action like Next. It does nothing when the
// agent is idle.
func (b *AgentActions) Done() *AgentActions {
	return b.record(b.w.modify(b.agent, "done", func(ctx context.Context, a *agentActions) error {
		if a.current != nil {
			b.w.next(ctx, b.agent, a)
		}
		return nil
	}))
}

// Cancel stops the current action with StopCanceled (if it is running)
// and drops it with DropCleared. The queue does not advance; the agent is
// left idle with its pending actions in place.
func (b *AgentActions) Cancel() *AgentActions {
	return b.record(b.w.modify(b.agent, "cancel", func(_ context.Context, a *agentActions) error {
		b.w.cancel(b.agent, a)
		return nil
	}))
}

// Pause stops the running action with StopPaused and keeps it current. It
// is not polled until [AgentActions.Resume]. Pausing an agent that is not
// running does nothing.
func (b *AgentActions) Pause() *AgentActions {
	return b.record(b.w.modify(b.agent, "pause", func(_ context.Context, a *agentActions) error {
		b.w.pause(b.agent, a)
		return nil
	}))
}

// Resume calls OnStart again on a paused action. If it reports finished,
// the action is retired and the queue advances. An idle agent advances;
// a running agent is left alone.
func (b *AgentActions) Resume() *AgentActions {
	return b.record(b.w.modify(b.agent, "resume", func(ctx context.Context, a *agentActions) error {
		b.w.resume(ctx, b.agent, a)
		return nil
	}))
}

// Skip removes the next n pending actions with OnRemove and
// OnDrop(DropCleared). None of them is started. The current action is not
// affected.
func (b *AgentActions) Skip(n int) *AgentActions {
	if n < 0 {
		return b.record(sserr.Validationf("actions: skip count must not be negative, got %d", n))
	}
	return b.record(b.w.modify(b.agent, "skip", func(_ context.Context, a *agentActions) error {
		b.w.skip(b.agent, a, n)
		return nil
	}))
}

// Clear tears down the current action (stopping it with StopCanceled if
// it is running) and every pending action, all with DropCleared.
func (b *AgentActions) Clear() *AgentActions {
	return b.record(b.w.modify(b.agent, "clear", func(_ context.Context, a *agentActions) error {
		b.w.clear(b.agent, a)
		return nil
	}))
}

// modify runs fn against agent's queue, guarded against reentrancy. The
// agent is torn down afterwards if it disappeared meanwhile, and the
// deferred buffer is drained.
func (w *World) modify(agent Agent, op string, fn func(ctx context.Context, a *agentActions) error) error {
	ctx := context.Background()

	a, ok := w.agents[agent]
	if !ok {
		return sserr.AgentNotFound(uint64(agent))
	}
	if w.busy[agent] > 0 {
		return w.misuse(agent, op)
	}
	if w.settle(ctx, agent, a) {
		w.flush()
		return sserr.AgentNotFound(uint64(agent))
	}

	err := fn(ctx, a)
	w.settle(ctx, agent, a)
	w.flush()
	return err
}

// addActions is shared by both surfaces.
func (w *World) addActions(agent Agent, cfg AddConfig, list []Action) error {
	list = slices.DeleteFunc(slices.Clone(list), func(act Action) bool { return act == nil })
	if len(list) == 0 {
		return nil
	}

	var applied bool
	err := w.modify(agent, "add", func(ctx context.Context, a *agentActions) error {
		applied = true
		if !cfg.Order.Valid() {
			w.reject(agent, list, DropCleared)
			return sserr.Validationf("actions: unknown add order %q", string(cfg.Order))
		}
		w.add(ctx, agent, a, cfg, list)
		return nil
	})
	if err != nil && !applied {
		if sserr.HasCode(err, sserr.CodeNotFoundAgent) {
			w.reject(NoAgent, list, DropDespawned)
		} else {
			w.reject(agent, list, DropCleared)
		}
	}
	return err
}

// reject hands actions that never entered a queue their final OnDrop.
func (w *World) reject(agent Agent, list []Action, reason DropReason) {
	for _, act := range list {
		w.call(agent, func() { act.OnDrop(agent, w, reason) })
	}
}

func (w *World) add(ctx context.Context, agent Agent, a *agentActions, cfg AddConfig, list []Action) {
	entries := make([]*entry, 0, len(list))
	for _, act := range list {
		e := newEntry(act)
		e.repeat = cfg.Repeat
		w.call(agent, func() { act.OnAdd(w.arg(agent, a), w) })
		entries = append(entries, e)
	}

	if cfg.Order == OrderFront {
		a.queue = slices.Insert(a.queue, 0, entries...)
	} else {
		a.queue = append(a.queue, entries...)
	}

	w.logger.Debug("actions: actions added",
		"agent", uint64(agent),
		"count", len(entries),
		"order", cfg.Order.String(),
		"pending", len(a.queue),
	)

	if cfg.Start && a.current == nil && !w.gone(agent, a) {
		w.advance(ctx, agent, a)
	}
}

func (w *World) next(ctx context.Context, agent Agent, a *agentActions) {
	if e := a.current; e != nil {
		a.current = nil
		w.retire(agent, a, e, !e.paused, StopFinished, DropDone)
		w.setState(agent, a, StateIdle)
		if w.gone(agent, a) {
			return
		}
		w.flush()
		if !w.attachedAs(agent, a) || w.gone(agent, a) {
			return
		}
	}
	w.advance(ctx, agent, a)
}

func (w *World) cancel(agent Agent, a *agentActions) {
	e := a.current
	if e == nil {
		return
	}
	a.current = nil
	a.carryOver = false
	w.retire(agent, a, e, !e.paused, StopCanceled, DropCleared)
	w.setState(agent, a, StateIdle)
}

func (w *World) pause(agent Agent, a *agentActions) {
	e := a.current
	if e == nil || a.state != StateRunning {
		return
	}
	a.current = nil
	w.call(agent, func() { e.action.OnStop(w.arg(agent, a), w, StopPaused) })
	e.paused = true
	a.current = e
	w.setState(agent, a, StatePaused)
}

func (w *World) resume(ctx context.Context, agent Agent, a *agentActions) {
	switch a.state {
	case StateIdle:
		w.advance(ctx, agent, a)
		return
	case StatePaused:
	default:
		return
	}

	e := a.current
	a.current = nil
	finished := w.start(agent, a, e)

	if w.gone(agent, a) || !finished {
		a.current = e
		w.setState(agent, a, StateRunning)
		return
	}

	w.setState(agent, a, StateIdle)
	w.retire(agent, a, e, true, StopFinished, DropDone)
	if w.gone(agent, a) {
		return
	}
	w.flush()
	if w.attachedAs(agent, a) && !w.gone(agent, a) {
		w.advance(ctx, agent, a)
	}
}

func (w *World) skip(agent Agent, a *agentActions, n int) {
	k := min(n, len(a.queue))
	if k == 0 {
		return
	}
	skipped := slices.Clone(a.queue[:k])
	a.queue = slices.Delete(a.queue, 0, k)
	if len(a.queue) == 0 {
		a.carryOver = false
	}
	for _, e := range skipped {
		w.retire(agent, a, e, false, "", DropCleared)
	}
}

func (w *World) clear(agent Agent, a *agentActions) {
	cur, pending := a.current, a.queue
	a.current, a.queue = nil, nil
	a.carryOver = false
	w.setState(agent, a, StateIdle)

	if cur != nil {
		w.retire(agent, a, cur, !cur.paused, StopCanceled, DropCleared)
	}
	for _, e := range pending {
		w.retire(agent, a, e, false, "", DropCleared)
	}
}
