package actions

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// Tick runs one driver step for every attached agent, in attachment order.
// For each agent it:
//
//  1. tears the queue down if the host no longer resolves the agent;
//  2. continues an advance that ran out of its start budget last tick;
//  3. polls IsFinished on a running action started in an earlier tick,
//     stopping it and advancing the queue if it reports finished;
//  4. drains the deferred command buffer.
//
// Agents attached while the tick runs are first stepped on the next tick.
// Tick must not be called from inside an action callback.
func (w *World) Tick(ctx context.Context) error {
	if w.depth > 0 || w.ticking {
		err := sserr.New(sserr.CodeConflictReentrant,
			"actions: Tick called from inside an action callback")
		if w.cfg.StrictReentrancy {
			panic(err)
		}
		w.logger.Error("actions: reentrant tick ignored", "frame", w.frame, "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := w.tracer.Start(ctx, "actions.Tick",
		trace.WithAttributes(
			attribute.Int64("actions.frame", int64(w.frame)),
			attribute.Int("actions.agents", len(w.order)),
		),
	)
	defer span.End()

	w.ticking = true
	defer func() { w.ticking = false }()

	// Commands buffered by game logic since the last tick.
	w.flush()

	for _, agent := range slices.Clone(w.order) {
		a, ok := w.agents[agent]
		if !ok {
			continue
		}
		w.step(ctx, agent, a)
		w.flush()
	}

	span.SetAttributes(attribute.Int("actions.deferred", w.deferred.len()))
	w.frame++
	return nil
}

// Despawn tears down agent's queue immediately: the current action gets
// OnStop(NoAgent, StopCanceled) unless it is paused, then the current and
// every pending action get OnRemove(NoAgent) and
// OnDrop(NoAgent, DropDespawned), current first, then in queue order. The
// agent is detached from the world.
//
// Despawn reports whether a teardown was started. A second call for the
// same agent is a no-op. Called from inside one of the agent's own
// callbacks, the teardown runs as soon as that callback returns.
func (w *World) Despawn(ctx context.Context, agent Agent) bool {
	a, ok := w.agents[agent]
	if !ok || a.despawnPending {
		return false
	}
	if w.busy[agent] > 0 {
		a.despawnPending = true
		w.logger.Debug("actions: despawn deferred until callback returns", "agent", uint64(agent))
		return true
	}
	w.despawn(ctx, agent, a)
	w.flush()
	return true
}

// step is the per-agent part of Tick.
func (w *World) step(ctx context.Context, agent Agent, a *agentActions) {
	if w.gone(agent, a) {
		w.despawn(ctx, agent, a)
		return
	}

	if a.carryOver && a.current == nil {
		w.advance(ctx, agent, a)
		if !w.attachedAs(agent, a) {
			return
		}
	}

	e := a.current
	if e == nil || a.state != StateRunning || e.started >= w.frame {
		return
	}

	a.current = nil
	var finished bool
	w.call(agent, func() { finished = e.action.IsFinished(agent, w) })

	if w.gone(agent, a) {
		a.current = e
		w.despawn(ctx, agent, a)
		return
	}
	if !finished {
		a.current = e
		return
	}

	w.retire(agent, a, e, true, StopFinished, DropDone)
	w.setState(agent, a, StateIdle)
	if w.settle(ctx, agent, a) {
		return
	}
	w.flush()
	if w.attachedAs(agent, a) && a.current == nil {
		w.advance(ctx, agent, a)
	}
}

// advance starts pending actions until one stays running or the queue
// empties. Actions whose OnStart reports finished are retired and the loop
// continues in the same call. The number of starts is bounded by the queue
// length when the advance begins and by Config.MaxStartsPerAdvance;
// leftover work continues on the next tick.
func (w *World) advance(ctx context.Context, agent Agent, a *agentActions) {
	if a.advancing || a.current != nil {
		return
	}
	a.advancing = true
	a.carryOver = false
	budget := min(len(a.queue), w.cfg.MaxStartsPerAdvance)

	for started := 0; ; started++ {
		if !w.attachedAs(agent, a) || a.current != nil || len(a.queue) == 0 {
			break
		}
		if started >= budget {
			a.carryOver = true
			w.logger.Warn("actions: start budget exhausted, continuing next tick",
				"agent", uint64(agent),
				"frame", w.frame,
				"started", started,
				"pending", len(a.queue),
			)
			break
		}

		e := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]

		finished := w.start(agent, a, e)

		if w.gone(agent, a) {
			a.current = e
			w.setState(agent, a, StateRunning)
			a.advancing = false
			w.despawn(ctx, agent, a)
			return
		}
		if !finished {
			a.current = e
			w.setState(agent, a, StateRunning)
			a.advancing = false
			w.flush()
			return
		}

		w.retire(agent, a, e, true, StopFinished, DropDone)
		if w.gone(agent, a) {
			a.advancing = false
			w.despawn(ctx, agent, a)
			return
		}
		w.flush()
	}

	a.advancing = false
	if w.attachedAs(agent, a) && a.current == nil {
		w.setState(agent, a, StateIdle)
	}
}

// start calls OnStart on a detached entry.
func (w *World) start(agent Agent, a *agentActions, e *entry) bool {
	e.started = w.frame
	e.paused = false
	w.logger.Debug("actions: action starting",
		"agent", uint64(agent),
		"action_id", e.id,
		"frame", w.frame,
	)
	var finished bool
	w.call(agent, func() { finished = e.action.OnStart(w.arg(agent, a), w) })
	return finished
}

// retire runs the teardown tail on a detached entry: OnStop (if stop),
// OnRemove and OnDrop. A repeating entry that finished goes back to the end
// of the queue after OnStop instead. If the agent disappears part way
// through, the rest of the tail sees NoAgent and the drop reason becomes
// DropDespawned.
func (w *World) retire(agent Agent, a *agentActions, e *entry, stop bool, sr StopReason, dr DropReason) {
	if stop {
		w.call(agent, func() { e.action.OnStop(w.arg(agent, a), w, sr) })
	}
	if e.repeat && sr == StopFinished && w.attachedAs(agent, a) && !w.gone(agent, a) {
		e.paused = false
		a.queue = append(a.queue, e)
		w.logger.Debug("actions: action repeated",
			"agent", uint64(agent),
			"action_id", e.id,
			"pending", len(a.queue),
		)
		return
	}
	if w.gone(agent, a) {
		dr = DropDespawned
	}
	w.call(agent, func() { e.action.OnRemove(w.arg(agent, a), w) })
	if w.gone(agent, a) {
		dr = DropDespawned
	}
	w.call(agent, func() { e.action.OnDrop(w.arg(agent, a), w, dr) })

	w.logger.Debug("actions: action dropped",
		"agent", uint64(agent),
		"action_id", e.id,
		"reason", string(dr),
	)
}

// despawn detaches the agent and tears down its actions with NoAgent.
func (w *World) despawn(ctx context.Context, agent Agent, a *agentActions) {
	if !w.attachedAs(agent, a) {
		return
	}

	cur, pending := a.current, a.queue
	a.current, a.queue = nil, nil
	a.carryOver = false

	_, span := w.tracer.Start(ctx, "actions.Despawn",
		trace.WithAttributes(
			attribute.String("agent.id", agent.String()),
			attribute.Int64("actions.frame", int64(w.frame)),
			attribute.Int("actions.pending", len(pending)),
			attribute.Bool("actions.current", cur != nil),
		),
	)
	defer span.End()

	w.setState(agent, a, StateDespawned)
	delete(w.agents, agent)
	if i := slices.Index(w.order, agent); i >= 0 {
		w.order = slices.Delete(w.order, i, i+1)
	}

	w.logger.Debug("actions: agent despawned",
		"agent", uint64(agent),
		"frame", w.frame,
		"pending", len(pending),
	)

	if cur != nil {
		if !cur.paused {
			w.call(agent, func() { cur.action.OnStop(NoAgent, w, StopCanceled) })
		}
		w.drop(agent, cur, DropDespawned)
	}
	for _, e := range pending {
		w.drop(agent, e, DropDespawned)
	}
	span.SetStatus(codes.Ok, "")
}

// drop runs OnRemove and OnDrop for an entry of a despawned agent.
func (w *World) drop(agent Agent, e *entry, reason DropReason) {
	w.call(agent, func() { e.action.OnRemove(NoAgent, w) })
	w.call(agent, func() { e.action.OnDrop(NoAgent, w, reason) })
}

// settle tears the agent down if it disappeared while the caller was
// working on it. It reports whether the agent is no longer attached.
func (w *World) settle(ctx context.Context, agent Agent, a *agentActions) bool {
	if !w.attachedAs(agent, a) {
		return true
	}
	if w.gone(agent, a) {
		w.despawn(ctx, agent, a)
		return true
	}
	return false
}

// attachedAs reports whether a is still agent's queue.
func (w *World) attachedAs(agent Agent, a *agentActions) bool {
	cur, ok := w.agents[agent]
	return ok && cur == a
}
