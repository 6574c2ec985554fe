package actions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/seqactions/internal/testutil/fixtures"
	"github.com/StricklySoft/seqactions/pkg/actions"
)

// ===========================================================================
// Visibility Tests
// ===========================================================================

// TestDeferred_InvisibleUntilCallbackReturns verifies an add issued from
// OnStart is applied only after OnStart returns, and that the running
// action is detached while its callback runs.
func TestDeferred_InvisibleUntilCallbackReturns(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	b := fixtures.NewAction(fixtures.ActionB, rec)
	var lenInside int
	var currentInside bool

	a := fixtures.Forever(fixtures.ActionA, rec)
	a.StartHook = func(agent actions.Agent, w *actions.World) {
		w.Deferred(agent).Add(b)
		lenInside = w.Len(agent)
		_, currentInside = w.Current(agent)
	}
	require.NoError(t, w.Actions(agent).Add(a).Err())

	assert.Equal(t, 0, lenInside)
	assert.False(t, currentInside)
	assert.Equal(t, []actions.Action{b}, w.Pending(agent))
	assert.Equal(t, 0, w.Buffered())
	assert.Equal(t, []string{"A.add", "A.start", "B.add"}, rec.Log())
}

// TestDeferred_NextFromOnStart verifies a deferred Next issued by an
// action's own OnStart retires it right after OnStart returns.
func TestDeferred_NextFromOnStart(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	a := fixtures.Forever(fixtures.ActionA, rec)
	a.StartHook = func(agent actions.Agent, w *actions.World) {
		w.Deferred(agent).Next()
	}
	b := fixtures.Forever(fixtures.ActionB, rec)
	require.NoError(t, w.Actions(agent).AddMany(a, b).Err())

	assert.Equal(t, []string{
		"A.add", "B.add",
		"A.start", "A.stop(finished)", "A.remove", "A.drop(done)",
		"B.start",
	}, rec.Log())
	current, ok := w.Current(agent)
	require.True(t, ok)
	assert.Same(t, b, current)
}

// TestDeferred_AppliedBeforeNextAgent verifies commands issued during one
// agent's step are applied before the next agent is stepped.
func TestDeferred_AppliedBeforeNextAgent(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	first := spawn(t, w, reg)
	second := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	c := fixtures.Forever(fixtures.ActionC, rec)
	var sent bool
	x := fixtures.Forever("X", rec)
	x.PollHook = func(_ actions.Agent, w *actions.World) {
		if !sent {
			sent = true
			w.Deferred(second).Start(true).Add(c)
		}
	}
	require.NoError(t, w.Actions(first).Add(x).Err())
	rec.Reset()

	tick(t, w, 2)
	assert.Equal(t, []string{"X.poll", "C.add", "C.start"}, rec.Log())
	assert.Equal(t, second, rec.Events[2].Agent)

	// C started during frame 1 and is first polled on the next tick.
	tick(t, w, 1)
	assert.Equal(t, 1, c.Polls())
}

// TestDeferred_FIFOPerAgent verifies buffered commands apply in the order
// they were issued.
func TestDeferred_FIFOPerAgent(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	a := fixtures.Forever(fixtures.ActionA, rec)
	b := fixtures.NewAction(fixtures.ActionB, rec)
	c := fixtures.NewAction(fixtures.ActionC, rec)
	a.StartHook = func(agent actions.Agent, w *actions.World) {
		w.Deferred(agent).
			Add(b).
			Order(actions.OrderFront).
			Add(c).
			Skip(1)
	}
	require.NoError(t, w.Actions(agent).Add(a).Err())

	assert.Equal(t, []actions.Action{b}, w.Pending(agent))
	assert.Equal(t, []string{"C.add", "C.remove", "C.drop(cleared)"}, rec.LogFor(fixtures.ActionC))
}

// TestDeferred_OutsideCallbacksWaitsForDrain verifies commands issued by
// ordinary game logic are applied at the next drain point.
func TestDeferred_OutsideCallbacksWaitsForDrain(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	w.Deferred(agent).Start(true).Add(fixtures.Forever(fixtures.ActionA, rec))
	assert.Equal(t, 1, w.Buffered())
	assert.Empty(t, rec.Log())

	tick(t, w, 1)
	assert.Equal(t, 0, w.Buffered())
	assert.Equal(t, []string{"A.add", "A.start"}, rec.Log())
}

// TestDeferred_AddStartsIdleQueueByDefault verifies a deferred add uses
// the same default configuration as the immediate surface and starts an
// idle queue when applied, while Start(false) only enqueues.
func TestDeferred_AddStartsIdleQueueByDefault(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	started := spawn(t, w, reg)
	parked := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	a := fixtures.Forever(fixtures.ActionA, rec)
	b := fixtures.Forever(fixtures.ActionB, rec)
	w.Deferred(started).Add(a)
	w.Deferred(parked).Start(false).Add(b)

	tick(t, w, 3)
	assert.Equal(t, []string{"A.add", "A.start", "A.poll", "A.poll"}, rec.LogFor(fixtures.ActionA))
	state, _ := w.State(started)
	assert.Equal(t, actions.StateRunning, state)

	assert.Equal(t, []string{"B.add"}, rec.LogFor(fixtures.ActionB))
	assert.Equal(t, []actions.Action{b}, w.Pending(parked))
	state, _ = w.State(parked)
	assert.Equal(t, actions.StateIdle, state)
}

// TestDeferred_AllOperations exercises every deferred operation from
// inside callbacks.
func TestDeferred_AllOperations(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	a := fixtures.Forever(fixtures.ActionA, rec)
	var polls int
	a.PollHook = func(agent actions.Agent, w *actions.World) {
		polls++
		switch polls {
		case 1:
			w.Deferred(agent).Pause()
		}
	}
	require.NoError(t, w.Actions(agent).Add(a).Err())
	tick(t, w, 2)
	state, _ := w.State(agent)
	assert.Equal(t, actions.StatePaused, state)

	// Resume and Done from a callback of another agent's action.
	other := spawn(t, w, reg)
	helper := fixtures.Instant("helper", rec)
	helper.StartHook = func(_ actions.Agent, w *actions.World) {
		w.Deferred(agent).Resume().Done()
	}
	require.NoError(t, w.Actions(other).Add(helper).Err())

	state, _ = w.State(agent)
	assert.Equal(t, actions.StateIdle, state)
	assert.Equal(t, []string{
		"A.add", "A.start", "A.poll", "A.stop(paused)",
		"A.start", "A.stop(finished)", "A.remove", "A.drop(done)",
	}, rec.LogFor(fixtures.ActionA))

	b := fixtures.Forever(fixtures.ActionB, rec)
	c := fixtures.Forever(fixtures.ActionC, rec)
	helper2 := fixtures.Instant("helper2", rec)
	helper2.StartHook = func(_ actions.Agent, w *actions.World) {
		w.Deferred(agent).
			Config(actions.DefaultAddConfig()).
			AddMany(b, c).
			Cancel().
			Resume().
			Clear()
	}
	require.NoError(t, w.Actions(other).Add(helper2).Err())
	assert.Equal(t, []string{"B.add", "B.start", "B.stop(canceled)", "B.remove", "B.drop(cleared)"}, rec.LogFor(fixtures.ActionB))
	assert.Equal(t, []string{"C.add", "C.start", "C.stop(canceled)", "C.remove", "C.drop(cleared)"}, rec.LogFor(fixtures.ActionC))
	requireLifecycle(t, rec, true)
}

// TestDeferred_Custom verifies custom commands run at drain time with the
// world.
func TestDeferred_Custom(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	var frames []uint64
	a := fixtures.Forever(fixtures.ActionA, rec)
	a.StartHook = func(agent actions.Agent, w *actions.World) {
		w.Deferred(agent).Custom(func(w *actions.World) {
			frames = append(frames, w.Frame())
			_, ok := w.Current(agent)
			assert.True(t, ok)
		})
	}
	require.NoError(t, w.Actions(agent).Add(a).Err())
	assert.Equal(t, []uint64{0}, frames)
}

// ===========================================================================
// Drain Tests
// ===========================================================================

// TestDeferred_DrainLimit verifies a drain applies at most
// MaxDeferredPerFlush commands and leaves the rest buffered.
func TestDeferred_DrainLimit(t *testing.T) {
	t.Parallel()
	cfg := strictConfig()
	cfg.MaxDeferredPerFlush = 1
	w, reg := newWorld(t, cfg)
	agent := spawn(t, w, reg)

	var ran int
	for range 4 {
		w.Deferred(agent).Custom(func(*actions.World) { ran++ })
	}

	// One drain at the start of the tick and one after the agent's step.
	tick(t, w, 1)
	assert.Equal(t, 2, ran)
	assert.Equal(t, 2, w.Buffered())

	tick(t, w, 1)
	assert.Equal(t, 4, ran)
	assert.Equal(t, 0, w.Buffered())
}

// TestDeferred_DiscardedForDespawnedAgent verifies a buffered add for an
// agent torn down before the drain drops its actions as despawned.
func TestDeferred_DiscardedForDespawnedAgent(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t, strictConfig())
	agent := spawn(t, w, reg)
	rec := &fixtures.Recorder{}

	w.Deferred(agent).Add(fixtures.NewAction(fixtures.ActionA, rec)).Next()
	require.True(t, w.Despawn(context.Background(), agent))

	assert.Equal(t, 0, w.Buffered())
	require.Len(t, rec.Events, 1)
	assert.Equal(t, "A.drop(despawned)", rec.Events[0].String())
	assert.Equal(t, actions.NoAgent, rec.Events[0].Agent)
}
