package runner_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StricklySoft/seqactions/internal/testutil"
	"github.com/StricklySoft/seqactions/internal/testutil/fixtures"
	"github.com/StricklySoft/seqactions/pkg/actions"
	sserr "github.com/StricklySoft/seqactions/pkg/errors"
	"github.com/StricklySoft/seqactions/pkg/runner"
)

const (
	waitFor = 2 * time.Second
	pollIn  = time.Millisecond
)

func newWorld(t *testing.T) (*actions.World, *actions.Registry) {
	t.Helper()
	reg := actions.NewRegistry()
	cfg := actions.DefaultConfig()
	cfg.StrictReentrancy = true
	w, err := actions.NewWorldBuilder(reg).
		WithConfig(cfg).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	require.NoError(t, err)
	return w, reg
}

func fastConfig() runner.Config {
	return runner.Config{TickInterval: time.Millisecond, CommandBuffer: 4}
}

// frame reads the world frame on the loop goroutine. It is used from
// Eventually conditions, so it must not call FailNow.
func frame(t *testing.T, r *runner.Runner) uint64 {
	t.Helper()
	var f uint64
	assert.NoError(t, r.Do(context.Background(), func(w *actions.World) { f = w.Frame() }))
	return f
}

// ===========================================================================
// State Tests
// ===========================================================================

func TestValidTransition(t *testing.T) {
	t.Parallel()
	assert.True(t, runner.ValidTransition(runner.StateIdle, runner.StateRunning))
	assert.True(t, runner.ValidTransition(runner.StateRunning, runner.StatePaused))
	assert.True(t, runner.ValidTransition(runner.StatePaused, runner.StateStopped))
	assert.True(t, runner.ValidTransition(runner.StateStopped, runner.StateRunning))
	assert.False(t, runner.ValidTransition(runner.StateIdle, runner.StatePaused))
	assert.False(t, runner.ValidTransition(runner.StateStopped, runner.StatePaused))
	assert.False(t, runner.ValidTransition(runner.StateRunning, runner.StateRunning))

	assert.True(t, runner.StatePaused.Valid())
	assert.False(t, runner.State("failed").Valid())
	assert.True(t, runner.StatePaused.IsActive())
	assert.False(t, runner.StateStopped.IsActive())
}

// ===========================================================================
// Builder Tests
// ===========================================================================

func TestBuilder_Validation(t *testing.T) {
	t.Parallel()
	_, err := runner.NewRunnerBuilder(nil).Build()
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)

	w, _ := newWorld(t)
	_, err = runner.NewRunnerBuilder(w).WithConfig(runner.Config{}).Build()
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRange)

	_, err = runner.NewRunnerBuilder(w).WithSystem(nil).Build()
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)

	r, err := runner.NewRunnerBuilder(w).Build()
	require.NoError(t, err)
	assert.Equal(t, runner.StateIdle, r.State())
}

// ===========================================================================
// Lifecycle Tests
// ===========================================================================

// TestRunner_DrivesQueues verifies the loop ticks the world and actions
// run to completion.
func TestRunner_DrivesQueues(t *testing.T) {
	t.Parallel()
	w, reg := newWorld(t)
	rec := &fixtures.Recorder{}

	r, err := runner.NewRunnerBuilder(w).
		WithConfig(fastConfig()).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Stop(context.Background()) })

	var agent actions.Agent
	require.NoError(t, r.Do(context.Background(), func(w *actions.World) {
		agent = reg.Spawn()
		assert.NoError(t, w.Attach(agent))
		a := fixtures.NewAction(fixtures.ActionA, rec)
		a.PollsToFinish = 2
		assert.NoError(t, w.Actions(agent).Add(a).Err())
	}))

	require.Eventually(t, func() bool {
		var state actions.State
		_ = r.Do(context.Background(), func(w *actions.World) { state, _ = w.State(agent) })
		return state == actions.StateIdle
	}, waitFor, pollIn)

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, runner.StateStopped, r.State())
	assert.Equal(t, "A.drop(done)", rec.Log()[len(rec.Log())-1])
	assert.GreaterOrEqual(t, r.Ticks(), uint64(3))
}

// TestRunner_PauseStopsTicking verifies a paused runner serves Do but does
// not tick.
func TestRunner_PauseStopsTicking(t *testing.T) {
	t.Parallel()
	w, _ := newWorld(t)
	r, err := runner.NewRunnerBuilder(w).WithConfig(fastConfig()).Build()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	t.Cleanup(func() { _ = r.Stop(ctx) })

	require.Eventually(t, func() bool { return frame(t, r) >= 2 }, waitFor, pollIn)
	require.NoError(t, r.Pause(ctx))

	paused := frame(t, r)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, frame(t, r))

	require.NoError(t, r.Resume(ctx))
	require.Eventually(t, func() bool { return frame(t, r) > paused }, waitFor, pollIn)
}

// TestRunner_InvalidTransitions verifies lifecycle misuse is reported as
// a conflict.
func TestRunner_InvalidTransitions(t *testing.T) {
	t.Parallel()
	w, _ := newWorld(t)
	r, err := runner.NewRunnerBuilder(w).WithConfig(fastConfig()).Build()
	require.NoError(t, err)
	ctx := context.Background()

	testutil.RequireErrorCode(t, r.Pause(ctx), sserr.CodeConflict)
	assert.True(t, sserr.IsConflict(r.Resume(ctx)))
	require.NoError(t, r.Stop(ctx))

	require.NoError(t, r.Start(ctx))
	testutil.RequireErrorCode(t, r.Start(ctx), sserr.CodeConflict)
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx))

	// A stopped runner can be started again.
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Stop(ctx))
}

// TestRunner_DoRequiresActiveLoop verifies Do fails fast when the loop is
// not running.
func TestRunner_DoRequiresActiveLoop(t *testing.T) {
	t.Parallel()
	w, _ := newWorld(t)
	r, err := runner.NewRunnerBuilder(w).WithConfig(fastConfig()).Build()
	require.NoError(t, err)

	err = r.Do(context.Background(), func(*actions.World) {})
	testutil.RequireErrorCode(t, err, sserr.CodeUnavailable)
	assert.True(t, sserr.IsUnavailable(err))
	assert.False(t, sserr.IsTimeout(err))
}

// TestRunner_CanceledContext verifies lifecycle calls with a canceled
// context fail with a timeout code and leave the state alone.
func TestRunner_CanceledContext(t *testing.T) {
	t.Parallel()
	w, _ := newWorld(t)
	r, err := runner.NewRunnerBuilder(w).WithConfig(fastConfig()).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Start(ctx)
	testutil.RequireErrorCode(t, err, sserr.CodeTimeout)
	assert.True(t, sserr.IsTimeout(err))
	assert.Equal(t, runner.StateIdle, r.State())
}

// TestRunner_SystemsRunBeforeTick verifies systems run on every tick and
// failures do not stop the loop.
func TestRunner_SystemsRunBeforeTick(t *testing.T) {
	t.Parallel()
	w, _ := newWorld(t)

	var mu sync.Mutex
	var frames []uint64
	r, err := runner.NewRunnerBuilder(w).
		WithConfig(fastConfig()).
		WithLogger(slog.New(slog.DiscardHandler)).
		WithSystem(func(_ context.Context, w *actions.World) error {
			mu.Lock()
			defer mu.Unlock()
			frames = append(frames, w.Frame())
			return errors.New("system hiccup")
		}).
		Build()
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	require.Eventually(t, func() bool { return r.Ticks() >= 3 }, waitFor, pollIn)
	require.NoError(t, r.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, []uint64{0, 1, 2}, frames[:3])
}

// TestRunner_StateHandlersAndSpans verifies state handlers and tracing.
func TestRunner_StateHandlersAndSpans(t *testing.T) {
	t.Parallel()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	w, _ := newWorld(t)
	var mu sync.Mutex
	var seen []runner.State
	r, err := runner.NewRunnerBuilder(w).
		WithConfig(runner.Config{TickInterval: time.Hour}).
		WithLogger(slog.New(slog.DiscardHandler)).
		WithTracerProvider(tp).
		OnStateChange(func(_, new runner.State) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, new)
		}).
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Pause(ctx))
	require.NoError(t, r.Resume(ctx))
	require.NoError(t, r.Stop(ctx))

	mu.Lock()
	assert.Equal(t, []runner.State{
		runner.StateRunning, runner.StatePaused, runner.StateRunning, runner.StateStopped,
	}, seen)
	mu.Unlock()

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"runner.Start", "runner.Pause", "runner.Resume", "runner.Stop"}, names)
}
