package runner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/seqactions/pkg/actions"
	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/StricklySoft/seqactions/pkg/runner"

// Config tunes the loop.
type Config struct {
	// TickInterval is the wall-clock time between ticks.
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"16ms" yaml:"tick_interval" json:"tick_interval"`

	// CommandBuffer is the capacity of the Do request channel.
	CommandBuffer int `env:"COMMAND_BUFFER" envDefault:"64" yaml:"command_buffer" json:"command_buffer"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{TickInterval: 16 * time.Millisecond, CommandBuffer: 64}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return sserr.Newf(sserr.CodeValidationRange,
			"runner: tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.CommandBuffer < 0 {
		return sserr.Newf(sserr.CodeValidationRange,
			"runner: command_buffer must not be negative, got %d", c.CommandBuffer)
	}
	return nil
}

// System is game logic run on the loop goroutine once per tick, before
// the world's queues are driven. Systems use the immediate edit surface.
// An error is logged and recorded on the tick span; the tick continues.
type System func(ctx context.Context, w *actions.World) error

// StateChangeHandler observes runner state changes.
type StateChangeHandler func(old, new State)

// request is a function to run on the loop goroutine.
type request struct {
	fn   func(w *actions.World)
	done chan struct{}
}

// Runner owns the goroutine that ticks an [actions.World]. Create one with
// [NewRunnerBuilder].
type Runner struct {
	world *actions.World
	cfg   Config

	mu    sync.RWMutex
	state State
	stop  chan struct{}
	exit  chan struct{}

	requests chan request
	ticks    atomic.Uint64

	tracer trace.Tracer
	logger *slog.Logger

	systems       []System
	stateHandlers []StateChangeHandler
}

// State returns the runner's lifecycle state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Ticks returns the number of ticks run since construction.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// setState validates and applies a transition. It must be called with mu
// held.
func (r *Runner) setState(next State) error {
	old := r.state
	if !ValidTransition(old, next) {
		return sserr.Newf(sserr.CodeConflict,
			"runner: invalid state transition from %q to %q", old, next)
	}
	r.state = next

	for _, h := range r.stateHandlers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("runner: state change handler panicked",
						"panic", rec,
						"old_state", string(old),
						"new_state", string(next),
					)
				}
			}()
			h(old, next)
		}()
	}
	return nil
}

// transition runs a traced state change.
func (r *Runner) transition(ctx context.Context, op string, next State) error {
	ctx, span := r.tracer.Start(ctx, "runner."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("runner.target_state", string(next))),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrapf(err, sserr.CodeTimeout, "runner: %s canceled before execution", op)
	}

	r.mu.Lock()
	err := r.setState(next)
	r.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	r.logger.InfoContext(ctx, "runner: "+op, "state", string(next))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Start launches the loop goroutine. It may be called from Idle or
// Stopped.
func (r *Runner) Start(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "runner.Start",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("runner.tick_interval", r.cfg.TickInterval.String())),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout, "runner: start canceled before execution")
	}

	r.mu.Lock()
	if err := r.setState(StateRunning); err != nil {
		r.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	r.stop = make(chan struct{})
	r.exit = make(chan struct{})
	stop, exit := r.stop, r.exit
	r.mu.Unlock()

	go r.loop(stop, exit)

	r.logger.InfoContext(ctx, "runner: started",
		"tick_interval", r.cfg.TickInterval.String(),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// Stop ends the loop goroutine and waits for it to exit or for ctx to end.
// Stopping a runner that is not active is a no-op.
func (r *Runner) Stop(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "runner.Stop", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	r.mu.Lock()
	if !r.state.IsActive() {
		r.mu.Unlock()
		span.SetStatus(codes.Ok, "")
		return nil
	}
	if err := r.setState(StateStopped); err != nil {
		r.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	close(r.stop)
	exit := r.exit
	r.mu.Unlock()

	select {
	case <-exit:
	case <-ctx.Done():
		err := ctx.Err()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout, "runner: stop timed out waiting for the loop to exit")
	}

	r.logger.InfoContext(ctx, "runner: stopped", "ticks", r.Ticks())
	span.SetStatus(codes.Ok, "")
	return nil
}

// Pause stops ticking. Do keeps working while paused.
func (r *Runner) Pause(ctx context.Context) error {
	return r.transition(ctx, "Pause", StatePaused)
}

// Resume restarts ticking after Pause.
func (r *Runner) Resume(ctx context.Context) error {
	if r.State() != StatePaused {
		return sserr.Newf(sserr.CodeConflict, "runner: cannot resume from %q", r.State())
	}
	return r.transition(ctx, "Resume", StateRunning)
}

// Do runs fn on the loop goroutine between ticks and waits for it to
// return. It is the only safe way to touch the world from other
// goroutines. fn must not call Do.
func (r *Runner) Do(ctx context.Context, fn func(w *actions.World)) error {
	r.mu.RLock()
	active, exit := r.state.IsActive(), r.exit
	r.mu.RUnlock()
	if !active {
		return sserr.New(sserr.CodeUnavailable, "runner: loop is not running")
	}

	req := request{fn: fn, done: make(chan struct{})}
	select {
	case r.requests <- req:
	case <-exit:
		return sserr.New(sserr.CodeUnavailable, "runner: loop exited")
	case <-ctx.Done():
		return sserr.Wrap(ctx.Err(), sserr.CodeTimeout, "runner: do canceled before execution")
	}

	select {
	case <-req.done:
		return nil
	case <-exit:
		// The loop serves every request it accepted before exiting.
		select {
		case <-req.done:
			return nil
		default:
			return sserr.New(sserr.CodeUnavailable, "runner: loop exited before serving the request")
		}
	case <-ctx.Done():
		return sserr.Wrap(ctx.Err(), sserr.CodeTimeout, "runner: do canceled while waiting")
	}
}

func (r *Runner) loop(stop <-chan struct{}, exit chan<- struct{}) {
	defer close(exit)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			r.drainRequests()
			return
		case req := <-r.requests:
			r.serve(req)
		case <-ticker.C:
			if r.State() != StateRunning {
				continue
			}
			r.tick()
		}
	}
}

func (r *Runner) serve(req request) {
	defer close(req.done)
	req.fn(r.world)
}

func (r *Runner) drainRequests() {
	for {
		select {
		case req := <-r.requests:
			r.serve(req)
		default:
			return
		}
	}
}

// tick runs the systems and one world tick.
func (r *Runner) tick() {
	ctx, span := r.tracer.Start(context.Background(), "runner.Tick",
		trace.WithAttributes(attribute.Int64("runner.tick", int64(r.ticks.Load()))),
	)
	defer span.End()

	for i, sys := range r.systems {
		if err := sys(ctx, r.world); err != nil {
			r.logger.ErrorContext(ctx, "runner: system failed", "system", i, "error", err)
			span.RecordError(err)
		}
	}
	if err := r.world.Tick(ctx); err != nil {
		r.logger.ErrorContext(ctx, "runner: world tick failed",
			"code", string(sserr.GetCode(err)),
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	r.ticks.Add(1)
	span.SetStatus(codes.Ok, "")
}
