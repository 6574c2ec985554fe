package runner

import (
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/seqactions/pkg/actions"
	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// RunnerBuilder constructs a [Runner]. All methods return the builder for
// chaining; call [RunnerBuilder.Build] to validate and construct.
//
// Example:
//
//	r, err := runner.NewRunnerBuilder(world).
//	    WithConfig(cfg.Runner).
//	    WithLogger(logger).
//	    WithSystem(spawnWaves).
//	    OnStateChange(func(old, new runner.State) {
//	        logger.Info("runner state", "from", old, "to", new)
//	    }).
//	    Build()
type RunnerBuilder struct {
	world         *actions.World
	cfg           *Config
	logger        *slog.Logger
	tp            trace.TracerProvider
	systems       []System
	stateHandlers []StateChangeHandler
}

// NewRunnerBuilder starts building a runner for world.
func NewRunnerBuilder(world *actions.World) *RunnerBuilder {
	return &RunnerBuilder{world: world}
}

// WithConfig sets the loop configuration. [DefaultConfig] is used
// otherwise.
func (b *RunnerBuilder) WithConfig(cfg Config) *RunnerBuilder {
	b.cfg = &cfg
	return b
}

// WithLogger sets the logger. [slog.Default] is used otherwise.
func (b *RunnerBuilder) WithLogger(logger *slog.Logger) *RunnerBuilder {
	b.logger = logger
	return b
}

// WithTracerProvider sets the tracer provider. The global provider is
// used otherwise.
func (b *RunnerBuilder) WithTracerProvider(tp trace.TracerProvider) *RunnerBuilder {
	b.tp = tp
	return b
}

// WithSystem appends a system run before every tick, in registration
// order.
func (b *RunnerBuilder) WithSystem(sys System) *RunnerBuilder {
	b.systems = append(b.systems, sys)
	return b
}

// OnStateChange registers a handler called on every runner state change.
func (b *RunnerBuilder) OnStateChange(handler StateChangeHandler) *RunnerBuilder {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// Build validates the configuration and returns an idle runner.
func (b *RunnerBuilder) Build() (*Runner, error) {
	if b.world == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "runner: world must not be nil")
	}
	for i, sys := range b.systems {
		if sys == nil {
			return nil, sserr.Newf(sserr.CodeValidationRequired, "runner: system %d is nil", i)
		}
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

	return &Runner{
		world:         b.world,
		cfg:           cfg,
		state:         StateIdle,
		requests:      make(chan request, cfg.CommandBuffer),
		tracer:        tracer,
		logger:        logger,
		systems:       slices.Clone(b.systems),
		stateHandlers: slices.Clone(b.stateHandlers),
	}, nil
}
