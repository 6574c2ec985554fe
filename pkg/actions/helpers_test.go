package actions_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/seqactions/internal/testutil/fixtures"
	"github.com/StricklySoft/seqactions/pkg/actions"
)

// strictConfig is the configuration used by most tests: misuse panics so
// a reentrancy bug fails the test loudly.
func strictConfig() actions.Config {
	cfg := actions.DefaultConfig()
	cfg.StrictReentrancy = true
	return cfg
}

// newWorld builds a world backed by a fresh registry.
func newWorld(t *testing.T, cfg actions.Config) (*actions.World, *actions.Registry) {
	t.Helper()
	reg := actions.NewRegistry()
	w, err := actions.NewWorldBuilder(reg).
		WithConfig(cfg).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	require.NoError(t, err)
	return w, reg
}

// spawn issues a live agent and attaches a queue to it.
func spawn(t *testing.T, w *actions.World, reg *actions.Registry) actions.Agent {
	t.Helper()
	agent := reg.Spawn()
	require.NoError(t, w.Attach(agent))
	return agent
}

// tick runs n ticks.
func tick(t *testing.T, w *actions.World, n int) {
	t.Helper()
	for range n {
		require.NoError(t, w.Tick(context.Background()))
	}
}

// requireLifecycle fails the test if any recorded action saw its
// callbacks out of order. Actions named in repeating may restart after a
// finished stop.
func requireLifecycle(t *testing.T, rec *fixtures.Recorder, complete bool, repeating ...string) {
	t.Helper()
	require.NoError(t, fixtures.CheckLifecycle(rec.Events, complete, repeating...), "log: %v", rec.Log())
}
