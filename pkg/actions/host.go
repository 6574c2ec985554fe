package actions

// Host is the part of the host simulation the queue depends on: a way to
// tell whether an agent still resolves. A despawn is never announced to the
// queue; the driver discovers it by asking.
type Host interface {
	Alive(agent Agent) bool
}

// HostFunc adapts a function to [Host].
type HostFunc func(agent Agent) bool

// Alive calls f(agent).
func (f HostFunc) Alive(agent Agent) bool {
	return f(agent)
}

// Registry is a minimal in-memory [Host] that issues agent ids and tracks
// which are alive. Ids start at 1 and are never reused.
type Registry struct {
	next  Agent
	alive map[Agent]struct{}
}

var _ Host = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{alive: make(map[Agent]struct{})}
}

// Spawn issues a new live agent.
func (r *Registry) Spawn() Agent {
	r.next++
	r.alive[r.next] = struct{}{}
	return r.next
}

// Despawn marks agent dead. It reports whether the agent was alive. Any
// queue attached to the agent is torn down on the next tick.
func (r *Registry) Despawn(agent Agent) bool {
	if _, ok := r.alive[agent]; !ok {
		return false
	}
	delete(r.alive, agent)
	return true
}

// Alive reports whether agent was spawned and not yet despawned.
func (r *Registry) Alive(agent Agent) bool {
	_, ok := r.alive[agent]
	return ok
}

// Len returns the number of live agents.
func (r *Registry) Len() int {
	return len(r.alive)
}
