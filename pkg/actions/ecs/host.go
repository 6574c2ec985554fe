// Package ecs hosts action queues on entities of a donburi ECS world.
//
// An agent is a donburi entity. Entity values carry a generation, so an
// agent whose entity was removed never resolves again, even after donburi
// reuses the slot for a new entity.
//
// Example:
//
//	world := donburi.NewWorld()
//	host := ecs.NewHost(world)
//	queues, err := actions.NewWorldBuilder(host).Build()
//	...
//	agent, entry, err := host.Spawn(queues)
//	queues.Actions(agent).Add(walk)
//	...
//	world.Remove(entry.Entity()) // queue torn down on the next tick
package ecs

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
	"github.com/yohamta/donburi/query"

	"github.com/StricklySoft/seqactions/pkg/actions"
	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// Queue is the component marking an entity that owns an action queue.
type Queue struct {
	Agent actions.Agent
}

// QueueComponent is the component type for [Queue].
var QueueComponent = donburi.NewComponentType[Queue]()

var queued = query.NewQuery(filter.Contains(QueueComponent))

// AgentOf returns the agent for a donburi entity. donburi.Null maps to
// actions.NoAgent.
func AgentOf(entity donburi.Entity) actions.Agent {
	return actions.Agent(uint64(entity))
}

// EntityOf returns the donburi entity for an agent.
func EntityOf(agent actions.Agent) donburi.Entity {
	return donburi.Entity(uint64(agent))
}

// Host implements [actions.Host] on a donburi world.
type Host struct {
	world donburi.World
}

var _ actions.Host = (*Host)(nil)

// NewHost returns a host backed by world.
func NewHost(world donburi.World) *Host {
	return &Host{world: world}
}

// World returns the underlying donburi world.
func (h *Host) World() donburi.World {
	return h.world
}

// Alive reports whether the agent's entity is still valid.
func (h *Host) Alive(agent actions.Agent) bool {
	if !agent.Valid() {
		return false
	}
	return h.world.Valid(EntityOf(agent))
}

// Spawn creates an entity carrying [QueueComponent] and attaches an
// action queue to it in queues.
func (h *Host) Spawn(queues *actions.World) (actions.Agent, *donburi.Entry, error) {
	entity := h.world.Create(QueueComponent)
	entry := h.world.Entry(entity)
	agent := AgentOf(entity)
	QueueComponent.SetValue(entry, Queue{Agent: agent})

	if err := queues.Attach(agent); err != nil {
		h.world.Remove(entity)
		return actions.NoAgent, nil, sserr.Wrapf(err, sserr.CodeInternal,
			"ecs: failed to attach action queue to entity %d", uint64(entity))
	}
	return agent, entry, nil
}

// Adopt attaches an action queue to an existing entity, adding
// [QueueComponent] if it is missing.
func (h *Host) Adopt(queues *actions.World, entity donburi.Entity) (actions.Agent, error) {
	if !h.world.Valid(entity) {
		return actions.NoAgent, sserr.Newf(sserr.CodeNotFound,
			"ecs: entity %d does not exist", uint64(entity))
	}
	entry := h.world.Entry(entity)
	agent := AgentOf(entity)
	if !entry.HasComponent(QueueComponent) {
		entry.AddComponent(QueueComponent)
	}
	QueueComponent.SetValue(entry, Queue{Agent: agent})

	if err := queues.Attach(agent); err != nil {
		return actions.NoAgent, err
	}
	return agent, nil
}

// Remove deletes the agent's entity. The queue is torn down on the next
// tick, or right away if the caller also calls World.Despawn.
func (h *Host) Remove(agent actions.Agent) bool {
	if !h.Alive(agent) {
		return false
	}
	h.world.Remove(EntityOf(agent))
	return true
}

// Agents returns every live entity carrying [QueueComponent].
func (h *Host) Agents() []actions.Agent {
	var out []actions.Agent
	queued.Each(h.world, func(entry *donburi.Entry) {
		out = append(out, QueueComponent.Get(entry).Agent)
	})
	return out
}

// Count returns the number of live entities carrying [QueueComponent].
func (h *Host) Count() int {
	return queued.Count(h.world)
}
