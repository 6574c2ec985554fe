package actions

import (
	"slices"

	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// command is one buffered queue edit.
type command struct {
	agent Agent
	op    string
	apply func(w *World) error
}

// deferredBuffer is the world's FIFO of buffered commands. Commands for
// every agent share one buffer, so FIFO order holds per agent and across
// agents.
type deferredBuffer struct {
	cmds []command
	head int
}

func (b *deferredBuffer) push(c command) {
	b.cmds = append(b.cmds, c)
}

func (b *deferredBuffer) pop() (command, bool) {
	if b.head >= len(b.cmds) {
		return command{}, false
	}
	c := b.cmds[b.head]
	b.cmds[b.head] = command{}
	b.head++
	if b.head == len(b.cmds) {
		b.cmds = b.cmds[:0]
		b.head = 0
	}
	return c, true
}

func (b *deferredBuffer) len() int {
	return len(b.cmds) - b.head
}

// Buffered returns the number of deferred commands waiting for the next
// drain.
func (w *World) Buffered() int {
	return w.deferred.len()
}

// flush drains the deferred buffer. It does nothing while any action
// callback is on the stack, or when called from a command being drained;
// the outer drain picks up whatever that command buffered.
func (w *World) flush() {
	if w.flushing || w.depth > 0 {
		return
	}
	w.flushing = true
	defer func() { w.flushing = false }()

	for n := 0; ; n++ {
		if n >= w.cfg.MaxDeferredPerFlush {
			if rest := w.deferred.len(); rest > 0 {
				w.logger.Warn("actions: deferred drain limit reached",
					"frame", w.frame,
					"applied", n,
					"remaining", rest,
				)
			}
			return
		}
		c, ok := w.deferred.pop()
		if !ok {
			return
		}
		if err := c.apply(w); err != nil {
			w.logger.Debug("actions: deferred command failed",
				"agent", uint64(c.agent),
				"op", c.op,
				"code", string(sserr.GetCode(err)),
				"error", err,
			)
		}
	}
}

// DeferredActions buffers queue edits for one agent. It is the surface to
// use from inside action callbacks. Each method records a command that is
// applied, in call order, once no callback is on the stack: between two
// actions of an advance, after the agent's step in a tick, or at the end
// of an immediate operation.
//
// Commands for an agent that is torn down before the drain are discarded.
// Actions carried by a discarded Add receive OnDrop(NoAgent, DropDespawned).
type DeferredActions struct {
	w       *World
	agent   Agent
	cfg     AddConfig
	reverse bool
}

// Deferred returns the deferred edit surface for agent, with the add
// configuration set to [DefaultAddConfig] like [World.Actions]. An add
// that starts the queue does so when the command is applied, never from
// inside the callback that issued it. Use Start(false) to only enqueue.
func (w *World) Deferred(agent Agent) *DeferredActions {
	return &DeferredActions{w: w, agent: agent, cfg: DefaultAddConfig()}
}

func (d *DeferredActions) push(op string, apply func(w *World) error) *DeferredActions {
	d.w.deferred.push(command{agent: d.agent, op: op, apply: apply})
	return d
}

// Config sets the configuration for subsequent adds.
func (d *DeferredActions) Config(cfg AddConfig) *DeferredActions {
	d.cfg = cfg
	return d
}

// Order sets the insertion end for subsequent adds.
func (d *DeferredActions) Order(order AddOrder) *DeferredActions {
	d.cfg.Order = order
	return d
}

// Start sets whether subsequent adds start the queue when it is idle. The
// start happens when the command is applied.
func (d *DeferredActions) Start(start bool) *DeferredActions {
	d.cfg.Start = start
	return d
}

// Repeat sets whether subsequently added actions repeat. See
// [AddConfig.Repeat].
func (d *DeferredActions) Repeat(repeat bool) *DeferredActions {
	d.cfg.Repeat = repeat
	return d
}

// Reverse flips the order of every later AddMany batch.
func (d *DeferredActions) Reverse() *DeferredActions {
	d.reverse = !d.reverse
	return d
}

// Add buffers adding a single action.
func (d *DeferredActions) Add(action Action) *DeferredActions {
	return d.AddMany(action)
}

// AddMany buffers adding actions as one batch.
func (d *DeferredActions) AddMany(actions ...Action) *DeferredActions {
	cfg, agent := d.cfg, d.agent
	list := append([]Action(nil), actions...)
	if d.reverse {
		slices.Reverse(list)
	}
	return d.push("add", func(w *World) error {
		return w.addActions(agent, cfg, list)
	})
}

// Next buffers a Next.
func (d *DeferredActions) Next() *DeferredActions {
	agent := d.agent
	return d.push("next", func(w *World) error { return w.Actions(agent).Next().Err() })
}

// Done buffers a Done.
func (d *DeferredActions) Done() *DeferredActions {
	agent := d.agent
	return d.push("done", func(w *World) error { return w.Actions(agent).Done().Err() })
}

// Cancel buffers a Cancel.
func (d *DeferredActions) Cancel() *DeferredActions {
	agent := d.agent
	return d.push("cancel", func(w *World) error { return w.Actions(agent).Cancel().Err() })
}

// Pause buffers a Pause.
func (d *DeferredActions) Pause() *DeferredActions {
	agent := d.agent
	return d.push("pause", func(w *World) error { return w.Actions(agent).Pause().Err() })
}

// Resume buffers a Resume.
func (d *DeferredActions) Resume() *DeferredActions {
	agent := d.agent
	return d.push("resume", func(w *World) error { return w.Actions(agent).Resume().Err() })
}

// Skip buffers a Skip(n).
func (d *DeferredActions) Skip(n int) *DeferredActions {
	agent := d.agent
	return d.push("skip", func(w *World) error { return w.Actions(agent).Skip(n).Err() })
}

// Clear buffers a Clear.
func (d *DeferredActions) Clear() *DeferredActions {
	agent := d.agent
	return d.push("clear", func(w *World) error { return w.Actions(agent).Clear().Err() })
}

// Custom buffers fn to run at drain time with the world. fn runs even if
// the agent has been torn down in the meantime.
func (d *DeferredActions) Custom(fn func(w *World)) *DeferredActions {
	return d.push("custom", func(w *World) error {
		fn(w)
		return nil
	})
}
