package fixtures

import (
	"fmt"

	"github.com/StricklySoft/seqactions/pkg/actions"
)

// Callback names recorded by [RecordingAction].
const (
	CallbackAdd    = "add"
	CallbackStart  = "start"
	CallbackPoll   = "poll"
	CallbackStop   = "stop"
	CallbackRemove = "remove"
	CallbackDrop   = "drop"
)

// Event is one recorded callback.
type Event struct {
	Name     string
	Callback string
	Agent    actions.Agent
	Reason   string
}

// String renders the event the way [Recorder.Log] does, e.g.
// "A.start" or "A.stop(finished)".
func (e Event) String() string {
	if e.Reason == "" {
		return e.Name + "." + e.Callback
	}
	return fmt.Sprintf("%s.%s(%s)", e.Name, e.Callback, e.Reason)
}

// Recorder collects callbacks from any number of actions in call order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) record(name, callback string, agent actions.Agent, reason string) {
	r.Events = append(r.Events, Event{Name: name, Callback: callback, Agent: agent, Reason: reason})
}

// Log returns the recorded events rendered as strings.
func (r *Recorder) Log() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.String()
	}
	return out
}

// LogFor returns the rendered events of the named action only.
func (r *Recorder) LogFor(name string) []string {
	var out []string
	for _, e := range r.Events {
		if e.Name == name {
			out = append(out, e.String())
		}
	}
	return out
}

// For returns the events of the named action only.
func (r *Recorder) For(name string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}

// CheckLifecycle verifies that every action in events observed its
// callbacks in the order
//
//	add → ( start → poll* → stop )* → remove → drop
//
// where only a paused stop, or a finished stop of one of the repeating
// actions, may be followed by another start. An action that was rejected
// before entering a queue may observe a lone drop. If complete is set,
// every action must have reached its drop.
func CheckLifecycle(events []Event, complete bool, repeating ...string) error {
	const (
		fresh    = ""
		added    = "added"
		running  = "running"
		paused   = "paused"
		finished = "finished"
		stopped  = "stopped"
		removed  = "removed"
		dropped  = "dropped"
	)
	state := make(map[string]string)
	var order []string
	repeats := make(map[string]bool, len(repeating))
	for _, name := range repeating {
		repeats[name] = true
	}

	for i, e := range events {
		cur, seen := state[e.Name]
		if !seen {
			order = append(order, e.Name)
		}
		next := ""
		switch {
		case cur == fresh && e.Callback == CallbackAdd:
			next = added
		case cur == fresh && e.Callback == CallbackDrop:
			next = dropped
		case (cur == added || cur == paused || cur == finished) && e.Callback == CallbackStart:
			next = running
		case cur == running && e.Callback == CallbackPoll:
			next = running
		case cur == running && e.Callback == CallbackStop:
			next = stopped
			switch {
			case e.Reason == string(actions.StopPaused):
				next = paused
			case e.Reason == string(actions.StopFinished) && repeats[e.Name]:
				next = finished
			}
		case (cur == added || cur == paused || cur == finished || cur == stopped) && e.Callback == CallbackRemove:
			next = removed
		case cur == removed && e.Callback == CallbackDrop:
			next = dropped
		default:
			return fmt.Errorf("event %d: %s not allowed after state %q", i, e, cur)
		}
		state[e.Name] = next
	}

	if complete {
		for _, name := range order {
			if state[name] != dropped {
				return fmt.Errorf("action %s ended in state %q, want dropped", name, state[name])
			}
		}
	}
	return nil
}
