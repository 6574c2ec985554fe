package fixtures

import (
	"github.com/StricklySoft/seqactions/pkg/actions"
)

// RecordingAction is a configurable [actions.Action] that records every
// callback it receives. Hooks run after the callback is recorded.
type RecordingAction struct {
	Name string
	Rec  *Recorder

	// FinishOnStart makes OnStart report the action finished.
	FinishOnStart bool

	// PollsToFinish is the number of polls that report unfinished before
	// IsFinished returns true. Ignored when Forever is set.
	PollsToFinish int

	// Forever makes IsFinished always return false.
	Forever bool

	AddHook    func(agent actions.Agent, w *actions.World)
	StartHook  func(agent actions.Agent, w *actions.World)
	PollHook   func(agent actions.Agent, w *actions.World)
	StopHook   func(agent actions.Agent, w *actions.World, reason actions.StopReason)
	RemoveHook func(agent actions.Agent, w *actions.World)
	DropHook   func(agent actions.Agent, w *actions.World, reason actions.DropReason)

	polls int
}

var _ actions.Action = (*RecordingAction)(nil)

// NewAction returns an action that stays running until its first poll.
func NewAction(name string, rec *Recorder) *RecordingAction {
	return &RecordingAction{Name: name, Rec: rec}
}

// Instant returns an action whose OnStart reports it finished.
func Instant(name string, rec *Recorder) *RecordingAction {
	return &RecordingAction{Name: name, Rec: rec, FinishOnStart: true}
}

// Forever returns an action that never finishes on its own.
func Forever(name string, rec *Recorder) *RecordingAction {
	return &RecordingAction{Name: name, Rec: rec, Forever: true}
}

// Polls returns how many times IsFinished was called.
func (a *RecordingAction) Polls() int {
	return a.polls
}

func (a *RecordingAction) OnAdd(agent actions.Agent, w *actions.World) {
	a.Rec.record(a.Name, CallbackAdd, agent, "")
	if a.AddHook != nil {
		a.AddHook(agent, w)
	}
}

func (a *RecordingAction) OnStart(agent actions.Agent, w *actions.World) bool {
	a.Rec.record(a.Name, CallbackStart, agent, "")
	if a.StartHook != nil {
		a.StartHook(agent, w)
	}
	return a.FinishOnStart
}

func (a *RecordingAction) IsFinished(agent actions.Agent, w *actions.World) bool {
	a.Rec.record(a.Name, CallbackPoll, agent, "")
	a.polls++
	if a.PollHook != nil {
		a.PollHook(agent, w)
	}
	if a.Forever {
		return false
	}
	return a.polls > a.PollsToFinish
}

func (a *RecordingAction) OnStop(agent actions.Agent, w *actions.World, reason actions.StopReason) {
	a.Rec.record(a.Name, CallbackStop, agent, reason.String())
	if a.StopHook != nil {
		a.StopHook(agent, w, reason)
	}
}

func (a *RecordingAction) OnRemove(agent actions.Agent, w *actions.World) {
	a.Rec.record(a.Name, CallbackRemove, agent, "")
	if a.RemoveHook != nil {
		a.RemoveHook(agent, w)
	}
}

func (a *RecordingAction) OnDrop(agent actions.Agent, w *actions.World, reason actions.DropReason) {
	a.Rec.record(a.Name, CallbackDrop, agent, reason.String())
	if a.DropHook != nil {
		a.DropHook(agent, w, reason)
	}
}
