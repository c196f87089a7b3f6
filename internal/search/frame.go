package search

import (
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
	"github.com/robert-at-pretension-io/hdl-symex/internal/state"
)

// Frame is the traversal context of one module instance. Frames own their
// manager but only borrow the shared state.
type Frame struct {
	Manager  *manager.Manager
	State    *state.State
	Instance string
	Module   *hdl.Module

	// replay is set when the instance re-walks a path code from an entry
	// state and path condition it was already walked from
	replay bool
}

// NewFrame returns the frame of a root instance
func NewFrame(m *manager.Manager, st *state.State, instance string) *Frame {
	return &Frame{Manager: m, State: st, Instance: instance, Module: st.Module(instance)}
}

// Child returns a frame for a nested instance with a private manager
func (f *Frame) Child(instance string) *Frame {
	return &Frame{
		Manager:  f.Manager.NewChild(instance),
		State:    f.State,
		Instance: instance,
		Module:   f.State.Module(instance),
	}
}

// Outcome is what walking a frame reports to its caller
type Outcome struct {
	Abandon   bool
	Ignore    bool
	Violation bool

	Instance  string
	Assertion *manager.Assertion
	// Condition is the term that holds when the assertion fails
	Condition *smt.Term
}

// Merge folds a callee outcome into the caller's. The first violation wins.
func (o Outcome) Merge(other Outcome) Outcome {
	o.Abandon = o.Abandon || other.Abandon
	o.Ignore = o.Ignore || other.Ignore
	if other.Violation && !o.Violation {
		o.Violation = true
		o.Instance = other.Instance
		o.Assertion = other.Assertion
		o.Condition = other.Condition
	}
	return o
}

// Stop reports whether the caller must stop walking
func (o Outcome) Stop() bool {
	return o.Abandon || o.Violation
}

// Stack is the explicit call stack of frames of one iteration
type Stack struct {
	frames []*Frame
}

func (s *Stack) Push(f *Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes the top frame and returns it
func (s *Stack) Pop() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *Stack) Depth() int {
	return len(s.frames)
}

// Return pops the top frame and applies its outcome to the caller's flags
func (s *Stack) Return(out Outcome) {
	s.Pop()
	caller := s.Top()
	if caller == nil {
		return
	}
	if out.Ignore {
		caller.Manager.Ignore = true
	}
	if out.Abandon {
		caller.Manager.Abandon = true
	}
	if out.Violation {
		caller.Manager.AssertionViolation = true
	}
}
