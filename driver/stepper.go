// Package driver steps a schedule through time and publishes one frame per
// step to its hooks.
package driver

import (
	"fmt"

	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

// HookPosFrame is triggered once per step with the schedule.Frame of that
// step as the item.
var HookPosFrame = &timing.HookPos{Name: "Frame"}

// Stepper is a ticking component that queries the schedule at every step of
// the engine.
type Stepper struct {
	*timing.TickingComponent

	querier   schedule.Querier
	partial   bool
	startStep timing.Step
	numSteps  uint64
	produced  uint64
}

// Tick computes and publishes the frame of the current step.
func (s *Stepper) Tick() (bool, error) {
	now := s.Now()

	frame, err := s.querier.Frame(now, s.partial)
	if err != nil {
		return false, fmt.Errorf("stepper %s: %w", s.Name(), err)
	}

	s.InvokeHook(timing.HookCtx{
		Domain: s,
		Pos:    HookPosFrame,
		Item:   frame,
	})

	s.produced++

	return s.numSteps == 0 || s.produced < s.numSteps, nil
}

// Start schedules the first frame.
func (s *Stepper) Start() {
	s.TickAt(s.startStep)
}

// NumProduced returns the number of frames published so far.
func (s *Stepper) NumProduced() uint64 {
	return s.produced
}

// TotalSteps returns the number of frames the stepper publishes, 0 meaning
// it never stops.
func (s *Stepper) TotalSteps() uint64 {
	return s.numSteps
}
