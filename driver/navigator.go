package driver

import (
	"sync"

	"github.com/sarchlab/flushsched/timing"
)

// Navigator is the step counter of an interactive viewer. It is safe for
// concurrent use.
type Navigator struct {
	lock sync.Mutex
	step timing.Step
}

// NewNavigator creates a Navigator positioned at the given step.
func NewNavigator(step timing.Step) *Navigator {
	return &Navigator{step: step}
}

// Current returns the current step.
func (n *Navigator) Current() timing.Step {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.step
}

// Next advances by one step and returns the new step.
func (n *Navigator) Next() timing.Step {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.step < ^timing.Step(0) {
		n.step++
	}

	return n.step
}

// Prev goes back by one step and returns the new step. It stays at 0.
func (n *Navigator) Prev() timing.Step {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.step > 0 {
		n.step--
	}

	return n.step
}

// Jump moves to the given step.
func (n *Navigator) Jump(step timing.Step) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.step = step
}
