package driver

import (
	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

// Builder can build Steppers.
type Builder struct {
	engine    timing.Engine
	querier   schedule.Querier
	partial   bool
	startStep timing.Step
	numSteps  uint64
}

// MakeBuilder creates a builder for a stepper that publishes 16 frames
// starting from step 0.
func MakeBuilder() Builder {
	return Builder{
		numSteps: 16,
	}
}

// WithEngine sets the engine that drives the stepper.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithQuerier sets the schedule the stepper queries.
func (b Builder) WithQuerier(q schedule.Querier) Builder {
	b.querier = q
	return b
}

// WithPartialFill makes the frames carry fill fractions.
func (b Builder) WithPartialFill(partial bool) Builder {
	b.partial = partial
	return b
}

// WithStartStep sets the step of the first frame.
func (b Builder) WithStartStep(step timing.Step) Builder {
	b.startStep = step
	return b
}

// WithSteps sets the number of frames to publish. Zero means the stepper
// runs until the engine is stopped.
func (b Builder) WithSteps(n uint64) Builder {
	b.numSteps = n
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		panic("driver: engine is not set")
	}

	if b.querier == nil {
		panic("driver: querier is not set")
	}
}

// Build creates a Stepper with the given name.
func (b Builder) Build(name string) *Stepper {
	b.parametersMustBeValid()

	s := &Stepper{
		querier:   b.querier,
		partial:   b.partial,
		startStep: b.startStep,
		numSteps:  b.numSteps,
	}
	s.TickingComponent = timing.NewTickingComponent(name, b.engine, s)

	return s
}
