package timing

import "sync"

// TickEvent is a generic event that a component can use to update its state
// once per step.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent.
func MakeTickEvent(handler Handler, t Step) TickEvent {
	return TickEvent{EventBase: *NewEventBase(t, handler)}
}

// A Ticker is an object that updates states with ticks. It returns true if
// it wants to be ticked again at the next step.
type Ticker interface {
	Tick() (madeProgress bool, err error)
}

// TickScheduler can help schedule tick events.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Engine    Engine
	secondary bool

	hasScheduled bool
	nextTickTime Step
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(handler Handler, engine Engine) *TickScheduler {
	return &TickScheduler{
		handler: handler,
		Engine:  engine,
	}
}

// NewSecondaryTickScheduler creates a scheduler that always schedules
// secondary tick events.
func NewSecondaryTickScheduler(handler Handler, engine Engine) *TickScheduler {
	ticker := NewTickScheduler(handler, engine)
	ticker.secondary = true

	return ticker
}

// TickNow schedules a tick event at the current step.
func (t *TickScheduler) TickNow() {
	t.TickAt(t.Now())
}

// TickLater schedules a tick event at the step after the current one.
func (t *TickScheduler) TickLater() {
	t.TickAt(t.Now() + 1)
}

// TickAt schedules a tick event at the given step unless a tick at or after
// that step is already pending.
func (t *TickScheduler) TickAt(step Step) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.hasScheduled && t.nextTickTime >= step {
		return
	}

	t.hasScheduled = true
	t.nextTickTime = step

	tick := MakeTickEvent(t.handler, step)
	tick.secondary = t.secondary

	t.Engine.Schedule(tick)
}

// Now returns the current step of the engine.
func (t *TickScheduler) Now() Step {
	return t.Engine.Now()
}

// ComponentBase provides the name and the hooks of a component.
type ComponentBase struct {
	HookableBase

	name string
}

// NewComponentBase creates a ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	return &ComponentBase{name: name}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// TickingComponent is a type of component that updates state from step to
// step. A programmer only needs to program a Tick function.
type TickingComponent struct {
	*ComponentBase
	*TickScheduler

	ticker Ticker
}

// Handle triggers the tick function of the TickingComponent.
func (c *TickingComponent) Handle(_ Event) error {
	madeProgress, err := c.ticker.Tick()
	if err != nil {
		return err
	}

	if madeProgress {
		c.TickLater()
	}

	return nil
}

// NewTickingComponent creates a new ticking component.
func NewTickingComponent(
	name string,
	engine Engine,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewTickScheduler(tc, engine)
	tc.ComponentBase = NewComponentBase(name)
	tc.ticker = ticker

	return tc
}

// NewSecondaryTickingComponent creates a ticking component whose ticks run
// after all primary events of the same step.
func NewSecondaryTickingComponent(
	name string,
	engine Engine,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewSecondaryTickScheduler(tc, engine)
	tc.ComponentBase = NewComponentBase(name)
	tc.ticker = ticker

	return tc
}
