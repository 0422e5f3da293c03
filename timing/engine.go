package timing

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrStopped is returned by Run when the engine was stopped before the queue
// drained.
var ErrStopped = errors.New("timing: engine stopped")

// TimeTeller can be used to get the current step.
type TimeTeller interface {
	Now() Step
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine keeps the discrete event simulation running.
type Engine interface {
	Hookable
	EventScheduler

	// Run processes all the events until no event is left. It stops at the
	// first handler error and returns it.
	Run() error

	// Pause stops the engine from dispatching events until Continue is
	// called.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// Stop makes Run return ErrStopped after the event being handled. A
	// paused engine is resumed so that Run can return. A stopped engine
	// stays stopped.
	Stop()
}

// A SerialEngine is an Engine that always runs events one after another.
type SerialEngine struct {
	HookableBase

	timeLock       sync.RWMutex
	now            Step
	queue          EventQueue
	secondaryQueue EventQueue

	isPaused     bool
	isStopped    bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
	}
}

// Schedule registers an event to happen in the future. Scheduling an event
// earlier than the current step panics.
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt), evt.Time(), now,
		))
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
		return
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() Step {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t Step) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine.
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		if e.IsStopped() {
			return ErrStopped
		}

		if e.noMoreEvent() {
			return nil
		}

		err := e.runNextEvent()
		if err != nil {
			return err
		}
	}
}

func (e *SerialEngine) runNextEvent() error {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if e.IsStopped() {
		return ErrStopped
	}

	evt := e.nextEvent()
	e.writeNow(evt.Time())

	hookCtx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler().Handle(evt)
	if err != nil {
		return fmt.Errorf("step %d: %w", evt.Time(), err)
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return nil
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

func (e *SerialEngine) nextEvent() Event {
	if e.queue.Len() == 0 {
		return e.secondaryQueue.Pop()
	}

	if e.secondaryQueue.Len() == 0 {
		return e.queue.Pop()
	}

	primaryEvt := e.queue.Peek()
	secondaryEvt := e.secondaryQueue.Peek()

	if primaryEvt.Time() <= secondaryEvt.Time() {
		return e.queue.Pop()
	}

	return e.secondaryQueue.Pop()
}

// Pause prevents the SerialEngine from triggering more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused || e.isStopped {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Stop makes Run return ErrStopped. Pausing a stopped engine has no effect.
func (e *SerialEngine) Stop() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	e.isStopped = true

	if e.isPaused {
		e.pauseLock.Unlock()
		e.isPaused = false
	}
}

// IsStopped tells if Stop has been called.
func (e *SerialEngine) IsStopped() bool {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	return e.isStopped
}

// IsPaused tells if the engine is paused.
func (e *SerialEngine) IsPaused() bool {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	return e.isPaused
}

// Now returns the step of the event being handled, or of the last handled
// event.
func (e *SerialEngine) Now() Step {
	return e.readNow()
}
