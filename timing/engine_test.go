package timing

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type labeledEvent struct {
	*EventBase
	label string
}

func newLabeledEvent(label string, t Step, h Handler) labeledEvent {
	return labeledEvent{EventBase: NewEventBase(t, h), label: label}
}

func newSecondaryLabeledEvent(label string, t Step, h Handler) labeledEvent {
	evt := newLabeledEvent(label, t, h)
	evt.secondary = true

	return evt
}

type recordingHandler struct {
	engine   Engine
	calls    []string
	times    []Step
	schedule map[string][]Event
	fail     map[string]error
}

func (h *recordingHandler) Handle(e Event) error {
	evt := e.(labeledEvent)
	h.calls = append(h.calls, evt.label)
	h.times = append(h.times, h.engine.Now())

	if err, ok := h.fail[evt.label]; ok {
		return err
	}

	for _, next := range h.schedule[evt.label] {
		h.engine.Schedule(next)
	}

	return nil
}

var _ = Describe("SerialEngine", func() {
	var (
		engine  *SerialEngine
		handler *recordingHandler
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		handler = &recordingHandler{engine: engine}
	})

	It("should run events in step order", func() {
		handler.schedule = map[string][]Event{
			"b": {
				newLabeledEvent("d", 3, handler),
				newLabeledEvent("e", 5, handler),
			},
		}

		engine.Schedule(newLabeledEvent("c", 4, handler))
		engine.Schedule(newLabeledEvent("b", 2, handler))

		Expect(engine.Run()).To(Succeed())

		Expect(handler.calls).To(Equal([]string{"b", "d", "c", "e"}))
		Expect(handler.times).To(Equal([]Step{2, 3, 4, 5}))
		Expect(engine.Now()).To(Equal(Step(5)))
	})

	It("should keep the push order of same-step events", func() {
		engine.Schedule(newLabeledEvent("first", 1, handler))
		engine.Schedule(newLabeledEvent("second", 1, handler))
		engine.Schedule(newLabeledEvent("third", 1, handler))

		Expect(engine.Run()).To(Succeed())

		Expect(handler.calls).To(Equal([]string{"first", "second", "third"}))
	})

	It("should run secondary events after primary events", func() {
		engine.Schedule(newSecondaryLabeledEvent("secondary", 2, handler))
		engine.Schedule(newLabeledEvent("primary", 2, handler))
		engine.Schedule(newLabeledEvent("early", 1, handler))

		Expect(engine.Run()).To(Succeed())

		Expect(handler.calls).To(Equal([]string{"early", "primary", "secondary"}))
	})

	It("should panic when scheduling into the past", func() {
		engine.Schedule(newLabeledEvent("a", 10, handler))
		Expect(engine.Run()).To(Succeed())

		Expect(func() {
			engine.Schedule(newLabeledEvent("late", 9, handler))
		}).To(Panic())
	})

	It("should stop at the first handler error", func() {
		boom := errors.New("boom")
		handler.fail = map[string]error{"b": boom}

		engine.Schedule(newLabeledEvent("a", 1, handler))
		engine.Schedule(newLabeledEvent("b", 2, handler))
		engine.Schedule(newLabeledEvent("c", 3, handler))

		err := engine.Run()

		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("step 2"))
		Expect(handler.calls).To(Equal([]string{"a", "b"}))
	})

	It("should invoke hooks around every event", func() {
		var positions []string

		engine.AcceptHook(HookFunc(func(ctx HookCtx) {
			evt := ctx.Item.(labeledEvent)
			positions = append(positions, ctx.Pos.Name+":"+evt.label)
		}))

		engine.Schedule(newLabeledEvent("a", 1, handler))
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal([]string{"BeforeEvent:a", "AfterEvent:a"}))
	})

	It("should pause and continue", func() {
		engine.Pause()
		Expect(engine.IsPaused()).To(BeTrue())

		engine.Schedule(newLabeledEvent("a", 1, handler))

		done := make(chan error)
		go func() { done <- engine.Run() }()

		Consistently(done, "50ms").ShouldNot(Receive())

		engine.Continue()
		Expect(engine.IsPaused()).To(BeFalse())
		Eventually(done).Should(Receive(BeNil()))
		Expect(handler.calls).To(Equal([]string{"a"}))
	})

	It("should stop between events", func() {
		for i := 1; i <= 5; i++ {
			engine.Schedule(newLabeledEvent(fmt.Sprint(i), Step(i), handler))
		}

		engine.AcceptHook(HookFunc(func(ctx HookCtx) {
			if ctx.Pos == HookPosAfterEvent && ctx.Item.(labeledEvent).label == "2" {
				engine.Stop()
			}
		}))

		Expect(engine.Run()).To(MatchError(ErrStopped))
		Expect(handler.calls).To(Equal([]string{"1", "2"}))
		Expect(engine.Now()).To(Equal(Step(2)))
		Expect(engine.IsStopped()).To(BeTrue())
	})

	It("should not run anything once stopped", func() {
		engine.Stop()
		engine.Schedule(newLabeledEvent("a", 1, handler))

		Expect(engine.Run()).To(MatchError(ErrStopped))
		Expect(handler.calls).To(BeEmpty())
	})

	It("should release a paused engine when stopped", func() {
		engine.Pause()
		engine.Schedule(newLabeledEvent("a", 1, handler))

		done := make(chan error)
		go func() { done <- engine.Run() }()

		Consistently(done, "50ms").ShouldNot(Receive())

		engine.Stop()
		Eventually(done).Should(Receive(MatchError(ErrStopped)))
		Expect(engine.IsPaused()).To(BeFalse())
		Expect(handler.calls).To(BeEmpty())

		engine.Pause()
		Expect(engine.IsPaused()).To(BeFalse())
	})
})

var _ = Describe("HookableBase", func() {
	type countingHook struct{ n int }

	It("should reject duplicated hooks", func() {
		h := &HookableBase{}
		hook := &EventLogger{}

		h.AcceptHook(hook)

		Expect(func() { h.AcceptHook(hook) }).To(Panic())
		Expect(h.NumHooks()).To(Equal(1))
	})

	It("should accept several hook funcs", func() {
		h := &HookableBase{}
		counter := &countingHook{}
		inc := func(HookCtx) { counter.n++ }

		h.AcceptHook(HookFunc(inc))
		h.AcceptHook(HookFunc(inc))
		h.InvokeHook(HookCtx{})

		Expect(counter.n).To(Equal(2))
	})

	It("should accept hook values that cannot be compared", func() {
		h := &HookableBase{}
		hook := taggedHook{tags: []string{"a"}}

		Expect(func() {
			h.AcceptHook(hook)
			h.AcceptHook(hook)
		}).NotTo(Panic())
		Expect(h.NumHooks()).To(Equal(2))
	})

	It("should reject duplicated comparable hook values", func() {
		h := &HookableBase{}

		h.AcceptHook(namedHook("a"))
		h.AcceptHook(namedHook("b"))

		Expect(func() { h.AcceptHook(namedHook("a")) }).To(Panic())
		Expect(h.NumHooks()).To(Equal(2))
	})
})

type taggedHook struct {
	tags []string
}

func (taggedHook) Func(HookCtx) {}

type namedHook string

func (namedHook) Func(HookCtx) {}
