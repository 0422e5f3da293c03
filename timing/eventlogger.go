package timing

import (
	"reflect"

	"go.uber.org/zap"
)

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger returns an EventLogger writing into the logger.
func NewEventLogger(logger *zap.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

type named interface {
	Name() string
}

// Func logs the event.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	handlerName := reflect.TypeOf(evt.Handler()).String()
	if n, ok := evt.Handler().(named); ok {
		handlerName = n.Name()
	}

	h.logger.Debug("event",
		zap.Uint64("step", evt.Time()),
		zap.Stringer("type", reflect.TypeOf(evt)),
		zap.String("handler", handlerName),
	)
}
