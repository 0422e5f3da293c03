package driver

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

func frameOf(ctx timing.HookCtx) (schedule.Frame, bool) {
	if ctx.Pos != HookPosFrame {
		return schedule.Frame{}, false
	}

	frame, ok := ctx.Item.(schedule.Frame)

	return frame, ok
}

// FrameLogger logs the flushes of every frame.
type FrameLogger struct {
	logger *zap.Logger
}

// NewFrameLogger creates a FrameLogger writing into the logger.
func NewFrameLogger(logger *zap.Logger) *FrameLogger {
	return &FrameLogger{logger: logger}
}

// Func logs one line per flushing bin.
func (h *FrameLogger) Func(ctx timing.HookCtx) {
	frame, ok := frameOf(ctx)
	if !ok {
		return
	}

	for _, ref := range frame.Flushing {
		h.logger.Debug("flush",
			zap.Uint64("step", frame.Step),
			zap.Int("level", ref.Level),
			zap.Int("bin", ref.Bin),
		)
	}
}

// FlushCounter exports the flushes observed in frames as prometheus metrics.
type FlushCounter struct {
	flushes *prometheus.CounterVec
	step    prometheus.Gauge
	frames  prometheus.Counter
}

// NewFlushCounter creates the metrics and registers them.
func NewFlushCounter(reg prometheus.Registerer) *FlushCounter {
	c := &FlushCounter{
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flushsched",
			Name:      "flushes_total",
			Help:      "Number of bin flushes observed, by level.",
		}, []string{"level"}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flushsched",
			Name:      "step",
			Help:      "Step of the last published frame.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flushsched",
			Name:      "frames_total",
			Help:      "Number of frames published.",
		}),
	}

	reg.MustRegister(c.flushes, c.step, c.frames)

	return c
}

// Func counts the flushes of a frame.
func (c *FlushCounter) Func(ctx timing.HookCtx) {
	frame, ok := frameOf(ctx)
	if !ok {
		return
	}

	c.frames.Inc()
	c.step.Set(float64(frame.Step))

	for _, ref := range frame.Flushing {
		c.flushes.WithLabelValues(strconv.Itoa(ref.Level)).Inc()
	}
}
