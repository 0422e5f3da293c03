package driver

import (
	"math"

	"go.uber.org/zap"

	"github.com/sarchlab/flushsched/datarecording"
	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

// Table names used by the FrameRecorder.
const (
	ParameterTable = "parameters"
	BinStateTable  = "bin_state"
)

// MaxRecordedStep is the last step that fits the step column.
const MaxRecordedStep = math.MaxInt64

// ParameterEntry is the row describing the recorded configuration.
type ParameterEntry struct {
	MemorySize      int64
	DiskSize        int64
	ExpansionFactor int64
	TimeStretch     float64
	DepthFormula    string
	Depth           int
	NumBins         int
}

// BinStateEntry is the row of one bin at one step.
type BinStateEntry struct {
	Step     int64
	Level    int
	Bin      int
	State    string
	Fraction float64
}

// FrameRecorder is a hook that writes every frame into a DataRecorder.
type FrameRecorder struct {
	recorder  datarecording.DataRecorder
	skipEmpty bool
}

// NewFrameRecorder creates the tables and records the parameters. With
// skipEmpty set, empty bins are not recorded.
func NewFrameRecorder(
	recorder datarecording.DataRecorder,
	params schedule.Parameters,
	skipEmpty bool,
) *FrameRecorder {
	recorder.CreateTable(ParameterTable, ParameterEntry{})
	recorder.CreateTable(BinStateTable, BinStateEntry{})

	recorder.InsertData(ParameterTable, ParameterEntry{
		MemorySize:      params.MemorySize,
		DiskSize:        params.DiskSize,
		ExpansionFactor: params.ExpansionFactor,
		TimeStretch:     params.TimeStretch,
		DepthFormula:    string(params.DepthFormula),
		Depth:           params.Depth,
		NumBins:         params.NumBins,
	})

	return &FrameRecorder{
		recorder:  recorder,
		skipEmpty: skipEmpty,
	}
}

// Func records the bins of a frame. Frames past MaxRecordedStep are dropped.
func (r *FrameRecorder) Func(ctx timing.HookCtx) {
	frame, ok := frameOf(ctx)
	if !ok {
		return
	}

	if frame.Step > MaxRecordedStep {
		zap.L().Warn("frame not recorded", zap.Uint64("step", frame.Step))
		return
	}

	for level, row := range frame.States {
		for bin, state := range row {
			if r.skipEmpty && state.Kind == schedule.Empty {
				continue
			}

			r.recorder.InsertData(BinStateTable, BinStateEntry{
				Step:     int64(frame.Step),
				Level:    level,
				Bin:      bin,
				State:    state.Kind.String(),
				Fraction: state.Fraction,
			})
		}
	}
}
