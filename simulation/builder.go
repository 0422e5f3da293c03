package simulation

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/flushsched/datarecording"
	"github.com/sarchlab/flushsched/driver"
	"github.com/sarchlab/flushsched/monitoring"
	"github.com/sarchlab/flushsched/timing"
)

// Builder can be used to build a simulation.
type Builder struct {
	schedule       monitoring.Schedule
	numSteps       uint64
	startStep      uint64
	partial        bool
	logEvents      bool
	recordOn       bool
	skipEmpty      bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
	keepServing    bool
}

// MakeBuilder creates a new builder for a 16-step run without recording or
// monitoring.
func MakeBuilder() Builder {
	return Builder{
		numSteps: 16,
	}
}

// WithSchedule sets the schedule to run.
func (b Builder) WithSchedule(s monitoring.Schedule) Builder {
	b.schedule = s
	return b
}

// WithSteps sets the number of frames to produce.
func (b Builder) WithSteps(n uint64) Builder {
	b.numSteps = n
	return b
}

// WithStartStep sets the step of the first frame.
func (b Builder) WithStartStep(step uint64) Builder {
	b.startStep = step
	return b
}

// WithPartialFill makes the frames carry fill fractions.
func (b Builder) WithPartialFill(partial bool) Builder {
	b.partial = partial
	return b
}

// WithEventLogging logs every engine event at debug level.
func (b Builder) WithEventLogging() Builder {
	b.logEvents = true
	return b
}

// WithRecording records the frames into a SQLite file. An empty file name
// generates one from the simulation ID.
func (b Builder) WithRecording(filename string, skipEmpty bool) Builder {
	b.recordOn = true
	b.outputFileName = filename
	b.skipEmpty = skipEmpty

	return b
}

// WithMonitoring serves the simulation over HTTP on the given port, 0
// picking a free one.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithKeepServing keeps the monitoring server up after the last frame until
// the context of Run is canceled.
func (b Builder) WithKeepServing() Builder {
	b.keepServing = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.schedule == nil {
		panic("simulation: schedule is not set")
	}

	if b.numSteps == 0 {
		panic("simulation: the number of steps must be positive")
	}

	if b.keepServing && !b.monitorOn {
		panic("simulation: keep serving requires monitoring")
	}
}

// Build builds the simulation. The monitoring server starts listening, but
// only serves once Run is called.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	if b.recordOn && !b.stepsFitRecording() {
		return nil, fmt.Errorf(
			"simulation: steps %d to %d cannot be recorded, the last "+
				"recordable step is %d",
			b.startStep, b.lastStep(), uint64(driver.MaxRecordedStep))
	}

	s := &Simulation{
		id:          xid.New().String(),
		schedule:    b.schedule,
		registry:    prometheus.NewRegistry(),
		navigator:   driver.NewNavigator(b.startStep),
		keepServing: b.keepServing,
	}

	s.engine = timing.NewSerialEngine()
	if b.logEvents {
		s.engine.AcceptHook(timing.NewEventLogger(zap.L()))
	}

	s.stepper = driver.MakeBuilder().
		WithEngine(s.engine).
		WithQuerier(b.schedule).
		WithPartialFill(b.partial).
		WithStartStep(b.startStep).
		WithSteps(b.numSteps).
		Build("Stepper")

	s.stepper.AcceptHook(driver.NewFrameLogger(zap.L()))
	s.stepper.AcceptHook(driver.NewFlushCounter(s.registry))
	s.stepper.AcceptHook(timing.HookFunc(s.followFrame))

	if b.recordOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "flushsched_run_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
		s.outputPath = datarecording.FileName(outputPath)
		s.stepper.AcceptHook(driver.NewFrameRecorder(
			s.dataRecorder, b.schedule.Parameters(), b.skipEmpty))
	}

	if b.monitorOn {
		err := s.startMonitor(b.monitorPort, b.numSteps)
		if err != nil {
			s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) lastStep() uint64 {
	if b.numSteps-1 > math.MaxUint64-b.startStep {
		return math.MaxUint64
	}

	return b.startStep + b.numSteps - 1
}

func (b Builder) stepsFitRecording() bool {
	return b.numSteps-1 <= driver.MaxRecordedStep &&
		b.startStep <= driver.MaxRecordedStep-(b.numSteps-1)
}
