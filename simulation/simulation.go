// Package simulation assembles the engine, the stepper, the recorder, and the
// monitor of a schedule run.
package simulation

import (
	"context"
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/flushsched/datarecording"
	"github.com/sarchlab/flushsched/driver"
	"github.com/sarchlab/flushsched/monitoring"
	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

// A Simulation steps a schedule with a serial engine and publishes every
// frame to its hooks.
type Simulation struct {
	id       string
	schedule monitoring.Schedule

	engine    *timing.SerialEngine
	stepper   *driver.Stepper
	navigator *driver.Navigator
	registry  *prometheus.Registry

	dataRecorder datarecording.DataRecorder
	outputPath   string

	monitor     *monitoring.Monitor
	listener    net.Listener
	progressBar *monitoring.ProgressBar
	keepServing bool
	served      bool
}

func (s *Simulation) startMonitor(port int, numSteps uint64) error {
	s.monitor = monitoring.NewMonitor().
		WithPortNumber(port).
		WithGatherer(s.registry)
	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterSchedule(s.schedule)
	s.monitor.RegisterNavigator(s.navigator)

	s.progressBar = s.monitor.CreateProgressBar(s.stepper.Name(), numSteps)
	s.stepper.AcceptHook(s.progressBar)

	listener, err := s.monitor.Listen()
	if err != nil {
		return err
	}

	s.listener = listener

	return nil
}

func (s *Simulation) followFrame(ctx timing.HookCtx) {
	if ctx.Pos != driver.HookPosFrame {
		return
	}

	s.navigator.Jump(ctx.Item.(schedule.Frame).Step)
}

// ID returns the ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the engine used in the simulation.
func (s *Simulation) Engine() *timing.SerialEngine {
	return s.engine
}

// Stepper returns the component that publishes the frames.
func (s *Simulation) Stepper() *driver.Stepper {
	return s.stepper
}

// Navigator returns the cursor that follows the last published frame.
func (s *Simulation) Navigator() *driver.Navigator {
	return s.navigator
}

// Registry returns the registry holding the metrics of the run.
func (s *Simulation) Registry() *prometheus.Registry {
	return s.registry
}

// DataRecorder returns the recorder, or nil if the run is not recorded.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// OutputPath returns the recorded file, or "" if the run is not recorded.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// Monitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns where the monitor is served, or "" if monitoring is
// off.
func (s *Simulation) MonitorURL() string {
	if s.listener == nil {
		return ""
	}

	return monitoring.URL(s.listener)
}

// AcceptFrameHook registers a hook that receives every frame.
func (s *Simulation) AcceptFrameHook(h timing.Hook) {
	s.stepper.AcceptHook(h)
}

// Run produces all the frames. With monitoring on, the server runs next to
// the engine and stops with it, or when the context is canceled if the
// simulation keeps serving. Canceling the context stops the engine after the
// frame being produced, resumes it if paused, and makes Run return the
// context error.
func (s *Simulation) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	if s.monitor != nil {
		s.served = true
		g.Go(func() error { return s.monitor.Serve(serveCtx, s.listener) })
	}

	g.Go(func() error {
		if !s.keepServing {
			defer stopServing()
		}

		stopEngine := context.AfterFunc(ctx, s.engine.Stop)
		defer stopEngine()

		s.stepper.Start()

		err := s.engine.Run()
		if errors.Is(err, timing.ErrStopped) && ctx.Err() != nil {
			return ctx.Err()
		}

		return err
	})

	err := g.Wait()

	if s.progressBar != nil {
		s.monitor.CompleteProgressBar(s.progressBar)
	}

	zap.L().Info("simulation finished",
		zap.String("id", s.id),
		zap.Uint64("frames", s.stepper.NumProduced()),
		zap.Uint64("last_step", s.engine.Now()),
		zap.Error(err))

	return err
}

// Terminate flushes and closes the recorder. It also releases the listener
// of a monitor that never served.
func (s *Simulation) Terminate() {
	if s.listener != nil && !s.served {
		_ = s.listener.Close()
	}

	if s.dataRecorder == nil {
		return
	}

	err := s.dataRecorder.Close()
	if err != nil {
		zap.L().Error("closing recorder", zap.Error(err))
	}
}
