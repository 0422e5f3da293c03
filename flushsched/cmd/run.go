package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/flushsched/driver"
	"github.com/sarchlab/flushsched/render"
	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/simulation"
	"github.com/sarchlab/flushsched/timing"
)

func newRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Step through the schedule and publish every frame.",
		Long: `run drives the schedule with a discrete step engine. Every ` +
			`frame can be drawn, recorded into a SQLite file, and served ` +
			`by the monitoring server together with Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: runSchedule,
	}

	flags := runCmd.Flags()
	flags.Uint64("steps", 16, "Number of steps to run.")
	flags.Uint64("start", 0, "Step of the first frame.")
	flags.Bool("grid", false, "Draw every frame.")
	flags.String("record", "",
		"Record the frames into FILE.sqlite3. Use - for a generated name.")
	flags.Bool("skip-empty", false, "Do not record empty bins.")
	flags.Bool("monitor", false, "Serve the run over HTTP.")
	flags.Int("port", 0, "Port of the monitoring server. 0 picks one.")
	flags.Bool("open", false, "Open the monitoring server in a browser.")
	flags.Bool("wait", false,
		"Keep the monitoring server up after the run until interrupted.")

	return runCmd
}

func buildSimulation(cmd *cobra.Command) (*simulation.Simulation, error) {
	c, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	steps, _ := flags.GetUint64("steps")
	start, _ := flags.GetUint64("start")
	partial, _ := flags.GetBool("partial")
	verbose, _ := flags.GetBool("verbose")
	record, _ := flags.GetString("record")
	skipEmpty, _ := flags.GetBool("skip-empty")
	monitor, _ := flags.GetBool("monitor")
	port, _ := flags.GetInt("port")
	wait, _ := flags.GetBool("wait")

	if steps == 0 {
		return nil, errors.New("run needs a positive --steps")
	}

	if wait && !monitor {
		return nil, errors.New("--wait needs --monitor")
	}

	b := simulation.MakeBuilder().
		WithSchedule(c).
		WithSteps(steps).
		WithStartStep(start).
		WithPartialFill(partial)

	if verbose {
		b = b.WithEventLogging()
	}

	switch record {
	case "":
	case "-":
		b = b.WithRecording("", skipEmpty)
	default:
		b = b.WithRecording(record, skipEmpty)
	}

	if monitor {
		b = b.WithMonitoring(port)
	}

	if wait {
		b = b.WithKeepServing()
	}

	return b.Build()
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	s, err := buildSimulation(cmd)
	if err != nil {
		return err
	}
	defer s.Terminate()

	out := cmd.OutOrStdout()

	if grid, _ := cmd.Flags().GetBool("grid"); grid {
		s.AcceptFrameHook(gridPrinter(out))
	}

	if url := s.MonitorURL(); url != "" {
		fmt.Fprintf(out, "monitoring at %s\n", url)

		if open, _ := cmd.Flags().GetBool("open"); open {
			openBrowser(url)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = s.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprint(out, "interrupted, ")
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "produced %d frames, last step %d\n",
		s.Stepper().NumProduced(), s.Engine().Now())

	if path := s.OutputPath(); path != "" {
		fmt.Fprintf(out, "recorded into %s\n", path)
	}

	return nil
}

func gridPrinter(out io.Writer) timing.Hook {
	return timing.HookFunc(func(ctx timing.HookCtx) {
		if ctx.Pos != driver.HookPosFrame {
			return
		}

		frame := ctx.Item.(schedule.Frame)
		fmt.Fprintf(out, "step %d\n", frame.Step)

		if err := render.Grid(out, frame); err != nil {
			zap.L().Warn("grid not drawn", zap.Error(err))
		}
	})
}

func openBrowser(url string) {
	err := browser.OpenURL(url)
	if err != nil {
		zap.L().Warn("cannot open browser", zap.Error(err))
	}
}
