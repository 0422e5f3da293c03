package simulation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/flushsched/datarecording"
	"github.com/sarchlab/flushsched/driver"
	"github.com/sarchlab/flushsched/schedule"
	"github.com/sarchlab/flushsched/timing"
)

var _ = Describe("Simulation", func() {
	var (
		config *schedule.Config
		sim    *Simulation
		frames []schedule.Frame
	)

	BeforeEach(func() {
		var err error
		config, err = schedule.Resolve(5, 20, 2, 1)
		Expect(err).NotTo(HaveOccurred())

		frames = nil
	})

	AfterEach(func() {
		if sim != nil {
			sim.Terminate()
			sim = nil
		}
	})

	collect := timing.HookFunc(func(ctx timing.HookCtx) {
		if ctx.Pos == driver.HookPosFrame {
			frames = append(frames, ctx.Item.(schedule.Frame))
		}
	})

	It("should produce the frames of the schedule", func() {
		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(5).
			WithStartStep(3).
			WithPartialFill(true).
			Build()
		Expect(err).NotTo(HaveOccurred())

		sim.AcceptFrameHook(collect)

		Expect(sim.Run(context.Background())).To(Succeed())

		Expect(frames).To(HaveLen(5))
		for k, f := range frames {
			expected, err := config.Frame(uint64(3+k), true)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(expected))
		}

		Expect(sim.Navigator().Current()).To(Equal(uint64(7)))
		Expect(sim.Engine().Now()).To(Equal(uint64(7)))
		Expect(sim.DataRecorder()).To(BeNil())
		Expect(sim.Monitor()).To(BeNil())
		Expect(sim.MonitorURL()).To(BeEmpty())
	})

	It("should count flushes in its registry", func() {
		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(8).
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(sim.Run(context.Background())).To(Succeed())

		count, err := testutil.GatherAndCount(
			sim.Registry(), "flushsched_frames_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("should record the frames", func() {
		path := filepath.Join(GinkgoT().TempDir(), "sim")

		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(2).
			WithRecording(path, false).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(sim.OutputPath()).To(Equal(path + ".sqlite3"))

		Expect(sim.Run(context.Background())).To(Succeed())
		sim.Terminate()

		reader, err := datarecording.NewReader(sim.OutputPath())
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(driver.BinStateTable, driver.BinStateEntry{})
		_, total, err := reader.Query(context.Background(),
			driver.BinStateTable, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2 * (config.Depth() + 1) * config.NumBins()))

		sim = nil
	})

	It("should refuse to record steps past the step column", func() {
		path := filepath.Join(GinkgoT().TempDir(), "sim")

		_, err := MakeBuilder().
			WithSchedule(config).
			WithSteps(2).
			WithStartStep(driver.MaxRecordedStep).
			WithRecording(path, false).
			Build()
		Expect(err).To(MatchError(ContainSubstring("cannot be recorded")))

		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(1).
			WithStartStep(driver.MaxRecordedStep).
			WithRecording(path, false).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should serve while running", func() {
		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(2).
			WithMonitoring(0).
			WithKeepServing().
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(sim.MonitorURL()).To(HavePrefix("http://localhost:"))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- sim.Run(ctx) }()

		Eventually(func() uint64 {
			rsp, err := http.Get(sim.MonitorURL() + "/api/cursor")
			if err != nil {
				return 0
			}
			defer rsp.Body.Close()

			body, _ := io.ReadAll(rsp.Body)

			var cursor struct {
				Step uint64 `json:"step"`
			}
			_ = json.Unmarshal(body, &cursor)

			return cursor.Step
		}, time.Second).Should(Equal(uint64(1)))

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should not run with a canceled context", func() {
		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(1 << 40).
			Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan error, 1)
		go func() { done <- sim.Run(ctx) }()

		Eventually(done, time.Second).Should(Receive(MatchError(context.Canceled)))
		Expect(sim.Stepper().NumProduced()).To(BeNumerically("<", 1<<40))
	})

	It("should stop when the context is canceled mid-run", func() {
		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(1 << 40).
			Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sim.AcceptFrameHook(timing.HookFunc(func(hookCtx timing.HookCtx) {
			if hookCtx.Pos != driver.HookPosFrame {
				return
			}

			if hookCtx.Item.(schedule.Frame).Step == 10 {
				cancel()
			}
		}))

		done := make(chan error, 1)
		go func() { done <- sim.Run(ctx) }()

		Eventually(done, time.Second).Should(Receive(MatchError(context.Canceled)))
		Expect(sim.Stepper().NumProduced()).To(BeNumerically(">=", 11))
		Expect(sim.Stepper().NumProduced()).To(BeNumerically("<", 1<<40))
	})

	It("should stop a paused run when the context is canceled", func() {
		var err error
		sim, err = MakeBuilder().
			WithSchedule(config).
			WithSteps(1 << 40).
			Build()
		Expect(err).NotTo(HaveOccurred())

		sim.Engine().Pause()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- sim.Run(ctx) }()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		cancel()
		Eventually(done, time.Second).Should(Receive(MatchError(context.Canceled)))
		Expect(sim.Stepper().NumProduced()).To(BeZero())
		Expect(sim.Engine().IsPaused()).To(BeFalse())
	})

	It("should stop at the first schedule error", func() {
		huge, err := schedule.MakeBuilder().
			WithMemorySize(1).
			WithDiskSize(1 << 62).
			WithExpansionFactor(1000).
			WithDepthFormula(schedule.DepthLogarithmic).
			Build()
		Expect(err).NotTo(HaveOccurred())

		sim, err = MakeBuilder().WithSchedule(huge).WithSteps(3).Build()
		Expect(err).NotTo(HaveOccurred())

		err = sim.Run(context.Background())
		Expect(err).To(MatchError(schedule.ErrArithmeticOverflow))
	})

	It("should reject invalid combinations", func() {
		Expect(func() { MakeBuilder().Build() }).To(Panic())
		Expect(func() {
			MakeBuilder().WithSchedule(config).WithSteps(0).Build()
		}).To(Panic())
		Expect(func() {
			MakeBuilder().WithSchedule(config).WithKeepServing().Build()
		}).To(Panic())
	})
})
