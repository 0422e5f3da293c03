package render

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flushsched/schedule"
)

var _ = Describe("Render", func() {
	DescribeTable("glyphs",
		func(state schedule.BinState, glyph rune) {
			Expect(Glyph(state)).To(Equal(glyph))
		},
		Entry("empty", schedule.BinState{Kind: schedule.Empty}, ' '),
		Entry("full", schedule.BinState{Kind: schedule.Full}, 'x'),
		Entry("flushing", schedule.BinState{Kind: schedule.Flushing}, '*'),
		Entry("just started filling",
			schedule.BinState{Kind: schedule.Filling}, '0'),
		Entry("half full",
			schedule.BinState{Kind: schedule.Filling, Fraction: 0.5}, '5'),
		Entry("almost full",
			schedule.BinState{Kind: schedule.Filling, Fraction: 0.999}, '9'),
	)

	It("should draw a grid", func() {
		frame := schedule.Frame{
			States: [][]schedule.BinState{
				{{Kind: schedule.Flushing}, {Kind: schedule.Full}},
				{{Kind: schedule.Filling, Fraction: 0.5}, {Kind: schedule.Empty}},
			},
		}

		buf := new(bytes.Buffer)
		Expect(Grid(buf, frame)).To(Succeed())

		Expect(buf.String()).To(Equal("" +
			"----------\n" +
			"  *   x  \n" +
			"----------\n" +
			"  5      \n" +
			"----------\n"))
	})

	It("should draw a resolved frame", func() {
		c, err := schedule.Resolve(5, 20, 2, 1)
		Expect(err).NotTo(HaveOccurred())

		frame, err := c.Frame(1, false)
		Expect(err).NotTo(HaveOccurred())

		buf := new(bytes.Buffer)
		Expect(Grid(buf, frame)).To(Succeed())

		Expect(bytes.Count(buf.Bytes(), []byte("\n"))).
			To(Equal(2*(c.Depth()+1) + 1))
		Expect(bytes.Count(buf.Bytes(), []byte("*"))).
			To(Equal(len(frame.Flushing)))
	})

	It("should print the parameters", func() {
		c, err := schedule.Resolve(5, 20, 2, 1)
		Expect(err).NotTo(HaveOccurred())

		buf := new(bytes.Buffer)
		Expect(Parameters(buf, c.Parameters())).To(Succeed())

		Expect(buf.String()).To(Equal(
			"M = 5\nD = 20\ndepth = 7\nr = 2\nalpha = 1\nc = 2\n"))
	})

	It("should print a bin over time", func() {
		buf := new(bytes.Buffer)
		err := Series(buf,
			schedule.BinRef{Level: 1, Bin: 0},
			[]uint64{3, 4},
			[]schedule.BinState{
				{Kind: schedule.Full},
				{Kind: schedule.Filling, Fraction: 0.5},
			})
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(Equal(
			"L1.B0 step 3: full\nL1.B0 step 4: filling(0.500)\n"))
	})
})
