package schedule

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var (
	empty    = BinState{Kind: Empty}
	full     = BinState{Kind: Full}
	flushing = BinState{Kind: Flushing}
)

func filling(f float64) BinState {
	return BinState{Kind: Filling, Fraction: f}
}

var _ = Describe("Status", func() {
	var c *Config

	BeforeEach(func() {
		var err error
		c, err = Resolve(5, 20, 2, 1)
		Expect(err).NotTo(HaveOccurred())
	})

	mustStatus := func(j, i int, t uint64, partial bool) BinState {
		s, err := c.Status(j, i, t, partial)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	Context("top level", func() {
		It("should place the bins in the rotation", func() {
			b0, err := c.Bin(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(b0.TouchStep).To(Equal(uint64(0)))
			Expect(b0.FlushStep).To(Equal(uint64(1)))

			b1, err := c.Bin(0, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(b1.TouchStep).To(Equal(uint64(1)))
			Expect(b1.FlushStep).To(Equal(uint64(0)))
		})

		DescribeTable("alternating flushes",
			func(t uint64, bin0, bin1 BinState) {
				Expect(mustStatus(0, 0, t, false)).To(Equal(bin0))
				Expect(mustStatus(0, 1, t, false)).To(Equal(bin1))
			},
			Entry("before the level is active", uint64(0), full, empty),
			Entry("first flush", uint64(1), flushing, full),
			Entry("second bin", uint64(2), full, flushing),
			Entry("back to the first bin", uint64(3), flushing, full),
			Entry("long after", uint64(1000), full, flushing),
			Entry("long after, odd", uint64(1001), flushing, full),
		)

		It("should never report filling", func() {
			for t := uint64(0); t < 20; t++ {
				Expect(mustStatus(0, 0, t, true).Kind).NotTo(Equal(Filling))
				Expect(mustStatus(0, 1, t, true).Kind).NotTo(Equal(Filling))
			}
		})
	})

	Context("second level", func() {
		DescribeTable("with partial fill",
			func(t uint64, bin0, bin1 BinState) {
				Expect(mustStatus(1, 0, t, true)).To(Equal(bin0))
				Expect(mustStatus(1, 1, t, true)).To(Equal(bin1))
			},
			Entry("nothing arrived yet", uint64(0), empty, empty),
			Entry("first flush from above", uint64(1), full, empty),
			Entry("second flush from above", uint64(2), full, empty),
			Entry("last bin starts", uint64(3), full, filling(0.5)),
			Entry("first flush of the level", uint64(4), flushing, filling(0)),
			Entry("rotation wraps", uint64(5), full, full),
			Entry("last bin flushes", uint64(6), full, flushing),
			Entry("last bin refills", uint64(7), full, filling(0.5)),
			Entry("first bin again", uint64(8), flushing, filling(0)),
		)

		It("should never fill the first bin", func() {
			for t := uint64(0); t < 40; t++ {
				Expect(mustStatus(1, 0, t, true).Kind).NotTo(Equal(Filling))
			}
		})

		It("should collapse filling into full without partial fill", func() {
			Expect(mustStatus(1, 1, 3, false)).To(Equal(full))
			Expect(mustStatus(1, 1, 7, false)).To(Equal(full))
		})

		It("should not flush on its phase before the level is active", func() {
			Expect(mustStatus(1, 0, 0, false)).To(Equal(empty))
		})
	})

	Context("third level", func() {
		DescribeTable("last bin",
			func(t uint64, expected BinState) {
				Expect(mustStatus(2, 1, t, true)).To(Equal(expected))
			},
			Entry("before touch", uint64(7), empty),
			Entry("flush phase, inactive", uint64(6), empty),
			Entry("touched", uint64(8), filling(0.5)),
			Entry("between flushes from above", uint64(9), filling(0.5)),
			Entry("first bin flushes", uint64(10), filling(0)),
			Entry("still open", uint64(11), filling(0)),
			Entry("rotation wraps", uint64(12), full),
			Entry("first flush", uint64(14), flushing),
			Entry("right after the flush", uint64(15), filling(0)),
			Entry("first flush from above", uint64(16), filling(0.5)),
			Entry("second flush", uint64(22), flushing),
		)

		DescribeTable("first bin",
			func(t uint64, expected BinState) {
				Expect(mustStatus(2, 0, t, true)).To(Equal(expected))
			},
			Entry("before touch", uint64(3), empty),
			Entry("touched", uint64(4), full),
			Entry("flush phase, inactive", uint64(2), empty),
			Entry("first flush", uint64(10), flushing),
			Entry("right after the flush", uint64(11), full),
			Entry("second flush", uint64(18), flushing),
		)
	})

	Context("invalid coordinates", func() {
		It("should reject a level below the bottom", func() {
			_, err := c.Status(8, 0, 0, false)
			Expect(err).To(MatchError(ErrOutOfRange))
		})

		It("should reject a negative level", func() {
			_, err := c.Status(-1, 0, 0, false)
			Expect(err).To(MatchError(ErrOutOfRange))
		})

		It("should reject a bin past the ring", func() {
			_, err := c.Status(0, 2, 0, false)
			Expect(err).To(MatchError(ErrOutOfRange))
		})

		It("should report overflow for levels past 64 bits", func() {
			deep, err := MakeBuilder().
				WithMemorySize(1).
				WithDiskSize(100).
				Build()
			Expect(err).NotTo(HaveOccurred())

			_, err = deep.Status(63, 0, 0, false)
			Expect(err).To(MatchError(ErrArithmeticOverflow))

			_, err = deep.Status(62, 1, ^uint64(0), true)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})

var _ = Describe("Frame", func() {
	It("should collect every bin and the flushing ones", func() {
		c, err := MakeBuilder().
			WithMemorySize(1).
			WithDiskSize(8).
			WithDepthFormula(DepthLogarithmic).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Depth()).To(Equal(2))

		f, err := c.Frame(10, true)
		Expect(err).NotTo(HaveOccurred())

		Expect(f.Step).To(Equal(uint64(10)))
		Expect(f.States).To(HaveLen(3))
		Expect(f.States[0]).To(Equal([]BinState{full, flushing}))
		Expect(f.States[1]).To(Equal([]BinState{full, flushing}))
		Expect(f.States[2]).To(Equal([]BinState{flushing, filling(0)}))
		Expect(f.Flushing).To(Equal([]BinRef{
			{Level: 0, Bin: 1},
			{Level: 1, Bin: 1},
			{Level: 2, Bin: 0},
		}))

		refs, err := c.Flushing(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(refs).To(Equal(f.Flushing))
	})
})
