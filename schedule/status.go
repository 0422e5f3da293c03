package schedule

import "fmt"

// BinInfo describes where a bin sits in the rotation of its level.
type BinInfo struct {
	Level int `json:"level"`
	Bin   int `json:"bin"`

	// TouchStep is the first step at which the bin receives data.
	TouchStep uint64 `json:"touch_step"`

	// FlushStep is the phase of the bin's flush within the level period.
	FlushStep uint64 `json:"flush_step"`

	// NextFlushStep is the phase of the next bin's flush in rotation order.
	NextFlushStep uint64 `json:"next_flush_step"`

	// FirstFlush is the absolute step of the bin's first flush.
	FirstFlush uint64 `json:"first_flush"`
}

type bin struct {
	level
	index         uint64
	touchStep     uint64
	flushStep     uint64
	nextFlushStep uint64
}

func (c *Config) bin(j, i int) (bin, error) {
	l, err := c.level(j)
	if err != nil {
		return bin{}, err
	}

	if i < 0 || i >= c.numBins {
		return bin{}, fmt.Errorf("%w: bin %d, level %d has %d bins",
			ErrOutOfRange, i, j, c.numBins)
	}

	// r^j*(c+i) mod r^j*c is r^j*i, and r^j*i < period, so the phases
	// below are reduced before they are added.
	index := uint64(i)
	next := (index + 1) % uint64(c.numBins)
	firstFlushPhase := l.firstFlush % l.period

	b := bin{
		level:         l,
		index:         index,
		touchStep:     l.power*index + l.zerothFlush,
		flushStep:     modAdd(l.power*index, firstFlushPhase, l.period),
		nextFlushStep: modAdd(l.power*next, firstFlushPhase, l.period),
	}

	return b, nil
}

// Bin returns the rotation constants of bin i at level j.
func (c *Config) Bin(j, i int) (BinInfo, error) {
	b, err := c.bin(j, i)
	if err != nil {
		return BinInfo{}, err
	}

	firstFlush, ok := addU64(b.firstFlush, b.power*b.index)
	if !ok {
		return BinInfo{}, fmt.Errorf(
			"%w: first flush of bin %d at level %d exceeds 64 bits",
			ErrArithmeticOverflow, i, j)
	}

	return BinInfo{
		Level:         j,
		Bin:           i,
		TouchStep:     b.touchStep,
		FlushStep:     b.flushStep,
		NextFlushStep: b.nextFlushStep,
		FirstFlush:    firstFlush,
	}, nil
}

// Status reports the state of bin i at level j at the given step. With
// partial set, bins below the top level report how many of the r flushes
// from the level above they have received since they last flushed.
func (c *Config) Status(
	j, i int,
	step uint64,
	partial bool,
) (BinState, error) {
	b, err := c.bin(j, i)
	if err != nil {
		return BinState{}, err
	}

	phase := step % b.period
	isTurn := phase == b.flushStep
	levelActive := step >= b.firstFlush

	if isTurn && levelActive {
		return BinState{Kind: Flushing}, nil
	}

	if step < b.touchStep {
		return BinState{Kind: Empty}, nil
	}

	if partial && j > 0 {
		fraction, ok := c.fillFraction(b, c.levels[j-1].power, phase)
		if ok {
			return BinState{Kind: Filling, Fraction: fraction}, nil
		}
	}

	return BinState{Kind: Full}, nil
}

// fillFraction reports whether the bin is in its fill window at the given
// phase, and if so how full the bin is.
//
// Phases are shifted so that the fill rotation of the level starts at 0.
// The window of the last bin runs from its flush to the end of the period.
// Every other bin fills strictly between its own flush and the next one.
func (c *Config) fillFraction(
	b bin,
	upperBinSize uint64,
	phase uint64,
) (float64, bool) {
	shift := (b.period - b.zerothFlush%b.period) % b.period

	shiftedStep := modAdd(phase, shift, b.period)
	shiftedFlush := modAdd(b.flushStep, shift, b.period)
	shiftedNext := modAdd(b.nextFlushStep, shift, b.period)

	var inWindow bool
	if b.index == uint64(c.numBins-1) {
		inWindow = shiftedStep > shiftedFlush
	} else {
		inWindow = shiftedFlush < shiftedStep && shiftedStep < shiftedNext
	}

	if !inWindow {
		return 0, false
	}

	binSize := b.power
	stepsSinceFlush := modAdd(
		shiftedStep%binSize,
		binSize-shiftedFlush%binSize,
		binSize,
	)

	received := stepsSinceFlush / upperBinSize

	return float64(received) / float64(c.expansionFactor), true
}
