package schedule

// A Querier answers schedule questions for a fixed configuration. *Config is
// the implementation.
type Querier interface {
	// Depth returns the index of the bottom level.
	Depth() int

	// NumBins returns the number of bins per level.
	NumBins() int

	// Status reports the state of one bin at one step.
	Status(level, bin int, step uint64, partial bool) (BinState, error)

	// Frame reports the state of every bin at one step.
	Frame(step uint64, partial bool) (Frame, error)
}

var _ Querier = (*Config)(nil)
