// Package schedule computes the staggered round-robin flush schedule of a
// cascading buffer tree.
//
// A tree has depth+1 levels. Every level is a ring of NumBins bins and the
// bins of a level flush one at a time, so that level j flushes one bin every
// r^j steps and each bin flushes once every r^j*NumBins steps. The state of a
// bin is a pure function of the resolved Config, the bin coordinates, and a
// logical step counter owned by the caller.
package schedule

import (
	"fmt"
	"math"
)

// DepthFormula selects how the number of levels is derived from the memory
// and disk sizes.
type DepthFormula string

const (
	// DepthLiteral computes ceil(D / log_r(2M)), the expression
	// D / log(2M, r) read with the usual operator precedence.
	DepthLiteral DepthFormula = "literal"

	// DepthLogarithmic computes ceil(log_r(D / 2M)), the number of r-fold
	// expansions needed for twice the memory to cover the disk.
	DepthLogarithmic DepthFormula = "logarithmic"
)

// ParseDepthFormula converts a name into a DepthFormula.
func ParseDepthFormula(name string) (DepthFormula, error) {
	switch DepthFormula(name) {
	case DepthLiteral, DepthLogarithmic:
		return DepthFormula(name), nil
	default:
		return "", fmt.Errorf("%w: unknown depth formula %q",
			ErrInvalidConfiguration, name)
	}
}

// maxExactFloat is the largest integer float64 can hold without gaps.
const maxExactFloat = 1 << 53

// Builder collects the tunable parameters and resolves them into a Config.
type Builder struct {
	memorySize      int64
	diskSize        int64
	expansionFactor int64
	timeStretch     float64
	depthFormula    DepthFormula
}

// MakeBuilder creates a builder with the default parameters M = 5, D = 20,
// r = 2, alpha = 1 and the literal depth formula.
func MakeBuilder() Builder {
	return Builder{
		memorySize:      5,
		diskSize:        20,
		expansionFactor: 2,
		timeStretch:     1,
		depthFormula:    DepthLiteral,
	}
}

// WithMemorySize sets the size of the fastest tier.
func (b Builder) WithMemorySize(m int64) Builder {
	b.memorySize = m
	return b
}

// WithDiskSize sets the size of the backing tier.
func (b Builder) WithDiskSize(d int64) Builder {
	b.diskSize = d
	return b
}

// WithExpansionFactor sets the fan-out ratio between adjacent levels.
func (b Builder) WithExpansionFactor(r int64) Builder {
	b.expansionFactor = r
	return b
}

// WithTimeStretch sets the fraction of a rotation represented by one bin.
func (b Builder) WithTimeStretch(alpha float64) Builder {
	b.timeStretch = alpha
	return b
}

// WithDepthFormula selects the depth formula.
func (b Builder) WithDepthFormula(f DepthFormula) Builder {
	b.depthFormula = f
	return b
}

func (b Builder) parametersMustBeValid() error {
	if b.memorySize <= 0 {
		return fmt.Errorf("%w: memory size must be positive, got %d",
			ErrInvalidConfiguration, b.memorySize)
	}

	if b.diskSize <= 0 {
		return fmt.Errorf("%w: disk size must be positive, got %d",
			ErrInvalidConfiguration, b.diskSize)
	}

	if b.expansionFactor < 2 {
		return fmt.Errorf("%w: expansion factor must be at least 2, got %d",
			ErrInvalidConfiguration, b.expansionFactor)
	}

	if math.IsNaN(b.timeStretch) || b.timeStretch <= 0 || b.timeStretch > 1 {
		return fmt.Errorf("%w: time stretch must be in (0, 1], got %v",
			ErrInvalidConfiguration, b.timeStretch)
	}

	_, err := ParseDepthFormula(string(b.depthFormula))

	return err
}

// Build validates the parameters and derives the constants of the schedule.
func (b Builder) Build() (*Config, error) {
	err := b.parametersMustBeValid()
	if err != nil {
		return nil, err
	}

	numBins, err := b.numBins()
	if err != nil {
		return nil, err
	}

	depth, err := b.depth()
	if err != nil {
		return nil, err
	}

	c := &Config{
		memorySize:      b.memorySize,
		diskSize:        b.diskSize,
		expansionFactor: b.expansionFactor,
		timeStretch:     b.timeStretch,
		depthFormula:    b.depthFormula,
		depth:           depth,
		numBins:         numBins,
	}

	c.levels = buildLevelTable(
		uint64(b.expansionFactor), uint64(numBins), depth)

	return c, nil
}

// numBins is ceil(1/alpha) + 1. The extra bin keeps one bin settled while
// the others rotate.
func (b Builder) numBins() (int, error) {
	inverse := math.Ceil(1 / b.timeStretch)
	if inverse+1 > maxExactFloat {
		return 0, fmt.Errorf("%w: time stretch %v yields too many bins",
			ErrArithmeticOverflow, b.timeStretch)
	}

	return int(inverse) + 1, nil
}

func (b Builder) depth() (int, error) {
	switch b.depthFormula {
	case DepthLogarithmic:
		return b.logarithmicDepth(), nil
	default:
		return b.literalDepth()
	}
}

func (b Builder) literalDepth() (int, error) {
	logBase := math.Log(2*float64(b.memorySize)) /
		math.Log(float64(b.expansionFactor))
	depth := math.Ceil(float64(b.diskSize) / logBase)

	if depth > math.MaxInt32 {
		return 0, fmt.Errorf("%w: depth %v is not representable",
			ErrArithmeticOverflow, depth)
	}

	return int(depth), nil
}

// logarithmicDepth finds the smallest d >= 1 with 2M * r^d >= D using
// integer arithmetic, so exact powers do not pick up rounding errors.
func (b Builder) logarithmicDepth() int {
	r := uint64(b.expansionFactor)
	target := uint64(b.diskSize)

	covered, ok := mulU64(uint64(b.memorySize), 2)
	if !ok {
		return 1
	}

	depth := 0
	for covered < target {
		covered, ok = mulU64(covered, r)
		depth++

		if !ok {
			break
		}
	}

	return max(depth, 1)
}

// Resolve derives the schedule constants from the four tunable parameters
// using the literal depth formula.
func Resolve(
	memorySize, diskSize, expansionFactor int64,
	timeStretch float64,
) (*Config, error) {
	return MakeBuilder().
		WithMemorySize(memorySize).
		WithDiskSize(diskSize).
		WithExpansionFactor(expansionFactor).
		WithTimeStretch(timeStretch).
		Build()
}

// Config is a resolved, immutable schedule configuration. It is safe for
// concurrent use.
type Config struct {
	memorySize      int64
	diskSize        int64
	expansionFactor int64
	timeStretch     float64
	depthFormula    DepthFormula

	depth   int
	numBins int
	levels  []level
}

// Depth returns the index of the bottom level. Levels are numbered 0 to
// Depth inclusive.
func (c *Config) Depth() int {
	return c.depth
}

// NumBins returns the number of bins per level.
func (c *Config) NumBins() int {
	return c.numBins
}

// ExpansionFactor returns r.
func (c *Config) ExpansionFactor() int64 {
	return c.expansionFactor
}

// MaxComputableLevel returns the deepest level whose constants fit in 64
// bits. It is at most Depth.
func (c *Config) MaxComputableLevel() int {
	return len(c.levels) - 1
}

// Parameters is a flat record of a resolved configuration.
type Parameters struct {
	MemorySize      int64        `json:"memory_size"`
	DiskSize        int64        `json:"disk_size"`
	ExpansionFactor int64        `json:"expansion_factor"`
	TimeStretch     float64      `json:"time_stretch"`
	DepthFormula    DepthFormula `json:"depth_formula"`
	Depth           int          `json:"depth"`
	NumBins         int          `json:"num_bins"`
}

// Parameters returns the input parameters and the derived constants.
func (c *Config) Parameters() Parameters {
	return Parameters{
		MemorySize:      c.memorySize,
		DiskSize:        c.diskSize,
		ExpansionFactor: c.expansionFactor,
		TimeStretch:     c.timeStretch,
		DepthFormula:    c.depthFormula,
		Depth:           c.depth,
		NumBins:         c.numBins,
	}
}
