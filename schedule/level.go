package schedule

import "fmt"

// level holds the per-level constants every status query needs.
type level struct {
	power       uint64 // r^j
	period      uint64 // r^j * c
	firstFlush  uint64
	zerothFlush uint64
}

// buildLevelTable accumulates the first-flush offsets iteratively:
//
//	firstFlush(j) = r^j*c - 1 + sum_{k<j} r^k*(c-1)
//
// which also gives firstFlush(0) = c-1. The table ends early at the first
// level whose constants do not fit in 64 bits.
func buildLevelTable(r, c uint64, depth int) []level {
	levels := make([]level, 0, min(depth+1, 65))

	power := uint64(1)
	warmUp := uint64(0)

	for j := 0; j <= depth; j++ {
		period, ok := mulU64(power, c)
		if !ok {
			break
		}

		firstFlush, ok := addU64(period-1, warmUp)
		if !ok {
			break
		}

		l := level{
			power:      power,
			period:     period,
			firstFlush: firstFlush,
		}
		if j > 0 {
			l.zerothFlush = levels[j-1].firstFlush
		}

		levels = append(levels, l)

		if j == depth {
			break
		}

		step, ok := mulU64(power, c-1)
		if !ok {
			break
		}

		warmUp, ok = addU64(warmUp, step)
		if !ok {
			break
		}

		power, ok = mulU64(power, r)
		if !ok {
			break
		}
	}

	return levels
}

func (c *Config) level(j int) (level, error) {
	if j < 0 || j > c.depth {
		return level{}, fmt.Errorf("%w: level %d, depth is %d",
			ErrOutOfRange, j, c.depth)
	}

	if j >= len(c.levels) {
		return level{}, fmt.Errorf("%w: constants of level %d exceed 64 bits",
			ErrArithmeticOverflow, j)
	}

	return c.levels[j], nil
}

// LevelInfo describes the rotation of one level.
type LevelInfo struct {
	Level int `json:"level"`

	// BinSize is r^level, the number of steps between two flushes of
	// consecutive bins.
	BinSize uint64 `json:"bin_size"`

	// Period is the number of steps between two flushes of the same bin.
	Period uint64 `json:"period"`

	// FirstFlush is the first step at which any bin of the level flushes.
	FirstFlush uint64 `json:"first_flush"`

	// ZerothFlush is the warm-up offset inherited from the level above.
	ZerothFlush uint64 `json:"zeroth_flush"`
}

// Level returns the rotation constants of level j.
func (c *Config) Level(j int) (LevelInfo, error) {
	l, err := c.level(j)
	if err != nil {
		return LevelInfo{}, err
	}

	return LevelInfo{
		Level:       j,
		BinSize:     l.power,
		Period:      l.period,
		FirstFlush:  l.firstFlush,
		ZerothFlush: l.zerothFlush,
	}, nil
}
