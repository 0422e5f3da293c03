package schedule

import "fmt"

// BinRef names one bin.
type BinRef struct {
	Level int `json:"level"`
	Bin   int `json:"bin"`
}

func (r BinRef) String() string {
	return fmt.Sprintf("L%d.B%d", r.Level, r.Bin)
}

// Frame is the state of every bin of the tree at one step.
type Frame struct {
	Step    uint64 `json:"step"`
	Partial bool   `json:"partial"`

	// States is indexed by level, then by bin.
	States [][]BinState `json:"states"`

	// Flushing lists the flushing bins, top level first.
	Flushing []BinRef `json:"flushing"`
}

// Frame queries every bin of every level at the given step.
func (c *Config) Frame(step uint64, partial bool) (Frame, error) {
	f := Frame{
		Step:     step,
		Partial:  partial,
		States:   make([][]BinState, c.depth+1),
		Flushing: []BinRef{},
	}

	for j := 0; j <= c.depth; j++ {
		row := make([]BinState, c.numBins)

		for i := 0; i < c.numBins; i++ {
			state, err := c.Status(j, i, step, partial)
			if err != nil {
				return Frame{}, err
			}

			row[i] = state
			if state.Kind == Flushing {
				f.Flushing = append(f.Flushing, BinRef{Level: j, Bin: i})
			}
		}

		f.States[j] = row
	}

	return f, nil
}

// Flushing returns the bins that flush at the given step.
func (c *Config) Flushing(step uint64) ([]BinRef, error) {
	refs := []BinRef{}

	for j := 0; j <= c.depth; j++ {
		for i := 0; i < c.numBins; i++ {
			state, err := c.Status(j, i, step, false)
			if err != nil {
				return nil, err
			}

			if state.Kind == Flushing {
				refs = append(refs, BinRef{Level: j, Bin: i})
			}
		}
	}

	return refs, nil
}
