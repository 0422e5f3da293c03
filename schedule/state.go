package schedule

import "fmt"

// Kind enumerates the states a bin can be in.
type Kind int

// The states of a bin.
const (
	// Empty means the bin has not received anything yet.
	Empty Kind = iota

	// Filling means the bin is receiving flushes from the level above.
	Filling

	// Full means the bin holds data and is not flushing.
	Full

	// Flushing means the bin empties into the next level at this step.
	Flushing
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Filling:
		return "filling"
	case Full:
		return "full"
	case Flushing:
		return "flushing"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// BinState is the state of one bin at one step. Fraction is only set for
// Filling and is in [0, 1).
type BinState struct {
	Kind     Kind    `json:"kind"`
	Fraction float64 `json:"fraction,omitempty"`
}

func (s BinState) String() string {
	if s.Kind == Filling {
		return fmt.Sprintf("filling(%.3f)", s.Fraction)
	}

	return s.Kind.String()
}

// MarshalText encodes a Kind by its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a Kind from its name.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, candidate := range []Kind{Empty, Filling, Full, Flushing} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown bin state %q", text)
}
