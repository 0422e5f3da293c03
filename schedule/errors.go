package schedule

import "errors"

// ErrInvalidConfiguration is returned when the tunable parameters are outside
// the ranges the schedule is defined for.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrOutOfRange is returned when a level or a bin index does not exist in the
// resolved configuration.
var ErrOutOfRange = errors.New("out of range")

// ErrArithmeticOverflow is returned when a per-level constant does not fit in
// 64 bits.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")
