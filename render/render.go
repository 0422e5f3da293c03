// Package render draws schedule frames as text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/flushsched/schedule"
)

// Glyph returns the character that shows a bin state in a grid. Filling
// bins show a digit from 0 to 9 that grows with the fill fraction.
func Glyph(state schedule.BinState) rune {
	switch state.Kind {
	case schedule.Flushing:
		return '*'
	case schedule.Full:
		return 'x'
	case schedule.Filling:
		digit := int(state.Fraction * 10)
		digit = min(max(digit, 0), 9)

		return rune('0' + digit)
	default:
		return ' '
	}
}

// Grid writes one block per level. Every block is a rule followed by a row
// with one cell per bin; a final rule closes the grid.
func Grid(w io.Writer, frame schedule.Frame) error {
	numBins := 0
	if len(frame.States) > 0 {
		numBins = len(frame.States[0])
	}

	rule := strings.Repeat("-", 4*numBins+2)

	var sb strings.Builder

	for _, row := range frame.States {
		sb.WriteString(rule)
		sb.WriteByte('\n')

		for _, state := range row {
			sb.WriteString("  ")
			sb.WriteRune(Glyph(state))
			sb.WriteByte(' ')
		}

		sb.WriteString(" \n")
	}

	sb.WriteString(rule)
	sb.WriteByte('\n')

	_, err := io.WriteString(w, sb.String())

	return err
}

// Parameters writes the input parameters and the derived constants.
func Parameters(w io.Writer, p schedule.Parameters) error {
	_, err := fmt.Fprintf(w,
		"M = %d\nD = %d\ndepth = %d\nr = %d\nalpha = %g\nc = %d\n",
		p.MemorySize, p.DiskSize, p.Depth, p.ExpansionFactor,
		p.TimeStretch, p.NumBins)

	return err
}

// Series writes the state of one bin over a range of steps, one step per
// line.
func Series(
	w io.Writer,
	ref schedule.BinRef,
	steps []uint64,
	states []schedule.BinState,
) error {
	for k, step := range steps {
		_, err := fmt.Fprintf(w, "%s step %d: %s\n", ref, step, states[k])
		if err != nil {
			return err
		}
	}

	return nil
}
