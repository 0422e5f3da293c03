package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flushsched/render"
	"github.com/sarchlab/flushsched/schedule"
)

func newBinCommand() *cobra.Command {
	binCmd := &cobra.Command{
		Use:   "bin LEVEL BIN",
		Short: "Print the state of one bin over a range of steps.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseBinRef(args)
			if err != nil {
				return err
			}

			c, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			from, _ := cmd.Flags().GetUint64("from")
			to, _ := cmd.Flags().GetUint64("to")
			partial, _ := cmd.Flags().GetBool("partial")

			if to < from {
				return fmt.Errorf("--to %d is before --from %d", to, from)
			}

			info, err := c.Bin(ref.Level, ref.Bin)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out,
				"%s: touch %d, flush phase %d, first flush %d\n",
				ref, info.TouchStep, info.FlushStep, info.FirstFlush)

			var (
				steps  []uint64
				states []schedule.BinState
			)

			for t := from; ; t++ {
				state, err := c.Status(ref.Level, ref.Bin, t, partial)
				if err != nil {
					return err
				}

				steps = append(steps, t)
				states = append(states, state)

				if t == to {
					break
				}
			}

			return render.Series(out, ref, steps, states)
		},
	}

	binCmd.Flags().Uint64("from", 0, "First step to print.")
	binCmd.Flags().Uint64("to", 15, "Last step to print.")

	return binCmd
}

func parseBinRef(args []string) (schedule.BinRef, error) {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return schedule.BinRef{}, fmt.Errorf("level %q: %w", args[0], err)
	}

	bin, err := strconv.Atoi(args[1])
	if err != nil {
		return schedule.BinRef{}, fmt.Errorf("bin %q: %w", args[1], err)
	}

	return schedule.BinRef{Level: level, Bin: bin}, nil
}
