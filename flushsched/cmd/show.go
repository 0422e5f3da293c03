package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flushsched/render"
)

func newShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Draw the state of every bin at one step.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			step, _ := cmd.Flags().GetUint64("step")
			partial, _ := cmd.Flags().GetBool("partial")

			frame, err := c.Frame(step, partial)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "step %d\n", step)

			err = render.Grid(out, frame)
			if err != nil {
				return err
			}

			for _, ref := range frame.Flushing {
				fmt.Fprintf(out, "flushing %s\n", ref)
			}

			return nil
		},
	}

	showCmd.Flags().Uint64("step", 0, "The step to draw.")

	return showCmd
}
