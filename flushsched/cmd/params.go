package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flushsched/render"
)

func newParamsCommand() *cobra.Command {
	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "Print the resolved parameters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			err = render.Parameters(out, c.Parameters())
			if err != nil {
				return err
			}

			showLevels, _ := cmd.Flags().GetBool("levels")
			if !showLevels {
				return nil
			}

			for j := 0; j <= c.Depth(); j++ {
				info, err := c.Level(j)
				if err != nil {
					fmt.Fprintf(out, "level %d: %v\n", j, err)
					continue
				}

				fmt.Fprintf(out,
					"level %d: bin size %d, period %d, first flush %d\n",
					j, info.BinSize, info.Period, info.FirstFlush)
			}

			return nil
		},
	}

	paramsCmd.Flags().Bool("levels", false,
		"Also print the rotation constants of every level.")

	return paramsCmd
}
