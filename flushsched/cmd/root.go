// Package cmd provides the command-line interface of flushsched.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sarchlab/flushsched/schedule"
)

// envPrefix prefixes the environment variables that provide flag defaults,
// e.g. FLUSHSCHED_MEMORY_SIZE for --memory-size.
const envPrefix = "FLUSHSCHED_"

// NewRootCommand creates the flushsched command with all its subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flushsched",
		Short: "Show the flush schedule of a cascading buffer tree.",
		Long: `flushsched computes when every bin of a cascading buffer ` +
			`tree flushes. It can print the schedule at one step, follow ` +
			`a single bin, or run the schedule step by step while ` +
			`recording and serving it.`,
		SilenceUsage:      true,
		PersistentPreRunE: setUp,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = zap.L().Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Int64("memory-size", 5, "Size of the fastest tier (M).")
	flags.Int64("disk-size", 20, "Size of the backing tier (D).")
	flags.Int64("expansion-factor", 2, "Fan-out between levels (r).")
	flags.Float64("time-stretch", 1,
		"Fraction of a rotation represented by one bin (alpha).")
	flags.String("depth-formula", string(schedule.DepthLiteral),
		"How the depth is derived: literal or logarithmic.")
	flags.Bool("partial", false, "Report the fill fraction of filling bins.")
	flags.Bool("verbose", false, "Log debug messages.")
	flags.String("env-file", ".env", "File providing FLUSHSCHED_* defaults.")

	rootCmd.AddCommand(
		newParamsCommand(),
		newShowCommand(),
		newRunCommand(),
		newBinCommand(),
	)

	return rootCmd
}

// Execute runs the root command with the process arguments.
func Execute() error {
	err := NewRootCommand().Execute()
	if err != nil {
		zap.L().Debug("command failed", zap.Error(err))
	}

	return err
}

func setUp(cmd *cobra.Command, _ []string) error {
	err := loadEnvDefaults(cmd)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)

	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

	return cfg.Build()
}

// loadEnvDefaults reads the env file if there is one and applies the
// FLUSHSCHED_* variables to the flags that are not set on the command line.
func loadEnvDefaults(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	var setErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if setErr != nil || f.Changed {
			return
		}

		value, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		err := cmd.Flags().Set(f.Name, value)
		if err != nil {
			setErr = fmt.Errorf("%s: %w", envName(f.Name), err)
		}
	})

	return setErr
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// resolveConfig builds the schedule from the parameter flags.
func resolveConfig(cmd *cobra.Command) (*schedule.Config, error) {
	flags := cmd.Flags()

	m, _ := flags.GetInt64("memory-size")
	d, _ := flags.GetInt64("disk-size")
	r, _ := flags.GetInt64("expansion-factor")
	alpha, _ := flags.GetFloat64("time-stretch")
	formulaName, _ := flags.GetString("depth-formula")

	formula, err := schedule.ParseDepthFormula(formulaName)
	if err != nil {
		return nil, err
	}

	c, err := schedule.MakeBuilder().
		WithMemorySize(m).
		WithDiskSize(d).
		WithExpansionFactor(r).
		WithTimeStretch(alpha).
		WithDepthFormula(formula).
		Build()
	if err != nil {
		return nil, err
	}

	if c.MaxComputableLevel() < c.Depth() {
		zap.L().Warn("deep levels exceed 64-bit steps",
			zap.Int("depth", c.Depth()),
			zap.Int("max_computable_level", c.MaxComputableLevel()))
	}

	return c, nil
}
