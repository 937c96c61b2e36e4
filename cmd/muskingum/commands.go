package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abelzeko/water-router/internal/hydrograph"
	"github.com/abelzeko/water-router/internal/logging"
	"github.com/abelzeko/water-router/internal/routing"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "muskingum",
		Short:        "Muskingum flood routing of gauge series",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	logger := func(cmd *cobra.Command) *zap.SugaredLogger {
		level := zapcore.WarnLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		return logging.NewConsole(cmd.ErrOrStderr(), level)
	}

	root.AddCommand(newRouteCmd(logger), newCoefficientsCmd())
	return root
}

type routeFlags struct {
	input          string
	column         string
	output         string
	k              time.Duration
	x              float64
	step           time.Duration
	subReaches     int
	initialOutflow float64
	policy         routing.Policy
}

func newRouteCmd(logger func(*cobra.Command) *zap.SugaredLogger) *cobra.Command {
	var f routeFlags
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route a gauge CSV through a reach",
		Example: `  muskingum route --input gauge.csv --column "Flow (cfs)" --k 1h --x 0.25 \
      --step 15m --sub-reaches 12 --output outflow.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoute(cmd, f, logger(cmd))
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "gauge CSV file, - for stdin")
	fl.StringVarP(&f.column, "column", "c", "", "name of the flow column")
	fl.StringVarP(&f.output, "output", "o", "", "output CSV file (default stdout)")
	fl.DurationVar(&f.k, "k", 0, "reach travel time")
	fl.Float64Var(&f.x, "x", 0.2, "weighting factor")
	fl.DurationVar(&f.step, "step", 0, "routing time step (default: the input's sampling step)")
	fl.IntVar(&f.subReaches, "sub-reaches", 1, "number of equal sub-reaches routed in series")
	fl.Float64Var(&f.initialOutflow, "initial-outflow", 0, "outflow at the first step (default: first inflow)")
	fl.Var(&f.policy, "policy", "handling of values outside the recommended range: warn, strict or permissive")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("column")
	_ = cmd.MarkFlagRequired("k")
	return cmd
}

func runRoute(cmd *cobra.Command, f routeFlags, log *zap.SugaredLogger) (err error) {
	defer func() { _ = log.Sync() }()

	in, err := openInput(cmd, f.input)
	if err != nil {
		return err
	}
	defer in.Close()

	h, err := hydrograph.ReadCSV(in, f.column)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.input, err)
	}
	log.Debugf("Read %s", hydrograph.Summary(h))

	step := f.step
	switch {
	case step == 0:
		step = h.Step
	case h.Step > 0 && step != h.Step:
		log.Warnw("--step differs from the input's sampling step, samples are routed as if spaced by --step",
			"step", step, "sampling_step", h.Step)
	}
	if step <= 0 {
		return errors.New("cannot infer the time step from a single sample, pass --step")
	}

	opts := []routing.ParamOption{routing.WithSubReaches(f.subReaches)}
	if cmd.Flags().Changed("initial-outflow") {
		opts = append(opts, routing.WithInitialOutflow(f.initialOutflow))
	}
	p := routing.NewParams(f.k, step, f.x, opts...)

	router := routing.NewRouter(routing.WithPolicy(f.policy), routing.WithLogger(log))
	res, err := router.Route(h.Flows, p)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if f.output != "" && f.output != "-" {
		file, cerr := os.Create(f.output)
		if cerr != nil {
			return fmt.Errorf("failed to create output: %w", cerr)
		}
		defer func() {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}()
		out = file
	}

	if err := hydrograph.WriteCSV(out, h, f.column, res.Outflow); err != nil {
		return fmt.Errorf("failed to write outflow: %w", err)
	}
	log.Debugf("Wrote %d samples (%s)", len(res.Outflow), p)
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return file, nil
}

func newCoefficientsCmd() *cobra.Command {
	var (
		k, step    time.Duration
		x          float64
		subReaches int
	)
	cmd := &cobra.Command{
		Use:   "coefficients",
		Short: "Print the routing coefficients c0 c1 c2 of one sub-reach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if k <= 0 || step <= 0 {
				return errors.New("--k and --step must be positive")
			}
			if subReaches < 1 {
				return fmt.Errorf("--sub-reaches must be at least 1, got %d", subReaches)
			}
			p := routing.NewParams(k, step, x, routing.WithSubReaches(subReaches))
			c, err := routing.DeriveCoefficients(p.StageK(), p.X, p.TimeStep)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%g %g %g\n", c.C0, c.C1, c.C2)
			return err
		},
	}
	fl := cmd.Flags()
	fl.DurationVar(&k, "k", 0, "reach travel time")
	fl.Float64Var(&x, "x", 0.2, "weighting factor")
	fl.DurationVar(&step, "step", 0, "routing time step")
	fl.IntVar(&subReaches, "sub-reaches", 1, "number of equal sub-reaches")
	_ = cmd.MarkFlagRequired("k")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}
