package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/uvm/internal/sim"
	"github.com/vkngwrapper/uvm/thrashing"
	"golang.org/x/exp/slog"
)

type runOptions struct {
	scenario     string
	gpus         int
	pages        int
	rounds       int
	gap          time.Duration
	tunablesPath string
	dumpJSON     bool
	dumpMetrics  bool
	verbose      bool
}

func newRunCmd() *cobra.Command {
	options := runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario and report the hints it produced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.OutOrStdout(), cmd.ErrOrStderr(), options)
		},
	}

	flags := runCmd.Flags()
	flags.StringVarP(&options.scenario, "scenario", "s", string(sim.ScenarioPinPreferred), fmt.Sprintf("scenario to replay, one of %v", sim.Scenarios))
	flags.IntVar(&options.gpus, "gpus", 2, "number of simulated GPUs")
	flags.IntVar(&options.pages, "pages", 16, "number of pages in the simulated block")
	flags.IntVarP(&options.rounds, "rounds", "n", 100, "number of times every processor faults on every page")
	flags.DurationVar(&options.gap, "gap", 100*time.Microsecond, "simulated time between two faults")
	flags.StringVar(&options.tunablesPath, "tunables", "", "YAML or JSON file of thrashing tunables")
	flags.BoolVar(&options.dumpJSON, "json", false, "print the detailed state of the space as JSON")
	flags.BoolVar(&options.dumpMetrics, "metrics", false, "print the Prometheus metrics of the module")
	flags.BoolVarP(&options.verbose, "verbose", "v", false, "log engine activity at debug level")

	return runCmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if verbose {
		return slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewTextHandler(w))
	}
	return slog.New(slog.NewTextHandler(w))
}

func loadTunables(path string) (*thrashing.Tunables, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tunables from %s", path)
	}

	tunables, err := thrashing.LoadTunables(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tunables from %s", path)
	}
	return &tunables, nil
}

func runScenario(out io.Writer, logOut io.Writer, options runOptions) error {
	scenario, err := sim.ParseScenario(options.scenario)
	if err != nil {
		return err
	}
	if options.rounds < 0 {
		return errors.Newf("round count %d is negative", options.rounds)
	}

	tunables, err := loadTunables(options.tunablesPath)
	if err != nil {
		return err
	}

	simulator, err := sim.NewSimulator(newLogger(logOut, options.verbose), sim.SimulatorOptions{
		GPUs:     options.gpus,
		Pages:    options.pages,
		Gap:      options.gap,
		Tunables: tunables,
	})
	if err != nil {
		return err
	}

	runErr := simulator.Run(scenario, options.rounds)
	if runErr == nil {
		runErr = report(out, simulator, scenario, options)
	}

	if err := simulator.Close(); err != nil {
		return errors.CombineErrors(runErr, err)
	}
	return runErr
}

func report(out io.Writer, simulator *sim.Simulator, scenario sim.Scenario, options runOptions) error {
	hints := simulator.Hints()
	total := simulator.Module.TotalStatistics()

	fmt.Fprintf(out, "scenario:     %s\n", scenario)
	fmt.Fprintf(out, "hints:        None=%d Throttle=%d Pin=%d\n",
		hints[thrashing.HintNone], hints[thrashing.HintThrottle], hints[thrashing.HintPin])
	fmt.Fprintf(out, "thrashing:    %d\n", total.Thrashing)
	fmt.Fprintf(out, "pins:         local=%d remote=%d\n", total.PinLocal, total.PinRemote)
	fmt.Fprintf(out, "pinned pages: %d\n", simulator.Space.PinnedPageCount())

	if options.dumpJSON {
		fmt.Fprintln(out, simulator.Space.BuildStatsString(true))
	}

	if options.dumpMetrics {
		registry := prometheus.NewRegistry()
		if err := registry.Register(thrashing.NewCollector(simulator.Module)); err != nil {
			return errors.Wrap(err, "failed to register the thrashing collector")
		}

		families, err := registry.Gather()
		if err != nil {
			return errors.Wrap(err, "failed to gather metrics")
		}

		encoder := expfmt.NewEncoder(out, expfmt.FmtText)
		for _, family := range families {
			if err := encoder.Encode(family); err != nil {
				return errors.Wrap(err, "failed to encode metrics")
			}
		}
	}

	return nil
}
