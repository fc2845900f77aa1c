package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/internal/report"
	"github.com/signalsfoundry/epidemic-simulator/internal/sweep"
	"github.com/signalsfoundry/epidemic-simulator/timectrl"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single scenario and print its time series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := scenarioFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := f.Scenario.Config()
			if err != nil {
				return err
			}
			return runScenario(cmd, cfg)
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().Bool("realtime", false, "Pace ticks against the wall clock instead of running flat out")
	cmd.Flags().Duration("pace", time.Second, "Wall-clock time per tick in realtime mode")
	cmd.Flags().Int("stride", 1, "Print every n-th tick of the time series")
	cmd.Flags().String("chart", "", "Write the SEIRD curves to this PNG file")
	return cmd
}

func runScenario(cmd *cobra.Command, cfg core.Config) error {
	if !cfg.Bounded() {
		return fmt.Errorf("%w: set --halt-when-contained or --max-ticks", sweep.ErrUnbounded)
	}
	log := newLogger(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	collector, shutdown, err := startObservability(ctx, cmd, log, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	opts := []core.Option{core.WithLogger(log)}
	if collector != nil {
		opts = append(opts, core.WithRecorder(collector))
	}
	sim, err := core.Initialize(cfg, opts...)
	if err != nil {
		return err
	}
	ctx, runLog := logging.WithRunLogger(ctx, log, string(sim.RunID()))

	interval, err := cfg.MobilityInterval()
	if err != nil {
		return err
	}
	mode := timectrl.Accelerated
	if realtime, _ := cmd.Flags().GetBool("realtime"); realtime {
		mode = timectrl.RealTime
	}
	tc := timectrl.NewTimeController(time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC), timectrl.TickLengthForInterval(interval), mode)
	tc.Pace, _ = cmd.Flags().GetDuration("pace")
	tc.AddListener(func(tick int, simTime time.Time) {
		if (tick+1)%interval != 0 {
			return
		}
		row, ok := sim.LatestMetrics()
		if !ok {
			return
		}
		runLog.Debug(ctx, "day complete",
			logging.String("date", simTime.Format(time.DateOnly)),
			logging.Int("infectious", row.Infectious),
			logging.Float64("infected_percent", row.InfectedPercent),
		)
	})

	if collector != nil {
		collector.RunStarted()
		defer collector.RunFinished()
	}
	runLog.Info(ctx, "run starting", logging.String("mode", mode.String()))
	if err := <-tc.Run(ctx, sim, 0); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		runLog.Warn(ctx, "run interrupted", logging.Int("ticks", sim.Tick()))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d ticks (%s simulated)\n\n", sim.RunID(), sim.Tick(), tc.Now().Sub(tc.StartTime))
	stride, _ := cmd.Flags().GetInt("stride")
	if err := report.WriteTable(out, sim.MetricsSeries(), stride); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := report.WriteTotals(out, sim.Totals()); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("chart"); path != "" {
		if err := writeChart(path, sim.Series()); err != nil {
			return err
		}
		runLog.Info(ctx, "chart written", logging.String("path", path))
	}
	return nil
}

func writeChart(path string, series core.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := report.RenderChart(f, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
