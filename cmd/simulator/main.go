package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/internal/observability"
)

var version = "0.1.0-dev"

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "epidemic-simulator",
		Short: "Stochastic SEIRD agent simulation on a toroidal grid",
		Long: `epidemic-simulator runs agent-based SEIRD epidemics where persons live in
households on a wrap-around grid, are released from quarantine by a chosen
strategy, and infect their neighbors.

Use "run" for a single scenario and "sweep" to compare many.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (default $LOG_FORMAT or text)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus /metrics on this address while running")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "epidemic-simulator version %s\n", version)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

// newLogger honours the persistent log flags, falling back to the
// environment.
func newLogger(cmd *cobra.Command) logging.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
	})
}

// startObservability initialises tracing from the environment, labelled with
// the scenario being simulated, and, when --metrics-addr is set, a
// Prometheus endpoint. The returned function releases both.
func startObservability(ctx context.Context, cmd *cobra.Command, log logging.Logger, scenario core.Config) (*observability.SimulationCollector, func(), error) {
	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Scenario = observability.ScenarioAttributes(cmd.Name(), scenario)
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return nil, func() { observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log) }, nil
	}

	collector, err := observability.NewSimulationCollector(prometheus.NewRegistry())
	if err != nil {
		observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}
	srv := serveMetrics(addr, collector, log)

	return collector, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
		observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	}, nil
}

func serveMetrics(addr string, collector *observability.SimulationCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
