package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
)

const (
	envTracingEnabled  = "EPI_TRACING_ENABLED"
	envTracingExporter = "EPI_TRACING_EXPORTER"
	envServiceName     = "EPI_TRACING_SERVICE_NAME"
	envSampleRatio     = "EPI_TRACING_SAMPLE_RATIO"
	envOTLPEndpoint    = "EPI_OTLP_ENDPOINT"

	defaultServiceName  = "epidemic-simulator"
	defaultOTLPEndpoint = "localhost:4317"
)

// Resource attribute keys describing the scenario a process simulates.
// Every simulation.Step span exported by the process carries them.
const (
	AttrCommand         = attribute.Key("epidemic.command")
	AttrRelease         = attribute.Key("epidemic.scenario.release")
	AttrLayout          = attribute.Key("epidemic.scenario.layout")
	AttrMobility        = attribute.Key("epidemic.scenario.mobility")
	AttrAgents          = attribute.Key("epidemic.scenario.agents")
	AttrGrid            = attribute.Key("epidemic.scenario.grid")
	AttrSeed            = attribute.Key("epidemic.scenario.seed")
	AttrHouseQuarantine = attribute.Key("epidemic.scenario.house_quarantine")
)

// TracingConfig governs how simulation tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64

	// Scenario is attached to the tracer provider resource; see
	// ScenarioAttributes.
	Scenario []attribute.KeyValue
	// Writer receives stdout-exporter spans; defaults to os.Stdout.
	Writer io.Writer
}

// TracingConfigFromEnv reads the EPI_TRACING_* variables. Tracing is off
// unless EPI_TRACING_ENABLED is "true".
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv(envTracingEnabled), "true"),
		ServiceName: envOr(envServiceName, defaultServiceName),
		Exporter:    strings.ToLower(envOr(envTracingExporter, "stdout")),
		Endpoint:    os.Getenv(envOTLPEndpoint),
		SampleRatio: 1,
	}
	if raw := os.Getenv(envSampleRatio); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ScenarioAttributes describes the scenario of a run or the base scenario
// of a sweep, labelled with the CLI command that drives it.
func ScenarioAttributes(command string, cfg core.Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrCommand.String(command),
		AttrRelease.String(string(cfg.Release)),
		AttrLayout.String(string(cfg.Layout)),
		AttrMobility.String(string(cfg.Mobility)),
		AttrAgents.Int(cfg.NumAgents),
		AttrSeed.Int64(int64(cfg.Seed)),
		AttrHouseQuarantine.Bool(cfg.HouseQuarantine),
	}
	if w, h, err := cfg.GridSize(); err == nil {
		attrs = append(attrs, AttrGrid.String(fmt.Sprintf("%dx%d", w, h)))
	}
	return attrs
}

// InitTracing installs the global tracer provider used by core.Simulation
// spans. When tracing is disabled a noop provider is installed. The returned
// function flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	fields := []logging.Field{
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	}
	for _, kv := range cfg.Scenario {
		fields = append(fields, logging.String(string(kv.Key), kv.Value.Emit()))
	}
	log.Info(ctx, "tracing enabled", fields...)

	return tp.Shutdown, nil
}

func newResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", service),
		attribute.String("service.namespace", "epidemic"),
	}, cfg.Scenario...)

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes spans within a bounded time. Failures are
// logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
