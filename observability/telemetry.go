package observability

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/kbukum/hostkit/logger"
)

// InstrumentationName is the scope name of every hostkit meter and tracer.
const InstrumentationName = "github.com/kbukum/hostkit"

// Config configures telemetry export.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Instance       string
	// Enabled turns on OTLP export; when false no-op providers are used.
	Enabled bool
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows plaintext connections to the collector.
	Insecure bool
	// SampleRate is the trace sampling ratio (0.0 to 1.0).
	SampleRate float64
	// ExportInterval is the metric export interval; zero keeps the SDK default.
	ExportInterval time.Duration
}

// DefaultConfig returns development defaults with export disabled.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
		ExportInterval: 15 * time.Second,
	}
}

// Telemetry holds the providers a host hands to its builders.
type Telemetry struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	shutdowns      []func(context.Context) error
}

// Noop returns telemetry that records nothing.
func Noop() *Telemetry {
	return &Telemetry{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}
}

// New wraps existing providers; nil providers are replaced with no-ops.
func New(mp metric.MeterProvider, tp trace.TracerProvider) *Telemetry {
	t := Noop()
	if mp != nil {
		t.meterProvider = mp
	}
	if tp != nil {
		t.tracerProvider = tp
	}
	return t
}

// Init builds telemetry from cfg. A disabled config yields Noop telemetry.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	tp, err := InitTracer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mp, err := InitMeter(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	logger.Info("telemetry initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	))

	t := New(mp, tp)
	t.shutdowns = []func(context.Context) error{mp.Shutdown, tp.Shutdown}
	return t, nil
}

// Meter returns the hostkit meter.
func (t *Telemetry) Meter() metric.Meter {
	return t.meterProvider.Meter(InstrumentationName)
}

// Tracer returns the hostkit tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracerProvider.Tracer(InstrumentationName)
}

// MeterProvider returns the underlying meter provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider { return t.meterProvider }

// TracerProvider returns the underlying tracer provider.
func (t *Telemetry) TracerProvider() trace.TracerProvider { return t.tracerProvider }

// Shutdown flushes and stops the SDK providers. It is safe to call on Noop
// telemetry and more than once.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	shutdowns := t.shutdowns
	t.shutdowns = nil
	var errs []error
	for _, fn := range shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
