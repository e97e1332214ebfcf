// Package observability wires OpenTelemetry for a host.
//
// Init returns a Telemetry holding a meter and a tracer. When export is
// enabled they come from SDK providers with OTLP/HTTP exporters; otherwise
// no-op providers are used so instrumented code never checks for nil.
//
//	tel, err := observability.Init(ctx, observability.Config{
//	    ServiceName: "billing-api",
//	    Enabled:     true,
//	    Endpoint:    "otel-collector:4318",
//	})
//	defer tel.Shutdown(ctx)
//
//	hist, _ := tel.Meter().Float64Histogram("health.check.duration")
//	ctx, span := tel.Tracer().Start(ctx, "health.tick")
package observability
