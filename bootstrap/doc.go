// Package bootstrap assembles and runs a hosted application.
//
// A Host owns one builder per optional component. Setup code configures
// them, then Assemble builds them against a shared hosting.BuildContext in a
// fixed order:
//
//	logger → config provider → telemetry → limits → consul clients →
//	identity → health tracker → cluster settings → beacon → procs → diagnostics
//
// Each step only reads what earlier steps wrote. Components whose
// prerequisites are missing are disabled with a recorded reason; failing
// builders are recorded without stopping the others.
//
// # Quick Start
//
//	host, err := bootstrap.NewHost(&cfg)
//	host.SetupBeacon(func(b *beacon.Builder) { b.SetPort(8080) })
//	host.OnReady(warmCaches)
//	err = host.Run(ctx, func(ctx context.Context, env *bootstrap.Environment) error {
//	    <-ctx.Done()
//	    return nil
//	})
package bootstrap
