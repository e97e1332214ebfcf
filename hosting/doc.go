// Package hosting defines the assembly-time contract between a host and the
// builders of its optional components.
//
// A BuildContext carries the shared infrastructure that already exists
// (logger, meter, tracer, limits, configuration, optional external clients,
// identity) together with the extension registry being filled and the list
// of disposables. The host runs builders one at a time against it:
//
//	bctx := hosting.NewBuildContext(log)
//	tracker, ok := hosting.Build(bctx, "health", healthBuilder)
//
// A Builder whose prerequisite is missing returns ok == false and records a
// Disablement; it never fails the host. Errors and panics from a builder are
// recorded as Failures and leave the context usable for the builders that run
// after it.
package hosting
