package bootstrap

import (
	"context"

	"github.com/kbukum/hostkit/beacon"
	"github.com/kbukum/hostkit/clusterconfig"
	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/diagnostics"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/identity"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/observability"
	"github.com/kbukum/hostkit/procs"
)

// Environment is what assembly leaves behind once the build context is
// discarded. Component fields are nil when the component was not built.
type Environment struct {
	Identity   *identity.Identity
	Extensions *extension.Registry
	Logger     *logger.Logger
	Telemetry  *observability.Telemetry

	Health          *health.Tracker
	ClusterSettings *clusterconfig.Settings
	Beacon          *beacon.Beacon
	Procs           *procs.Tracker
	Diagnostics     *diagnostics.Server

	// Built lists built components in build order.
	Built        []string
	Disablements []hosting.Disablement
	Failures     []hosting.Failure

	disposables *component.Disposables
}

// Disposables returns the names registered for release, in registration order.
func (e *Environment) Disposables() []string {
	if e.disposables == nil {
		return nil
	}
	return e.disposables.Names()
}

// Dispose releases every disposable in reverse registration order.
// It is safe to call more than once.
func (e *Environment) Dispose(ctx context.Context) error {
	if e.disposables == nil {
		return nil
	}
	return e.disposables.DisposeAll(ctx)
}
