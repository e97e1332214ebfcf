package bootstrap

import (
	"time"

	"github.com/kbukum/hostkit/clusterconfig"
	"github.com/kbukum/hostkit/config"
	"github.com/kbukum/hostkit/discovery"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/observability"
)

// Option configures the Host during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*hostOptions)

// hostOptions collects all option values before applying to Host.
type hostOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	provider        *config.Provider
	telemetry       *observability.Telemetry
	limits          *hosting.Limits
	clusterConfig   clusterconfig.Client
	locator         discovery.Locator
	registrar       discovery.Registrar
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *hostOptions {
	o := &hostOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the host.
// If not set, the logger is created from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *hostOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *hostOptions) {
		o.gracefulTimeout = &d
	}
}

// WithProvider sets the configuration provider handed to builders, usually
// the one returned by config.Load.
func WithProvider(p *config.Provider) Option {
	return func(o *hostOptions) {
		o.provider = p
	}
}

// WithTelemetry uses existing telemetry instead of initializing it from
// the telemetry config section. The host does not shut it down.
func WithTelemetry(t *observability.Telemetry) Option {
	return func(o *hostOptions) {
		o.telemetry = t
	}
}

// WithLimits overrides the limits config section.
func WithLimits(l hosting.Limits) Option {
	return func(o *hostOptions) {
		o.limits = &l
	}
}

// WithClusterConfigClient supplies the cluster configuration client instead
// of deriving one from the consul config section.
func WithClusterConfigClient(c clusterconfig.Client) Option {
	return func(o *hostOptions) {
		o.clusterConfig = c
	}
}

// WithServiceLocator supplies the service locator.
func WithServiceLocator(l discovery.Locator) Option {
	return func(o *hostOptions) {
		o.locator = l
	}
}

// WithServiceRegistrar supplies the service registrar.
func WithServiceRegistrar(r discovery.Registrar) Option {
	return func(o *hostOptions) {
		o.registrar = r
	}
}
