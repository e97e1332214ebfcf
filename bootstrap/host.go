package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/hostkit/beacon"
	"github.com/kbukum/hostkit/clusterconfig"
	"github.com/kbukum/hostkit/clustersettings"
	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/config"
	"github.com/kbukum/hostkit/diagnostics"
	"github.com/kbukum/hostkit/discovery"
	"github.com/kbukum/hostkit/discovery/consul"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/identity"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/observability"
	"github.com/kbukum/hostkit/procs"
	"github.com/kbukum/hostkit/version"
)

// Component names for the assembly steps that are not builders of their own.
const (
	TelemetryComponent = "telemetry"
	ConsulComponent    = "consul"
	IdentityComponent  = "identity"
)

// LocatorCacheTTL is how long located endpoints are reused.
const LocatorCacheTTL = 10 * time.Second

// Host holds the configured builders of one hosted application.
// The type parameter C is the config type, which must satisfy the Config interface.
//
// Example:
//
//	host, err := bootstrap.NewHost(&myConfig)
//	host.SetupProcs(func(b *procs.TrackerBuilder) { b.Enable() })
//	host.Run(context.Background(), nil)
type Host[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger
	Summary *Summary

	identity        *identity.Builder
	health          *health.TrackerBuilder
	clusterSettings *clustersettings.SettingsBuilder
	beacon          *beacon.Builder
	procs           *procs.TrackerBuilder
	diagnostics     *diagnostics.Builder

	opts            *hostOptions
	gracefulTimeout time.Duration
	assembled       bool

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewHost creates a host from a typed config. It applies defaults, validates
// the config, creates the logger and preconfigures every builder from the
// config sections. Setup* calls made afterwards override the config.
func NewHost[C Config](cfg C, opts ...Option) (*Host[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	hc := cfg.GetHostConfig()
	o := resolveOptions(opts)

	h := &Host[C]{
		Name:            hc.Name,
		Version:         hc.Version,
		Cfg:             cfg,
		opts:            o,
		gracefulTimeout: 15 * time.Second,

		identity:        identity.NewBuilder(),
		health:          health.NewTrackerBuilder(),
		clusterSettings: clustersettings.NewSettingsBuilder(),
		beacon:          beacon.NewBuilder(),
		procs:           procs.NewTrackerBuilder(),
		diagnostics:     diagnostics.NewBuilder(),
	}
	if o.gracefulTimeout != nil {
		h.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		h.Logger = o.logger
	} else {
		h.Logger = logger.New(&hc.Logging, hc.Name)
		logger.SetGlobalLogger(h.Logger)
	}

	if h.Version == "" {
		h.Version = version.Get().Short()
	}
	h.Summary = NewSummary(h.Name, h.Version)
	h.applyConfig(hc)
	return h, nil
}

// applyConfig feeds the config sections into the builders. Optional
// components are only switched on when their section asks for it.
func (h *Host[C]) applyConfig(hc *config.HostConfig) {
	h.identity.
		SetProject(hc.Identity.Project).
		SetSubproject(hc.Identity.Subproject).
		SetEnvironment(hc.Environment).
		SetApplication(hc.Identity.Application)
	if hc.Identity.Instance != "" {
		h.identity.SetInstance(hc.Identity.Instance)
	}

	interval, timeout := hc.Health.Interval, hc.Health.CheckTimeout
	h.health.CustomizeSettings(func(s *health.Settings) {
		s.CheckInterval = interval
		s.CheckTimeout = timeout
	})

	if hc.ClusterConfig.Enabled {
		h.clusterSettings.SetPrefix(hc.ClusterConfig.Prefix)
	}

	if hc.Beacon.Enabled {
		h.beacon.SetPort(hc.Beacon.Port).AddTags(hc.Beacon.Tags...)
		if hc.Beacon.Address != "" {
			h.beacon.SetAddress(hc.Beacon.Address)
		}
	}

	if hc.Procs.Enabled {
		procsCfg := hc.Procs
		h.procs.CustomizeSettings(func(s *procs.Settings) {
			s.Interval = procsCfg.Interval
			s.Multiplier = procsCfg.Multiplier
			s.Minimum = procsCfg.Minimum
		})
	}

	if hc.Diagnostics.Port > 0 {
		h.diagnostics.SetHost(hc.Diagnostics.Host).SetPort(hc.Diagnostics.Port)
	}
}

// SetupIdentity exposes the identity builder to setup code.
func (h *Host[C]) SetupIdentity(fn func(b *identity.Builder)) *Host[C] {
	fn(h.identity)
	return h
}

// SetupHealth exposes the health tracker builder to setup code.
func (h *Host[C]) SetupHealth(fn func(b *health.TrackerBuilder)) *Host[C] {
	fn(h.health)
	return h
}

// SetupClusterSettings exposes the cluster settings builder to setup code.
func (h *Host[C]) SetupClusterSettings(fn func(b *clustersettings.SettingsBuilder)) *Host[C] {
	fn(h.clusterSettings)
	return h
}

// SetupBeacon exposes the beacon builder to setup code.
func (h *Host[C]) SetupBeacon(fn func(b *beacon.Builder)) *Host[C] {
	fn(h.beacon)
	return h
}

// SetupProcs exposes the GOMAXPROCS tracker builder to setup code.
func (h *Host[C]) SetupProcs(fn func(b *procs.TrackerBuilder)) *Host[C] {
	fn(h.procs)
	return h
}

// SetupDiagnostics exposes the diagnostics server builder to setup code.
func (h *Host[C]) SetupDiagnostics(fn func(b *diagnostics.Builder)) *Host[C] {
	fn(h.diagnostics)
	return h
}

// Assemble builds every component in dependency order. It fails only when
// called twice; component failures are recorded on the environment.
func (h *Host[C]) Assemble(ctx context.Context) (*Environment, error) {
	if h.assembled {
		return nil, fmt.Errorf("host %s is already assembled", h.Name)
	}
	h.assembled = true
	start := time.Now()
	hc := h.Cfg.GetHostConfig()

	h.Logger.Info("Assembling host", map[string]interface{}{
		"name":    h.Name,
		"version": h.Version,
	})

	bctx := &hosting.BuildContext{
		Logger: h.Logger,
		Config: h.provider(hc),
	}

	tel := h.buildTelemetry(ctx, bctx, hc)
	bctx.Meter = tel.Meter()
	bctx.Tracer = tel.Tracer()
	bctx.Limits = h.limits(hc)

	h.buildClients(bctx, hc)

	id, ok := hosting.Build[*identity.Identity](bctx, IdentityComponent, hosting.BuilderFunc[*identity.Identity](
		func(bctx *hosting.BuildContext) (*identity.Identity, bool, error) {
			id, err := h.identity.Build()
			if err != nil {
				return nil, false, err
			}
			extension.Add(bctx.Extensions, id)
			return id, true, nil
		}))
	if ok {
		bctx.Identity = id
	}

	env := &Environment{
		Identity:   bctx.Identity,
		Extensions: bctx.Extensions,
		Logger:     h.Logger,
		Telemetry:  tel,
	}
	env.Health, _ = hosting.Build[*health.Tracker](bctx, health.ComponentName, h.health)
	env.ClusterSettings, _ = hosting.Build[*clusterconfig.Settings](bctx, clustersettings.ComponentName, h.clusterSettings)
	env.Beacon, _ = hosting.Build[*beacon.Beacon](bctx, beacon.ComponentName, h.beacon)
	env.Procs, _ = hosting.Build[*procs.Tracker](bctx, procs.ComponentName, h.procs)
	env.Diagnostics, _ = hosting.Build[*diagnostics.Server](bctx, diagnostics.ComponentName, h.diagnostics)

	env.Built = bctx.Built()
	env.Disablements = bctx.Disablements()
	env.Failures = bctx.Failures()
	env.disposables = bctx.Disposables()

	h.Summary.SetStartupDuration(time.Since(start))
	h.Logger.Info("Host assembled", map[string]interface{}{
		"built":    len(env.Built),
		"disabled": len(env.Disablements),
		"failed":   len(env.Failures),
	})
	return env, nil
}

func (h *Host[C]) provider(hc *config.HostConfig) *config.Provider {
	if h.opts.provider != nil {
		return h.opts.provider
	}
	values := map[string]any{}
	if hc.Health.Status != "" {
		values[config.DegradationStatusKey] = hc.Health.Status
	}
	return config.NewProviderFromMap(values)
}

func (h *Host[C]) limits(hc *config.HostConfig) hosting.Limits {
	if h.opts.limits != nil {
		return *h.opts.limits
	}
	return hosting.Limits{CPUUnits: hc.Limits.CPU, MemoryBytes: hc.Limits.Memory}
}

// buildTelemetry initializes OTLP export. A failure is recorded and the
// host continues with no-op telemetry.
func (h *Host[C]) buildTelemetry(ctx context.Context, bctx *hosting.BuildContext, hc *config.HostConfig) *observability.Telemetry {
	if h.opts.telemetry != nil {
		return h.opts.telemetry
	}
	tel, ok := hosting.Build[*observability.Telemetry](bctx, TelemetryComponent, hosting.BuilderFunc[*observability.Telemetry](
		func(bctx *hosting.BuildContext) (*observability.Telemetry, bool, error) {
			if !hc.Telemetry.Enabled {
				bctx.Disable(TelemetryComponent, "telemetry export is not enabled")
				return nil, false, nil
			}
			cfg := observability.DefaultConfig(hc.Name)
			cfg.ServiceVersion = h.Version
			cfg.Environment = hc.Environment
			cfg.Instance = hc.Identity.Instance
			cfg.Enabled = true
			cfg.Endpoint = hc.Telemetry.Endpoint
			cfg.Insecure = hc.Telemetry.Insecure
			cfg.SampleRate = hc.Telemetry.SampleRate

			tel, err := observability.Init(ctx, cfg)
			if err != nil {
				return nil, false, err
			}
			bctx.AddDisposable(TelemetryComponent, component.DisposeFunc(tel.Shutdown))
			return tel, true, nil
		}))
	if !ok {
		return observability.Noop()
	}
	return tel
}

// buildClients sets the optional external clients on bctx. Each field is
// assigned only once its client is fully constructed.
func (h *Host[C]) buildClients(bctx *hosting.BuildContext, hc *config.HostConfig) {
	o := h.opts
	if o.clusterConfig != nil || o.locator != nil || o.registrar != nil {
		bctx.ClusterConfig = o.clusterConfig
		bctx.ServiceLocator = o.locator
		bctx.ServiceRegistrar = o.registrar
		return
	}

	type clients struct {
		kv       clusterconfig.Client
		provider *consul.Provider
	}
	c, ok := hosting.Build[clients](bctx, ConsulComponent, hosting.BuilderFunc[clients](
		func(bctx *hosting.BuildContext) (clients, bool, error) {
			if !hc.Consul.Enabled() {
				bctx.Disable(ConsulComponent, "consul address is not configured")
				return clients{}, false, nil
			}
			client, err := consul.NewClient(hc.Consul)
			if err != nil {
				return clients{}, false, err
			}
			return clients{
				kv:       clusterconfig.NewConsulClient(client),
				provider: consul.NewProvider(client, bctx.Log(ConsulComponent)),
			}, true, nil
		}))
	if !ok {
		return
	}
	locator := discovery.NewCachingLocator(c.provider, LocatorCacheTTL)
	extension.Add(bctx.Extensions, locator)
	bctx.ClusterConfig = c.kv
	bctx.ServiceLocator = locator
	bctx.ServiceRegistrar = c.provider
}

// Run executes the full host lifecycle:
// Assemble → start supervisors → OnStart hooks → launch gated health checks →
// OnReady hooks (opening the gate) → app → OnStop hooks → Dispose.
//
// The run context is canceled on SIGINT/SIGTERM. A nil app blocks until then.
func (h *Host[C]) Run(ctx context.Context, app func(ctx context.Context, env *Environment) error) error {
	env, err := h.Assemble(ctx)
	if err != nil {
		return err
	}

	runCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if err := h.startup(runCtx, env); err != nil {
		if stopErr := h.stop(env); stopErr != nil {
			h.Logger.Error("Shutdown after failed startup reported errors", logger.ErrorFields("host", stopErr))
		}
		return err
	}

	var appErr error
	if app != nil {
		appErr = app(runCtx, env)
	} else {
		h.Logger.Info("Host ready — waiting for shutdown signal")
		<-runCtx.Done()
	}

	if stopErr := h.stop(env); stopErr != nil {
		if appErr != nil {
			return appErr
		}
		return stopErr
	}
	return appErr
}

// startup starts the supervisors and runs the start and warmup hooks. The
// health tracker is launched before the warmup hooks and gated on them.
func (h *Host[C]) startup(ctx context.Context, env *Environment) error {
	h.startSupervisors(ctx, env)

	if err := runHooks(ctx, h.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	ready := make(chan struct{})
	if env.Health != nil {
		if err := env.Health.PrepareToLaunchPeriodicalChecks(ctx, ready); err != nil {
			return fmt.Errorf("health checks: %w", err)
		}
	}

	if err := runHooks(ctx, h.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}
	close(ready)

	h.DisplaySummary(env)
	return nil
}

// startSupervisors starts the built long-running components in assembly
// order. Start errors are logged; the beacon's health check keeps reporting
// its state.
func (h *Host[C]) startSupervisors(ctx context.Context, env *Environment) {
	supervisors := component.NewSupervisors(h.Logger)
	if env.Beacon != nil {
		supervisors.Register(beacon.ComponentName, env.Beacon)
	}
	if env.Procs != nil {
		supervisors.Register(procs.ComponentName, env.Procs)
	}
	if env.Diagnostics != nil {
		supervisors.Register(diagnostics.ComponentName, env.Diagnostics)
	}
	_ = supervisors.StartAll(ctx)
}

// DisplaySummary prints the assembly summary with the current health report.
func (h *Host[C]) DisplaySummary(env *Environment) {
	h.Summary.DisplaySummary(env)
}

// stop runs OnStop hooks and disposes the environment within the graceful timeout.
func (h *Host[C]) stop(env *Environment) error {
	h.Logger.Info("Shutting down host", map[string]interface{}{
		"timeout": h.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, h.onStop); err != nil {
		h.Logger.Error("OnStop hook error", map[string]interface{}{
			"error": err.Error(),
		})
		shutdownErr = err
	}

	if err := env.Dispose(ctx); err != nil {
		h.Logger.Error("Shutdown completed with errors", map[string]interface{}{
			"error": err.Error(),
		})
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	h.Logger.Info("Host shutdown complete")
	return shutdownErr
}
