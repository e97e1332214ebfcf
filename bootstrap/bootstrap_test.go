package bootstrap

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/hostkit/beacon"
	"github.com/kbukum/hostkit/clusterconfig"
	"github.com/kbukum/hostkit/clustersettings"
	"github.com/kbukum/hostkit/config"
	"github.com/kbukum/hostkit/diagnostics"
	"github.com/kbukum/hostkit/discovery/static"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/identity"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/procs"
)

// testConfig is a minimal config for testing that satisfies the Config interface.
type testConfig struct {
	config.HostConfig
}

type memoryClient struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryClient) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return []byte(v), ok, nil
}

func (m *memoryClient) List(_ context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	for k, v := range m.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = []byte(v)
		}
	}
	return out, nil
}

func newTestConfig(name, version string) *testConfig {
	cfg := &testConfig{}
	cfg.Name = name
	cfg.Version = version
	cfg.Environment = "development"
	cfg.Identity.Project = "shop"
	cfg.Identity.Instance = "cart-1"
	return cfg
}

func newTestHost(t *testing.T, cfg *testConfig, opts ...Option) *Host[*testConfig] {
	t.Helper()
	opts = append([]Option{WithLogger(logger.NewNop())}, opts...)
	host, err := NewHost(cfg, opts...)
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}
	return host
}

func disabledReasons(env *Environment) map[string]string {
	out := make(map[string]string)
	for _, d := range env.Disablements {
		out[d.Component] = d.Reason
	}
	return out
}

func TestNewHost(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"))
	if host.Name != "cart" {
		t.Errorf("expected name 'cart', got %q", host.Name)
	}
	if host.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", host.Version)
	}
	if host.Logger == nil || host.Summary == nil {
		t.Error("expected logger and summary")
	}
	// Defaults were applied to the typed config.
	if host.Cfg.Identity.Application != "cart" {
		t.Errorf("expected application to default to the service name, got %q", host.Cfg.Identity.Application)
	}
	if host.Cfg.Health.Interval != 10*time.Second {
		t.Errorf("expected default health interval, got %s", host.Cfg.Health.Interval)
	}
}

func TestNewHostValidationFailure(t *testing.T) {
	cfg := newTestConfig("", "1.0.0")
	if _, err := NewHost(cfg, WithLogger(logger.NewNop())); err == nil {
		t.Fatal("expected validation error for empty name")
	}
}

func TestNewHostGracefulTimeout(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"), WithGracefulTimeout(3*time.Second))
	if host.gracefulTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", host.gracefulTimeout)
	}
}

func TestAssembleMinimal(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"))

	env, err := host.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	defer env.Dispose(context.Background())

	if got := strings.Join(env.Built, ","); got != "identity,health" {
		t.Errorf("unexpected built components %q", got)
	}
	if len(env.Failures) != 0 {
		t.Errorf("unexpected failures: %v", env.Failures)
	}

	reasons := disabledReasons(env)
	want := map[string]string{
		TelemetryComponent:            "telemetry export is not enabled",
		ConsulComponent:               "consul address is not configured",
		clustersettings.ComponentName: clustersettings.ReasonNotEnabled,
		beacon.ComponentName:          beacon.ReasonNotEnabled,
		procs.ComponentName:           procs.ReasonNotEnabled,
		diagnostics.ComponentName:     diagnostics.ReasonNotEnabled,
	}
	for component, reason := range want {
		if reasons[component] != reason {
			t.Errorf("%s: expected reason %q, got %q", component, reason, reasons[component])
		}
	}

	if env.Identity == nil || env.Identity.String() != "shop/development/cart/cart-1" {
		t.Fatalf("unexpected identity %v", env.Identity)
	}
	if id, err := extension.Get[*identity.Identity](env.Extensions); err != nil || id != env.Identity {
		t.Errorf("identity should be published as an extension: %v", err)
	}
	if tracker, err := extension.Get[*health.Tracker](env.Extensions); err != nil || tracker != env.Health {
		t.Errorf("tracker should be published as an extension: %v", err)
	}
	if env.Health.Settings().CheckInterval != 10*time.Second {
		t.Errorf("tracker should use the configured interval, got %s", env.Health.Settings().CheckInterval)
	}
	if env.Health.State() != health.StateNotStarted {
		t.Errorf("assembly must not launch checks, state=%s", env.Health.State())
	}
}

func TestAssembleFullEnvironment(t *testing.T) {
	cfg := newTestConfig("cart", "1.0.0")
	cfg.ClusterConfig.Enabled = true
	cfg.Beacon.Enabled = true
	cfg.Beacon.Port = 8080
	cfg.Procs.Enabled = true

	kv := &memoryClient{values: map[string]string{
		"config/shop/default/timeout":                  "5s",
		"config/shop/default/region":                   "eu",
		"config/shop/development/cart/timeout":         "2s",
		"config/shop/production/cart/timeout":          "9s",
		"config/other/development/cart/should-not-see": "x",
	}}
	registrar := static.NewProvider()

	host := newTestHost(t, cfg,
		WithClusterConfigClient(kv),
		WithServiceRegistrar(registrar),
		WithServiceLocator(registrar),
		WithLimits(hosting.Limits{CPUUnits: 2}),
	)
	host.SetupDiagnostics(func(b *diagnostics.Builder) { b.Enable() })

	env, err := host.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	defer env.Dispose(context.Background())

	if len(env.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", env.Failures)
	}
	wantBuilt := "identity,health,cluster-settings,beacon,procs,diagnostics"
	if got := strings.Join(env.Built, ","); got != wantBuilt {
		t.Errorf("expected built %q, got %q", wantBuilt, got)
	}

	if env.ClusterSettings == nil {
		t.Fatal("expected cluster settings")
	}
	if v, _ := env.ClusterSettings.Get("timeout"); v != "2s" {
		t.Errorf("application level should win, got %q", v)
	}
	if v, _ := env.ClusterSettings.Get("region"); v != "eu" {
		t.Errorf("shared level should be visible, got %q", v)
	}
	if _, ok := env.ClusterSettings.Get("should-not-see"); ok {
		t.Error("other projects must not leak into the snapshot")
	}

	if env.Beacon == nil || env.Beacon.Registration().Port != 8080 {
		t.Fatalf("expected beacon on port 8080, got %+v", env.Beacon)
	}
	if env.Procs == nil || env.Diagnostics == nil {
		t.Fatal("expected procs tracker and diagnostics server")
	}

	checks := strings.Join(env.Health.Checks(), ",")
	if !strings.Contains(checks, beacon.CheckName) || !strings.Contains(checks, health.DegradationCheckName) {
		t.Errorf("expected beacon and configured-status checks, got %q", checks)
	}

	// Disposal order is the reverse of registration.
	names := env.Disposables()
	if len(names) == 0 || names[0] != health.ComponentName || names[len(names)-1] != diagnostics.ComponentName {
		t.Errorf("unexpected disposables %v", names)
	}
}

func TestAssembleIdentityFailureIsIsolated(t *testing.T) {
	cfg := newTestConfig("cart", "1.0.0")
	cfg.Beacon.Enabled = true
	cfg.Beacon.Port = 8080
	host := newTestHost(t, cfg, WithServiceRegistrar(static.NewProvider()))
	host.SetupIdentity(func(b *identity.Builder) {
		b.CustomizeIdentity(func(id *identity.Identity) { id.Project = "" })
	})

	env, err := host.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	defer env.Dispose(context.Background())

	if len(env.Failures) != 1 || env.Failures[0].Component != IdentityComponent {
		t.Fatalf("expected one identity failure, got %v", env.Failures)
	}
	if env.Identity != nil {
		t.Error("failed identity must not be exposed")
	}
	if env.Health == nil {
		t.Error("health tracker should still be built")
	}
	if got := disabledReasons(env)[beacon.ComponentName]; got != beacon.ReasonNoIdentity {
		t.Errorf("beacon should be disabled for missing identity, got %q", got)
	}
}

func TestAssembleTwice(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"))
	env, err := host.Assemble(context.Background())
	if err != nil {
		t.Fatalf("first Assemble failed: %v", err)
	}
	defer env.Dispose(context.Background())

	if _, err := host.Assemble(context.Background()); err == nil {
		t.Fatal("expected error on second Assemble")
	}
}

func TestAssembleConfiguredStatus(t *testing.T) {
	cfg := newTestConfig("cart", "1.0.0")
	cfg.Health.Status = "degraded"
	host := newTestHost(t, cfg)

	env, err := host.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	defer env.Dispose(context.Background())

	if err := env.Health.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	report, err := env.Health.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if report.Status != health.StatusDegraded {
		t.Errorf("expected degraded from configured status, got %s", report.Status)
	}
}

func TestRunGatesHealthChecksOnReadyHooks(t *testing.T) {
	cfg := newTestConfig("cart", "1.0.0")
	cfg.Health.Interval = 20 * time.Millisecond
	cfg.Health.CheckTimeout = 10 * time.Millisecond
	host := newTestHost(t, cfg)

	var calls atomic.Int32
	host.SetupHealth(func(b *health.TrackerBuilder) {
		b.AddCheck("probe", health.CheckFunc(func(context.Context) (health.Result, error) {
			calls.Add(1)
			return health.Healthy(), nil
		}))
	})

	var order []string
	host.OnStart(func(ctx context.Context) error {
		order = append(order, "start")
		return nil
	})
	host.OnReady(func(ctx context.Context) error {
		time.Sleep(3 * cfg.Health.Interval)
		if n := calls.Load(); n != 0 {
			return fmt.Errorf("checks ran %d times during warmup", n)
		}
		order = append(order, "ready")
		return nil
	})
	host.OnStop(func(ctx context.Context) error {
		order = append(order, "stop")
		return nil
	})

	var env *Environment
	err := host.Run(context.Background(), func(ctx context.Context, e *Environment) error {
		env = e
		deadline := time.Now().Add(2 * time.Second)
		for calls.Load() == 0 {
			if time.Now().After(deadline) {
				return fmt.Errorf("checks never ran after warmup")
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.Join(order, ","); got != "start,ready,stop" {
		t.Errorf("unexpected hook order %q", got)
	}
	if env.Health.State() != health.StateStopped {
		t.Errorf("tracker should be stopped after Run, state=%s", env.Health.State())
	}
	after := calls.Load()
	time.Sleep(3 * cfg.Health.Interval)
	if calls.Load() != after {
		t.Error("checks ran after shutdown")
	}
}

func TestRunReadyHookFailure(t *testing.T) {
	cfg := newTestConfig("cart", "1.0.0")
	host := newTestHost(t, cfg)

	var stopped bool
	host.OnReady(func(ctx context.Context) error {
		return fmt.Errorf("warmup failed")
	})
	host.OnStop(func(ctx context.Context) error {
		stopped = true
		return nil
	})

	appCalled := false
	err := host.Run(context.Background(), func(context.Context, *Environment) error {
		appCalled = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "warmup failed") {
		t.Fatalf("expected warmup error, got %v", err)
	}
	if appCalled {
		t.Error("app must not run when warmup fails")
	}
	if !stopped {
		t.Error("OnStop hooks should run after a failed startup")
	}
}

func TestRunStartsAndStopsSupervisors(t *testing.T) {
	cfg := newTestConfig("cart", "1.0.0")
	cfg.Beacon.Enabled = true
	cfg.Beacon.Port = 8080
	cfg.Procs.Enabled = true
	cfg.Procs.Interval = time.Hour
	cfg.Procs.Multiplier = 1
	cfg.Procs.Minimum = 1

	registrar := static.NewProvider()
	before := runtime.GOMAXPROCS(0)
	defer runtime.GOMAXPROCS(before)

	host := newTestHost(t, cfg,
		WithServiceRegistrar(registrar),
		WithLimits(hosting.Limits{CPUUnits: 1}),
	)

	var registeredDuringRun []string
	err := host.Run(context.Background(), func(ctx context.Context, env *Environment) error {
		registeredDuringRun = registrar.Registered()
		if !env.Beacon.Registered() {
			return fmt.Errorf("beacon should be registered while running")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(registeredDuringRun) != 1 || registeredDuringRun[0] != "shop-cart-cart-1" {
		t.Errorf("unexpected registrations %v", registeredDuringRun)
	}
	if len(registrar.Registered()) != 0 {
		t.Errorf("beacon should deregister at shutdown, still %v", registrar.Registered())
	}
}

func TestRunAppError(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"))
	err := host.Run(context.Background(), func(context.Context, *Environment) error {
		return fmt.Errorf("app failed")
	})
	if err == nil || err.Error() != "app failed" {
		t.Fatalf("expected app error, got %v", err)
	}
}

func TestRunWithoutAppWaitsForContext(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- host.Run(ctx, nil) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunHookHelpers(t *testing.T) {
	var order []int
	hooks := []Hook{
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { return fmt.Errorf("boom") },
		func(context.Context) error { order = append(order, 3); return nil },
	}
	err := runHooks(context.Background(), hooks)
	if err == nil || !strings.Contains(err.Error(), "hook 1 failed") {
		t.Fatalf("expected hook 1 failure, got %v", err)
	}
	if len(order) != 1 {
		t.Errorf("hooks after a failure must not run, got %v", order)
	}
}

func TestSummaryDisplay(t *testing.T) {
	host := newTestHost(t, newTestConfig("cart", "1.0.0"))
	env, err := host.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	defer env.Dispose(context.Background())

	host.DisplaySummary(env)
	host.Summary.DisplaySummary(&Environment{})
	if host.Summary.StartupDuration() <= 0 {
		t.Error("expected a recorded assembly duration")
	}
}

var _ clusterconfig.Client = (*memoryClient)(nil)
