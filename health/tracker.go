package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/logger"
)

const scope = "github.com/kbukum/hostkit/health"

// TrackerState is the scheduling state of a Tracker.
type TrackerState int

const (
	StateNotStarted TrackerState = iota
	StateAwaitingGate
	StateRunning
	StateStopped
)

func (s TrackerState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAwaitingGate:
		return "awaiting_gate"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithMeter sets the meter used for check metrics.
func WithMeter(m metric.Meter) Option {
	return func(t *Tracker) { t.meter = m }
}

// WithTracer sets the tracer used for tick spans.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Tracker) { t.tracer = tr }
}

// StatusObserver is notified when the aggregate status changes.
type StatusObserver func(old, current Status)

// Tracker runs registered checks periodically.
//
// A tracker is started at most once. Once stopped it never runs a check
// again.
type Tracker struct {
	settings Settings
	log      *logger.Logger
	meter    metric.Meter
	tracer   trace.Tracer

	checkDuration metric.Float64Histogram
	checkFailures metric.Int64Counter
	statusGauge   metric.Int64Gauge

	mu        sync.RWMutex
	checks    map[string]Check
	state     TrackerState
	cancel    context.CancelFunc
	done      chan struct{}
	report    Report
	observers []StatusObserver
	ticks     uint64

	// starting counts invocations that passed the stopped check but have
	// not yet entered Check.
	starting sync.WaitGroup
}

// NewTracker creates a tracker in the NotStarted state.
func NewTracker(settings Settings, opts ...Option) (*Tracker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		settings: settings,
		checks:   make(map[string]Check),
		report: Report{
			Status: StatusHealthy,
			Checks: map[string]CheckReport{},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logger.OrGlobal(t.log).WithComponent("health")
	if t.meter == nil {
		t.meter = metricnoop.NewMeterProvider().Meter(scope)
	}
	if t.tracer == nil {
		t.tracer = tracenoop.NewTracerProvider().Tracer(scope)
	}
	t.initInstruments()
	return t, nil
}

func (t *Tracker) initInstruments() {
	noop := metricnoop.NewMeterProvider().Meter(scope)

	var err error
	t.checkDuration, err = t.meter.Float64Histogram("health.check.duration",
		metric.WithDescription("Duration of health check invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		t.checkDuration, _ = noop.Float64Histogram("health.check.duration")
	}
	t.checkFailures, err = t.meter.Int64Counter("health.check.failures",
		metric.WithDescription("Health check invocations that did not report healthy"),
	)
	if err != nil {
		t.checkFailures, _ = noop.Int64Counter("health.check.failures")
	}
	t.statusGauge, err = t.meter.Int64Gauge("health.status",
		metric.WithDescription("Aggregate health status: 0 healthy, 1 degraded, 2 failing"),
	)
	if err != nil {
		t.statusGauge, _ = noop.Int64Gauge("health.status")
	}
}

// Settings returns the tracker settings.
func (t *Tracker) Settings() Settings { return t.settings }

// RegisterCheck adds a named check. Registering an existing name replaces
// the previous check. The next tick includes the check whatever the state.
func (t *Tracker) RegisterCheck(name string, check Check) {
	if check == nil {
		t.log.Warn("Ignoring nil health check", logger.Fields(logger.FieldCheck, name))
		return
	}
	t.mu.Lock()
	_, exists := t.checks[name]
	t.checks[name] = check
	t.mu.Unlock()

	if exists {
		t.log.Warn("Health check replaced", logger.Fields(logger.FieldCheck, name))
	}
}

// RegisterCheckFunc is RegisterCheck for a plain function.
func (t *Tracker) RegisterCheckFunc(name string, fn func(ctx context.Context) (Result, error)) {
	if fn == nil {
		t.RegisterCheck(name, nil)
		return
	}
	t.RegisterCheck(name, CheckFunc(fn))
}

// Checks returns the registered check names in sorted order.
func (t *Tracker) Checks() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.checks))
	for name := range t.checks {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// State returns the scheduling state.
func (t *Tracker) State() TrackerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// CurrentReport returns a copy of the latest published report.
func (t *Tracker) CurrentReport() Report {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.report.clone()
}

// CurrentStatus returns the aggregate status of the latest report.
func (t *Tracker) CurrentStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.report.Status
}

// OnStatusChange registers an observer called after a published report
// changes the aggregate status. Observers run synchronously on the
// publishing goroutine.
func (t *Tracker) OnStatusChange(fn StatusObserver) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// PrepareToLaunchPeriodicalChecks starts the periodic loop. With a nil gate
// the tracker is Running immediately and the first tick runs at once.
// Otherwise it waits in AwaitingGate until the gate is closed or receives a
// value. Cancelling ctx aborts the wait, stopping the tracker, and later
// ends the loop and any in-flight checks. The call never blocks.
func (t *Tracker) PrepareToLaunchPeriodicalChecks(ctx context.Context, gate <-chan struct{}) error {
	t.mu.Lock()
	if t.state != StateNotStarted {
		state := t.state
		t.mu.Unlock()
		return errors.InvalidState("launch health checks", state.String())
	}
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	if gate == nil {
		t.state = StateRunning
	} else {
		t.state = StateAwaitingGate
	}
	t.mu.Unlock()

	go t.run(loopCtx, gate)
	return nil
}

func (t *Tracker) run(ctx context.Context, gate <-chan struct{}) {
	defer close(t.done)
	defer t.markStopped()

	if gate != nil {
		t.log.Debug("Waiting for readiness gate")
		select {
		case <-gate:
		case <-ctx.Done():
			t.log.Info("Health checks cancelled before readiness")
			return
		}
		t.mu.Lock()
		if t.state != StateAwaitingGate {
			t.mu.Unlock()
			return
		}
		t.state = StateRunning
		t.mu.Unlock()
	}

	t.log.Info("Health checks running", logger.Fields(
		"interval", t.settings.CheckInterval.String(),
		"checks", len(t.Checks()),
	))

	ticker := time.NewTicker(t.settings.CheckInterval)
	defer ticker.Stop()
	for {
		t.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Tracker) markStopped() {
	t.mu.Lock()
	t.state = StateStopped
	t.mu.Unlock()
}

func (t *Tracker) tick(ctx context.Context) {
	ctx, span := t.tracer.Start(ctx, "health.tick")
	defer span.End()

	results := t.runChecks(ctx)
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return
	}

	report := Report{
		Status:    Aggregate(results),
		Checks:    results,
		CheckedAt: time.Now(),
	}
	span.SetAttributes(
		attribute.String("health.status", report.Status.String()),
		attribute.Int("health.checks", len(results)),
	)
	t.publish(ctx, report, true)
}

// RunOnce runs every registered check now and publishes the result. It is
// only valid while the tracker is Running.
func (t *Tracker) RunOnce(ctx context.Context) (Report, error) {
	if state := t.State(); state != StateRunning {
		return Report{}, errors.InvalidState("run health checks", state.String())
	}
	results := t.runChecks(ctx)
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	report := Report{
		Status:    Aggregate(results),
		Checks:    results,
		CheckedAt: time.Now(),
	}
	return t.publish(ctx, report, false), nil
}

func (t *Tracker) publish(ctx context.Context, report Report, periodic bool) Report {
	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		return report
	}
	if periodic {
		t.ticks++
	}
	report.Tick = t.ticks
	previous := t.report.Status
	t.report = report
	observers := append([]StatusObserver(nil), t.observers...)
	t.mu.Unlock()

	t.statusGauge.Record(ctx, int64(report.Status))

	if report.Status == previous {
		return report
	}
	fields := logger.Fields("previous", previous.String(), logger.FieldStatus, report.Status.String())
	if report.Status == StatusHealthy {
		t.log.Info("Health recovered", fields)
	} else {
		t.log.Warn("Health status changed", fields)
	}
	for _, fn := range observers {
		fn(previous, report.Status)
	}
	return report
}

type namedCheck struct {
	name  string
	check Check
}

func (t *Tracker) snapshot() []namedCheck {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]namedCheck, 0, len(t.checks))
	for name, c := range t.checks {
		out = append(out, namedCheck{name: name, check: c})
	}
	return out
}

func (t *Tracker) runChecks(ctx context.Context) map[string]CheckReport {
	checks := t.snapshot()
	var (
		mu      sync.Mutex
		results = make(map[string]CheckReport, len(checks))
	)

	var g errgroup.Group
	for _, nc := range checks {
		g.Go(func() error {
			report, ran := t.runOne(ctx, nc)
			if !ran {
				return nil
			}
			mu.Lock()
			results[nc.name] = report
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runOne invokes a single check under the check timeout. The check runs on
// its own goroutine so one that ignores its context cannot hold up the tick.
func (t *Tracker) runOne(ctx context.Context, nc namedCheck) (CheckReport, bool) {
	t.mu.RLock()
	if t.state == StateStopped {
		t.mu.RUnlock()
		return CheckReport{}, false
	}
	t.starting.Add(1)
	t.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, t.settings.CheckTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- invoke(checkCtx, nc.check, t.starting.Done)
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		if ctx.Err() != nil {
			result = Failing("check cancelled")
		} else {
			result = Failing(fmt.Sprintf("check timed out after %s", t.settings.CheckTimeout))
		}
	}
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(
		attribute.String("check", nc.name),
		attribute.String("status", result.Status.String()),
	)
	t.checkDuration.Record(ctx, elapsed.Seconds(), attrs)
	if result.Status != StatusHealthy {
		t.checkFailures.Add(ctx, 1, attrs)
		t.log.Debug("Health check not healthy", logger.Fields(
			logger.FieldCheck, nc.name,
			logger.FieldStatus, result.Status.String(),
			logger.FieldReason, result.Reason,
		))
	}

	return CheckReport{Result: result, Duration: elapsed, CheckedAt: start}, true
}

func invoke(ctx context.Context, check Check, entered func()) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failing(fmt.Sprintf("check panicked: %v", r))
		}
	}()
	entered()
	r, err := check.Check(ctx)
	if err != nil {
		return Failing(err.Error())
	}
	return r
}

// Stop cancels the gate wait, the periodic loop and in-flight checks, and
// waits for the loop to exit or ctx to end. It is safe to call repeatedly
// and from any state.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	wasStopped := t.state == StateStopped
	t.state = StateStopped
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.starting.Wait()

	if !wasStopped {
		t.log.Info("Health checks stopped")
	}
	return nil
}

// Dispose stops the tracker.
func (t *Tracker) Dispose(ctx context.Context) error {
	return t.Stop(ctx)
}
