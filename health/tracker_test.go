package health

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/logger"
)

func newTestTracker(t *testing.T, interval, timeout time.Duration, opts ...Option) *Tracker {
	t.Helper()
	opts = append([]Option{WithLogger(logger.NewNop())}, opts...)
	tracker, err := NewTracker(Settings{CheckInterval: interval, CheckTimeout: timeout}, opts...)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	t.Cleanup(func() { _ = tracker.Stop(context.Background()) })
	return tracker
}

// countingCheck records every invocation.
type countingCheck struct {
	calls  atomic.Int64
	result Result
}

func (c *countingCheck) Check(context.Context) (Result, error) {
	c.calls.Add(1)
	return c.result, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForTick(t *testing.T, tracker *Tracker, tick uint64) Report {
	t.Helper()
	waitFor(t, "health tick", func() bool { return tracker.CurrentReport().Tick >= tick })
	return tracker.CurrentReport()
}

func TestNewTrackerValidatesSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{"zero interval", Settings{CheckInterval: 0, CheckTimeout: time.Second}},
		{"zero timeout", Settings{CheckInterval: time.Second, CheckTimeout: 0}},
		{"timeout exceeds interval", Settings{CheckInterval: time.Second, CheckTimeout: 2 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTracker(tt.settings); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGateHoldsChecksUntilReleased(t *testing.T) {
	interval := 10 * time.Millisecond
	tracker := newTestTracker(t, interval, interval)
	early := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("early", early)

	gate := make(chan struct{})
	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), gate); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := tracker.State(); got != StateAwaitingGate {
		t.Fatalf("state = %v, want awaiting_gate", got)
	}

	late := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("late", late)
	time.Sleep(5 * interval)

	if n := early.calls.Load() + late.calls.Load(); n != 0 {
		t.Fatalf("checks ran %d times before the gate opened", n)
	}

	close(gate)
	waitFor(t, "early check", func() bool { return early.calls.Load() >= 1 })
	waitFor(t, "late check", func() bool { return late.calls.Load() >= 1 })
	if got := tracker.State(); got != StateRunning {
		t.Errorf("state = %v, want running", got)
	}
}

func TestGateReleasedByValue(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	check := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("c", check)

	gate := make(chan struct{}, 1)
	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), gate); err != nil {
		t.Fatalf("launch: %v", err)
	}
	gate <- struct{}{}
	waitFor(t, "first invocation", func() bool { return check.calls.Load() >= 1 })
}

func TestLaunchWithoutGateRunsFirstTickImmediately(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	check := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("c", check)

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitFor(t, "first invocation", func() bool { return check.calls.Load() >= 1 })
	if got := tracker.State(); got != StateRunning {
		t.Errorf("state = %v, want running", got)
	}
}

func TestLaunchWithoutGateKeepsTicking(t *testing.T) {
	tracker := newTestTracker(t, 5*time.Millisecond, 5*time.Millisecond)
	check := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("c", check)

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitFor(t, "three invocations", func() bool { return check.calls.Load() >= 3 })
}

func TestCancelDuringGateWaitStops(t *testing.T) {
	tracker := newTestTracker(t, 5*time.Millisecond, 5*time.Millisecond)
	check := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("c", check)

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	if err := tracker.PrepareToLaunchPeriodicalChecks(ctx, gate); err != nil {
		t.Fatalf("launch: %v", err)
	}
	cancel()
	waitFor(t, "stopped state", func() bool { return tracker.State() == StateStopped })

	close(gate)
	time.Sleep(25 * time.Millisecond)
	if n := check.calls.Load(); n != 0 {
		t.Errorf("check ran %d times after cancelled gate wait", n)
	}
}

func TestSecondLaunchRejected(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("first launch: %v", err)
	}
	err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil)
	if !errors.HasCode(err, errors.ErrCodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestStopIsIdempotentAndFinal(t *testing.T) {
	interval := 5 * time.Millisecond
	tracker := newTestTracker(t, interval, interval)
	check := &countingCheck{result: Healthy()}
	tracker.RegisterCheck("c", check)

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitFor(t, "invocations", func() bool { return check.calls.Load() >= 2 })

	if err := tracker.Stop(context.Background()); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := tracker.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if got := tracker.State(); got != StateStopped {
		t.Fatalf("state = %v, want stopped", got)
	}

	after := check.calls.Load()
	time.Sleep(10 * interval)
	if n := check.calls.Load(); n != after {
		t.Errorf("check ran %d more times after stop", n-after)
	}

	err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil)
	if !errors.HasCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("a stopped tracker must not relaunch, got %v", err)
	}
}

func TestStopBeforeLaunch(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	if err := tracker.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := tracker.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err == nil {
		t.Error("expected launch after stop to fail")
	}
}

func TestAggregatePrecedencePerTick(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    Status
	}{
		{"all healthy", []Result{Healthy(), Healthy()}, StatusHealthy},
		{"healthy and degraded", []Result{Healthy(), Degraded("slow")}, StatusDegraded},
		{"mixed", []Result{Healthy(), Degraded("slow"), Failing("down")}, StatusFailing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker(t, time.Hour, time.Second)
			for i, r := range tt.results {
				tracker.RegisterCheck(string(rune('a'+i)), Static(r))
			}
			if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
				t.Fatalf("launch: %v", err)
			}
			report := waitForTick(t, tracker, 1)
			if report.Status != tt.want {
				t.Errorf("status = %v, want %v", report.Status, tt.want)
			}
			if len(report.Checks) != len(tt.results) {
				t.Errorf("report has %d checks, want %d", len(report.Checks), len(tt.results))
			}
		})
	}
}

func TestCheckErrorsAndPanicsAreFailing(t *testing.T) {
	tracker := newTestTracker(t, 5*time.Millisecond, 5*time.Millisecond)
	tracker.RegisterCheckFunc("erroring", func(context.Context) (Result, error) {
		return Healthy(), stderrors.New("db down")
	})
	tracker.RegisterCheckFunc("panicking", func(context.Context) (Result, error) {
		panic("boom")
	})
	tracker.RegisterCheck("ok", Static(Healthy()))

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	report := waitForTick(t, tracker, 3)

	if report.Status != StatusFailing {
		t.Errorf("aggregate = %v, want failing", report.Status)
	}
	if c := report.Checks["erroring"]; c.Status != StatusFailing || c.Reason != "db down" {
		t.Errorf("erroring check = %+v", c.Result)
	}
	if c := report.Checks["panicking"]; c.Status != StatusFailing || !strings.Contains(c.Reason, "boom") {
		t.Errorf("panicking check = %+v", c.Result)
	}
	if c := report.Checks["ok"]; c.Status != StatusHealthy {
		t.Errorf("sibling check affected: %+v", c.Result)
	}
	if got := tracker.Checks(); len(got) != 3 {
		t.Errorf("failing checks must stay registered, got %v", got)
	}
}

func TestCheckTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	tracker := newTestTracker(t, time.Hour, 20*time.Millisecond)
	tracker.RegisterCheckFunc("stuck", func(context.Context) (Result, error) {
		<-release
		return Healthy(), nil
	})
	tracker.RegisterCheck("fast", Static(Healthy()))

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	report := waitForTick(t, tracker, 1)

	stuck := report.Checks["stuck"]
	if stuck.Status != StatusFailing || !strings.Contains(stuck.Reason, "timed out") {
		t.Errorf("stuck check = %+v", stuck.Result)
	}
	if report.Checks["fast"].Status != StatusHealthy {
		t.Errorf("fast check = %+v", report.Checks["fast"].Result)
	}
}

func TestCheckReceivesCancellation(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	entered := make(chan struct{})
	cancelled := make(chan struct{})
	tracker.RegisterCheckFunc("waits", func(ctx context.Context) (Result, error) {
		close(entered)
		<-ctx.Done()
		close(cancelled)
		return Failing("cancelled"), ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := tracker.PrepareToLaunchPeriodicalChecks(ctx, nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	<-entered
	cancel()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight check did not observe cancellation")
	}
	waitFor(t, "stopped state", func() bool { return tracker.State() == StateStopped })
	if tick := tracker.CurrentReport().Tick; tick != 0 {
		t.Errorf("a cancelled tick must not publish, got tick %d", tick)
	}
}

func TestDuplicateNameOverwrites(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	tracker.RegisterCheck("dup", Static(Failing("old")))
	tracker.RegisterCheck("dup", Static(Healthy()))

	if got := tracker.Checks(); len(got) != 1 || got[0] != "dup" {
		t.Fatalf("Checks() = %v", got)
	}
	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	report := waitForTick(t, tracker, 1)
	if report.Status != StatusHealthy {
		t.Errorf("last registration should win, got %v", report.Status)
	}
}

func TestDuplicateNameLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "warn", Format: "json"}, "test", &buf)
	tracker := newTestTracker(t, time.Hour, time.Second, WithLogger(log))

	tracker.RegisterCheck("dup", Static(Healthy()))
	if buf.Len() != 0 {
		t.Fatalf("first registration should not warn: %s", buf.String())
	}
	tracker.RegisterCheck("dup", Static(Healthy()))
	if !strings.Contains(buf.String(), "Health check replaced") || !strings.Contains(buf.String(), `"check":"dup"`) {
		t.Errorf("expected replacement warning, got %s", buf.String())
	}
}

func TestNilCheckIgnored(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	tracker.RegisterCheck("nil", nil)
	tracker.RegisterCheckFunc("nilfunc", nil)
	if got := tracker.Checks(); len(got) != 0 {
		t.Errorf("nil checks must not register, got %v", got)
	}
}

func TestRunOnce(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Second)
	check := &countingCheck{result: Degraded("warming")}
	tracker.RegisterCheck("c", check)

	if _, err := tracker.RunOnce(context.Background()); !errors.HasCode(err, errors.ErrCodeInvalidState) {
		t.Fatalf("RunOnce before launch should be INVALID_STATE, got %v", err)
	}
	if check.calls.Load() != 0 {
		t.Fatal("RunOnce before launch must not invoke checks")
	}

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitForTick(t, tracker, 1)

	report, err := tracker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Status != StatusDegraded || report.Checks["c"].Reason != "warming" {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Tick != 1 {
		t.Errorf("on-demand runs must not advance the tick, got %d", report.Tick)
	}
	if check.calls.Load() < 2 {
		t.Errorf("expected the check to run again, calls = %d", check.calls.Load())
	}
}

func TestOnStatusChange(t *testing.T) {
	var current atomic.Int64
	tracker := newTestTracker(t, 5*time.Millisecond, 5*time.Millisecond)
	tracker.RegisterCheckFunc("toggle", func(context.Context) (Result, error) {
		return Result{Status: Status(current.Load())}, nil
	})

	var (
		mu          sync.Mutex
		transitions [][2]Status
	)
	tracker.OnStatusChange(func(old, now Status) {
		mu.Lock()
		transitions = append(transitions, [2]Status{old, now})
		mu.Unlock()
	})
	seen := func(old, now Status) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, tr := range transitions {
			if tr == [2]Status{old, now} {
				return true
			}
		}
		return false
	}

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitForTick(t, tracker, 1)

	current.Store(int64(StatusDegraded))
	waitFor(t, "degraded transition", func() bool { return seen(StatusHealthy, StatusDegraded) })
	current.Store(int64(StatusHealthy))
	waitFor(t, "recovery transition", func() bool { return seen(StatusDegraded, StatusHealthy) })
}

func TestTickMetricsAndSpan(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	tracker := newTestTracker(t, time.Hour, time.Second,
		WithMeter(mp.Meter("test")),
		WithTracer(tp.Tracer("test")),
	)
	tracker.RegisterCheck("ok", Static(Healthy()))
	tracker.RegisterCheck("bad", Static(Failing("down")))

	if err := tracker.PrepareToLaunchPeriodicalChecks(context.Background(), nil); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitForTick(t, tracker, 1)
	if err := tracker.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	found := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}

	if hist, ok := found["health.check.duration"].Data.(metricdata.Histogram[float64]); !ok || len(hist.DataPoints) != 2 {
		t.Errorf("expected a duration series per check, got %+v", found["health.check.duration"].Data)
	}
	failures, ok := found["health.check.failures"].Data.(metricdata.Sum[int64])
	if !ok || len(failures.DataPoints) != 1 || failures.DataPoints[0].Value != 1 {
		t.Errorf("expected one failure for the bad check, got %+v", found["health.check.failures"].Data)
	}
	gauge, ok := found["health.status"].Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != int64(StatusFailing) {
		t.Errorf("expected failing status gauge, got %+v", found["health.status"].Data)
	}

	var ticks int
	for _, span := range recorder.Ended() {
		if span.Name() == "health.tick" {
			ticks++
		}
	}
	if ticks != 1 {
		t.Errorf("expected one health.tick span, got %d", ticks)
	}
}
