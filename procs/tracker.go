package procs

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/validation"
)

// Settings control the GOMAXPROCS adjustment.
type Settings struct {
	Interval   time.Duration `mapstructure:"interval" validate:"gt=0"`
	Multiplier float64       `mapstructure:"multiplier" validate:"gt=0"`
	Minimum    int           `mapstructure:"minimum" validate:"gte=1"`
}

// DefaultSettings checks every 30s with one proc per CPU unit.
func DefaultSettings() Settings {
	return Settings{Interval: 30 * time.Second, Multiplier: 1, Minimum: 1}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	return validation.Validate(s)
}

// Target returns the GOMAXPROCS value for a CPU limit, or 0 when the limit
// is unknown.
func (s Settings) Target(cpu float64) int {
	if cpu <= 0 || math.IsNaN(cpu) || math.IsInf(cpu, 0) {
		return 0
	}
	n := int(math.Ceil(cpu * s.Multiplier))
	if n < s.Minimum {
		n = s.Minimum
	}
	return n
}

// LimitFunc returns the current CPU limit in units.
type LimitFunc func() float64

// Tracker periodically applies Settings.Target to GOMAXPROCS.
type Tracker struct {
	settings Settings
	limit    LimitFunc
	log      *logger.Logger
	gauge    metric.Int64Gauge
	// setProcs is runtime.GOMAXPROCS outside tests.
	setProcs func(int) int

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	current int
}

// NewTracker creates a stopped tracker. A nil meter disables the gauge.
func NewTracker(settings Settings, limit LimitFunc, log *logger.Logger, meter metric.Meter) (*Tracker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if limit == nil {
		return nil, errors.MissingField("limit")
	}
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("procs")
	}
	gauge, err := meter.Int64Gauge("procs.gomaxprocs",
		metric.WithDescription("Current GOMAXPROCS value"),
	)
	if err != nil {
		gauge, _ = metricnoop.NewMeterProvider().Meter("procs").Int64Gauge("procs.gomaxprocs")
	}
	return &Tracker{
		settings: settings,
		limit:    limit,
		log:      logger.OrGlobal(log),
		gauge:    gauge,
		setProcs: runtime.GOMAXPROCS,
	}, nil
}

// Settings returns the tracker settings.
func (t *Tracker) Settings() Settings { return t.settings }

// Current returns the last value applied, or 0 before the first adjustment.
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Start applies the target immediately and then on every interval until
// ctx ends or Stop is called. Only the first call has an effect.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return errors.InvalidState("start procs tracker", "stopped")
	}
	if t.started {
		return nil
	}
	t.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(loopCtx)
	return nil
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.settings.Interval)
	defer ticker.Stop()
	for {
		t.Adjust(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Adjust applies the target for the current limit once and returns the
// resulting GOMAXPROCS. An unknown limit leaves GOMAXPROCS unchanged.
func (t *Tracker) Adjust(ctx context.Context) int {
	target := t.settings.Target(t.limit())

	t.mu.Lock()
	defer t.mu.Unlock()
	if target == 0 {
		return t.setProcs(0)
	}
	previous := t.setProcs(target)
	t.current = target
	t.gauge.Record(ctx, int64(target))
	if previous != target {
		t.log.Info("GOMAXPROCS adjusted", logger.Fields("previous", previous, "current", target))
	}
	return target
}

// Stop ends the loop. It is safe to call repeatedly.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopped = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
