package health

import (
	"context"
	"time"

	"github.com/kbukum/hostkit/customization"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/validation"
)

// ComponentName is the name the tracker is built and disposed under.
const ComponentName = "health"

// DegradationCheckName is the check reporting the configured status.
const DegradationCheckName = "configured-status"

// Settings control the periodic loop.
type Settings struct {
	CheckInterval time.Duration `mapstructure:"interval" validate:"gt=0"`
	CheckTimeout  time.Duration `mapstructure:"check_timeout" validate:"gt=0"`
}

// DefaultSettings returns a 10s interval with a 5s check timeout.
func DefaultSettings() Settings {
	return Settings{
		CheckInterval: 10 * time.Second,
		CheckTimeout:  5 * time.Second,
	}
}

// Validate checks that both durations are positive and the timeout fits in
// the interval.
func (s Settings) Validate() error {
	if err := validation.Validate(s); err != nil {
		return err
	}
	if s.CheckTimeout > s.CheckInterval {
		return errors.InvalidInput("check_timeout", "must not exceed interval")
	}
	return nil
}

// TrackerBuilder builds the host's Tracker. The tracker is not optional.
type TrackerBuilder struct {
	customizers customization.Pipeline[*Settings]
	checks      []namedCheck
}

// NewTrackerBuilder creates a builder with default settings.
func NewTrackerBuilder() *TrackerBuilder {
	return &TrackerBuilder{}
}

// CustomizeSettings adds a settings mutation, applied in order at build time.
func (b *TrackerBuilder) CustomizeSettings(fn func(*Settings)) *TrackerBuilder {
	b.customizers.AddMutation(fn)
	return b
}

// AddCheck registers a check on the tracker once it is built.
func (b *TrackerBuilder) AddCheck(name string, check Check) *TrackerBuilder {
	b.checks = append(b.checks, namedCheck{name: name, check: check})
	return b
}

// Build creates the tracker, registers a check that reports the configured
// degradation status, and publishes the tracker as an extension.
func (b *TrackerBuilder) Build(bctx *hosting.BuildContext) (*Tracker, bool, error) {
	settings := DefaultSettings()
	if _, err := b.customizers.Customize(&settings); err != nil {
		return nil, false, errors.InvalidInput("health settings", err.Error()).WithCause(err)
	}

	tracker, err := NewTracker(settings,
		WithLogger(bctx.Logger),
		WithMeter(bctx.Meter),
		WithTracer(bctx.Tracer),
	)
	if err != nil {
		return nil, false, err
	}

	cfg := bctx.Config
	tracker.RegisterCheckFunc(DegradationCheckName, func(context.Context) (Result, error) {
		return ConfiguredStatus(cfg.DegradationStatus()), nil
	})
	for _, nc := range b.checks {
		tracker.RegisterCheck(nc.name, nc.check)
	}

	extension.Add(bctx.Extensions, tracker)
	bctx.AddDisposable(ComponentName, tracker)
	return tracker, true, nil
}

// ConfiguredStatus maps an externally supplied status string to a result.
// Unknown values are failing.
func ConfiguredStatus(value string) Result {
	status, err := ParseStatus(value)
	if err != nil {
		return Failing(err.Error())
	}
	if status == StatusHealthy {
		return Healthy()
	}
	return Result{Status: status, Reason: "configured status is " + status.String()}
}
