package procs

import (
	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/customization"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/hosting"
)

// ComponentName is the name the tracker is built and disposed under.
const ComponentName = "procs"

// Disablement reasons.
const (
	ReasonNotEnabled = "procs tracker is not enabled"
	ReasonNoLimit    = "cpu limit is unknown"
)

// TrackerBuilder builds the GOMAXPROCS tracker. It is off by default.
type TrackerBuilder struct {
	state       component.State
	customizers customization.Pipeline[*Settings]
	limit       LimitFunc
}

// NewTrackerBuilder creates a disabled builder.
func NewTrackerBuilder() *TrackerBuilder {
	return &TrackerBuilder{}
}

// Enable forces the tracker on.
func (b *TrackerBuilder) Enable() *TrackerBuilder {
	b.state.Enable()
	return b
}

// Disable forces the tracker off.
func (b *TrackerBuilder) Disable() *TrackerBuilder {
	b.state.Disable()
	return b
}

// CustomizeSettings adds a settings mutation and enables the tracker unless
// it was explicitly disabled.
func (b *TrackerBuilder) CustomizeSettings(fn func(*Settings)) *TrackerBuilder {
	b.customizers.AddMutation(fn)
	b.state.AutoEnable()
	return b
}

// SetLimitFunc overrides where the CPU limit is read from on each tick. By
// default the limit captured in the build context is used.
func (b *TrackerBuilder) SetLimitFunc(fn LimitFunc) *TrackerBuilder {
	b.limit = fn
	return b
}

// Build creates the tracker without starting it.
func (b *TrackerBuilder) Build(bctx *hosting.BuildContext) (*Tracker, bool, error) {
	if !b.state.IsEnabled() {
		bctx.Disable(ComponentName, ReasonNotEnabled)
		return nil, false, nil
	}
	limit := b.limit
	if limit == nil {
		if bctx.Limits.CPUUnits <= 0 {
			bctx.Disable(ComponentName, ReasonNoLimit)
			return nil, false, nil
		}
		cpu := bctx.Limits.CPUUnits
		limit = func() float64 { return cpu }
	}

	settings := DefaultSettings()
	if _, err := b.customizers.Customize(&settings); err != nil {
		return nil, false, errors.InvalidInput("procs settings", err.Error()).WithCause(err)
	}
	tracker, err := NewTracker(settings, limit, bctx.Log(ComponentName), bctx.Meter)
	if err != nil {
		return nil, false, err
	}
	extension.Add(bctx.Extensions, tracker)
	bctx.AddDisposable(ComponentName, component.FromStopper(tracker))
	return tracker, true, nil
}
