package diagnostics

import (
	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/customization"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/validation"
)

// ComponentName is the name the server is built and disposed under.
const ComponentName = "diagnostics"

// Disablement reasons.
const (
	ReasonNotEnabled = "diagnostics endpoint is not enabled"
	ReasonNoTracker  = "health tracker is not available"
)

// Builder configures the diagnostics server.
type Builder struct {
	state       component.State
	customizers customization.Pipeline[*Config]
}

// NewBuilder creates a builder that is off until a port is set.
func NewBuilder() *Builder {
	return &Builder{}
}

// Enable forces the server on.
func (b *Builder) Enable() *Builder {
	b.state.Enable()
	return b
}

// Disable forces the server off.
func (b *Builder) Disable() *Builder {
	b.state.Disable()
	return b
}

// SetPort sets the listen port and enables the server unless it was
// explicitly disabled.
func (b *Builder) SetPort(port int) *Builder {
	b.customizers.AddMutation(func(c *Config) { c.Port = port })
	b.state.AutoEnable()
	return b
}

// SetHost sets the listen host.
func (b *Builder) SetHost(host string) *Builder {
	b.customizers.AddMutation(func(c *Config) { c.Host = host })
	return b
}

// CustomizeConfig adds a mutation of the listener settings.
func (b *Builder) CustomizeConfig(fn func(*Config)) *Builder {
	b.customizers.AddMutation(fn)
	return b
}

// Build creates the server and its routes without starting it. It needs the
// health tracker to have been published.
func (b *Builder) Build(bctx *hosting.BuildContext) (*Server, bool, error) {
	if !b.state.IsEnabled() {
		bctx.Disable(ComponentName, ReasonNotEnabled)
		return nil, false, nil
	}
	tracker, ok := extension.TryGet[*health.Tracker](bctx.Extensions)
	if !ok {
		bctx.Disable(ComponentName, ReasonNoTracker)
		return nil, false, nil
	}

	cfg := DefaultConfig()
	if _, err := b.customizers.Customize(&cfg); err != nil {
		return nil, false, errors.InvalidInput("diagnostics config", err.Error()).WithCause(err)
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, false, err
	}

	server := NewServer(cfg, bctx.Log(ComponentName))
	server.RegisterRoutes(Sources{
		Tracker:    tracker,
		Extensions: bctx.Extensions,
		Identity:   bctx.Identity,
		Components: func() Components { return ComponentsOf(bctx) },
	})
	extension.Add(bctx.Extensions, server)
	bctx.AddDisposable(ComponentName, server)
	return server, true, nil
}
