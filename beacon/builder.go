package beacon

import (
	"maps"

	"github.com/google/uuid"

	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/customization"
	"github.com/kbukum/hostkit/discovery"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/resilience"
	"github.com/kbukum/hostkit/validation"
)

// ComponentName is the name the beacon is built and disposed under.
const ComponentName = "beacon"

// Disablement reasons.
const (
	ReasonNotEnabled  = "beacon is not enabled"
	ReasonNoRegistrar = "service registrar is not configured"
	ReasonNoIdentity  = "identity is not available"
)

// Builder configures the service registration.
type Builder struct {
	state       component.State
	address     string
	port        int
	tags        []string
	metadata    map[string]string
	checkURL    string
	customizers customization.Pipeline[*discovery.Registration]
	retry       resilience.Policy
	newID       func() string
}

// NewBuilder creates a builder that is off until a port or address is set.
func NewBuilder() *Builder {
	return &Builder{newID: uuid.NewString, retry: resilience.DefaultPolicy()}
}

// Enable forces the beacon on.
func (b *Builder) Enable() *Builder {
	b.state.Enable()
	return b
}

// Disable forces the beacon off.
func (b *Builder) Disable() *Builder {
	b.state.Disable()
	return b
}

// SetPort sets the announced port and enables the beacon unless it was
// explicitly disabled.
func (b *Builder) SetPort(port int) *Builder {
	b.port = port
	b.state.AutoEnable()
	return b
}

// SetAddress sets the announced address. An empty address lets the registrar
// pick the agent address.
func (b *Builder) SetAddress(address string) *Builder {
	b.address = address
	b.state.AutoEnable()
	return b
}

// AddTags appends registration tags.
func (b *Builder) AddTags(tags ...string) *Builder {
	b.tags = append(b.tags, tags...)
	return b
}

// SetMetadata adds a metadata entry.
func (b *Builder) SetMetadata(key, value string) *Builder {
	if b.metadata == nil {
		b.metadata = make(map[string]string)
	}
	b.metadata[key] = value
	return b
}

// SetCheckURL sets an HTTP endpoint the registrar polls for liveness.
func (b *Builder) SetCheckURL(url string) *Builder {
	b.checkURL = url
	return b
}

// SetRetry sets how registration is retried when Start fails.
func (b *Builder) SetRetry(policy resilience.Policy) *Builder {
	b.retry = policy
	return b
}

// CustomizeRegistration adds a mutation applied to the derived registration.
func (b *Builder) CustomizeRegistration(fn func(*discovery.Registration)) *Builder {
	b.customizers.AddMutation(fn)
	return b
}

// Build derives the registration from the identity and creates the beacon.
// The beacon is not started.
func (b *Builder) Build(bctx *hosting.BuildContext) (*Beacon, bool, error) {
	switch {
	case !b.state.IsEnabled():
		bctx.Disable(ComponentName, ReasonNotEnabled)
		return nil, false, nil
	case bctx.ServiceRegistrar == nil:
		bctx.Disable(ComponentName, ReasonNoRegistrar)
		return nil, false, nil
	case bctx.Identity == nil:
		bctx.Disable(ComponentName, ReasonNoIdentity)
		return nil, false, nil
	}

	id := bctx.Identity
	instance := id.Instance
	if instance == "" {
		instance = b.newID()
	}
	metadata := maps.Clone(b.metadata)
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata["project"] = id.Project
	metadata["environment"] = id.Environment
	metadata["instance"] = instance

	reg := &discovery.Registration{
		ID:       id.ServiceName() + "-" + instance,
		Name:     id.ServiceName(),
		Address:  b.address,
		Port:     b.port,
		Tags:     append([]string{id.Environment}, b.tags...),
		Metadata: metadata,
		CheckURL: b.checkURL,
	}
	reg, err := b.customizers.Customize(reg)
	if err != nil {
		return nil, false, errors.InvalidInput("registration", err.Error()).WithCause(err)
	}
	if err := validation.New().
		Required("id", reg.ID).
		Required("name", reg.Name).
		MinInt("port", reg.Port, 1).
		Custom(reg.Port <= 65535, "port", "must be at most 65535").
		Err(); err != nil {
		return nil, false, err
	}

	beacon := New(bctx.ServiceRegistrar, *reg, bctx.Log(ComponentName))
	beacon.retry = b.retry
	if tracker, ok := extension.TryGet[*health.Tracker](bctx.Extensions); ok {
		tracker.RegisterCheck(CheckName, beacon)
	}
	extension.Add(bctx.Extensions, beacon)
	bctx.AddDisposable(ComponentName, beacon)
	return beacon, true, nil
}
