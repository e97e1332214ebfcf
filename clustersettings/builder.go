package clustersettings

import (
	"context"
	"path"
	"time"

	"github.com/kbukum/hostkit/clusterconfig"
	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/customization"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/identity"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/validation"
)

// ComponentName is the name the settings are built under.
const ComponentName = "cluster-settings"

const (
	// DefaultPrefix is the key prefix when none is set.
	DefaultPrefix = "config"
	// DefaultTimeout bounds the fetch at build time.
	DefaultTimeout = 10 * time.Second
	// SharedLevel names the project-wide defaults level.
	SharedLevel = "default"
)

// Disablement reasons.
const (
	ReasonNotEnabled = "cluster settings are not enabled"
	ReasonNoClient   = "cluster config client is not configured"
	ReasonNoIdentity = "identity is not available"
)

// SettingsBuilder fetches a clusterconfig.Settings snapshot.
type SettingsBuilder struct {
	state   component.State
	prefix  string
	timeout time.Duration
	levels  customization.Pipeline[[]string]
}

// NewSettingsBuilder creates a builder that is off until enabled or
// configured.
func NewSettingsBuilder() *SettingsBuilder {
	return &SettingsBuilder{prefix: DefaultPrefix, timeout: DefaultTimeout}
}

// Enable forces the builder on.
func (b *SettingsBuilder) Enable() *SettingsBuilder {
	b.state.Enable()
	return b
}

// Disable forces the builder off.
func (b *SettingsBuilder) Disable() *SettingsBuilder {
	b.state.Disable()
	return b
}

// SetPrefix sets the root key prefix and enables the builder unless it was
// explicitly disabled.
func (b *SettingsBuilder) SetPrefix(prefix string) *SettingsBuilder {
	b.prefix = prefix
	b.state.AutoEnable()
	return b
}

// SetTimeout bounds the fetch.
func (b *SettingsBuilder) SetTimeout(timeout time.Duration) *SettingsBuilder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// CustomizeLevels replaces the level list, lowest precedence first. The
// transform receives the identity-derived defaults.
func (b *SettingsBuilder) CustomizeLevels(fn func(levels []string) []string) *SettingsBuilder {
	b.levels.AddReplacement(fn)
	b.state.AutoEnable()
	return b
}

// State returns the enablement state.
func (b *SettingsBuilder) State() component.State { return b.state }

// Levels returns the key prefixes for id, lowest precedence first.
func Levels(prefix string, id identity.Identity) []string {
	project := path.Join(prefix, id.Project, id.Subproject)
	return []string{
		path.Join(project, SharedLevel),
		path.Join(project, id.Environment, id.Application),
	}
}

// Build fetches the snapshot and publishes it as an extension.
func (b *SettingsBuilder) Build(bctx *hosting.BuildContext) (*clusterconfig.Settings, bool, error) {
	switch {
	case !b.state.IsEnabled():
		bctx.Disable(ComponentName, ReasonNotEnabled)
		return nil, false, nil
	case bctx.ClusterConfig == nil:
		bctx.Disable(ComponentName, ReasonNoClient)
		return nil, false, nil
	case bctx.Identity == nil:
		bctx.Disable(ComponentName, ReasonNoIdentity)
		return nil, false, nil
	}
	if err := validation.New().Required("prefix", b.prefix).Err(); err != nil {
		return nil, false, err
	}

	levels, err := b.levels.Customize(Levels(b.prefix, *bctx.Identity))
	if err != nil {
		return nil, false, errors.InvalidInput("levels", err.Error()).WithCause(err)
	}
	if len(levels) == 0 {
		return nil, false, errors.InvalidInput("levels", "at least one level is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	start := time.Now()
	settings, err := clusterconfig.Fetch(ctx, bctx.ClusterConfig, levels...)
	if err != nil {
		return nil, false, errors.ConnectionFailed("cluster config", err)
	}

	bctx.Log(ComponentName).Info("Cluster settings loaded", logger.Fields(
		"keys", settings.Len(),
		"levels", levels,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	extension.Add(bctx.Extensions, settings)
	return settings, true, nil
}
