package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DegradationStatusKey is the key read by DegradationStatus.
const DegradationStatusKey = "health.status"

// DefaultDegradationStatus is reported when DegradationStatusKey is unset.
const DefaultDegradationStatus = "healthy"

// Provider is a read-only view over merged configuration. A nil Provider
// behaves as an empty one.
type Provider struct {
	v        *viper.Viper
	files    ResolvedFiles
	warnings []string
}

// NewProvider wraps an existing viper instance.
func NewProvider(v *viper.Viper) *Provider {
	if v == nil {
		v = viper.New()
	}
	return &Provider{v: v}
}

// NewProviderFromMap builds a Provider over in-memory values, keyed with dots
// for nesting ("health.status").
func NewProviderFromMap(values map[string]any) *Provider {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return NewProvider(v)
}

func (p *Provider) viper() *viper.Viper {
	if p == nil || p.v == nil {
		return nil
	}
	return p.v
}

// String returns the value at key as a string.
func (p *Provider) String(key string) string {
	if v := p.viper(); v != nil {
		return v.GetString(key)
	}
	return ""
}

// Duration returns the value at key as a duration ("5s", "1m").
func (p *Provider) Duration(key string) time.Duration {
	if v := p.viper(); v != nil {
		return v.GetDuration(key)
	}
	return 0
}

// Int returns the value at key as an int.
func (p *Provider) Int(key string) int {
	if v := p.viper(); v != nil {
		return v.GetInt(key)
	}
	return 0
}

// Bool returns the value at key as a bool.
func (p *Provider) Bool(key string) bool {
	if v := p.viper(); v != nil {
		return v.GetBool(key)
	}
	return false
}

// IsSet reports whether key has a value.
func (p *Provider) IsSet(key string) bool {
	if v := p.viper(); v != nil {
		return v.IsSet(key)
	}
	return false
}

// Sub returns a Provider rooted at prefix. A missing prefix yields an empty
// Provider, never nil.
func (p *Provider) Sub(prefix string) *Provider {
	if v := p.viper(); v != nil {
		if sub := v.Sub(prefix); sub != nil {
			return NewProvider(sub)
		}
	}
	return NewProvider(nil)
}

// Unmarshal decodes the subtree at key into out. An empty key decodes everything.
func (p *Provider) Unmarshal(key string, out any) error {
	v := p.viper()
	if v == nil {
		return nil
	}
	if key == "" {
		return v.Unmarshal(out)
	}
	return v.UnmarshalKey(key, out)
}

// DegradationStatus returns the externally supplied health/degradation status,
// lower-cased, defaulting to "healthy".
func (p *Provider) DegradationStatus() string {
	s := strings.ToLower(strings.TrimSpace(p.String(DegradationStatusKey)))
	if s == "" {
		return DefaultDegradationStatus
	}
	return s
}

// Files returns the config and env files that were read.
func (p *Provider) Files() ResolvedFiles {
	if p == nil {
		return ResolvedFiles{}
	}
	return p.files
}

// Warnings returns non-fatal problems encountered while loading.
func (p *Provider) Warnings() []string {
	if p == nil {
		return nil
	}
	return p.warnings
}
