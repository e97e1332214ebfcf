package config

import (
	"fmt"
	"time"

	"github.com/kbukum/hostkit/validation"
)

// HostConfig is the configuration for one hosted application.
type HostConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Identity      IdentityConfig      `yaml:"identity" mapstructure:"identity"`
	Health        HealthConfig        `yaml:"health" mapstructure:"health"`
	Procs         ProcsConfig         `yaml:"procs" mapstructure:"procs"`
	Consul        ConsulConfig        `yaml:"consul" mapstructure:"consul"`
	ClusterConfig ClusterConfigConfig `yaml:"cluster_config" mapstructure:"cluster_config"`
	Beacon        BeaconConfig        `yaml:"beacon" mapstructure:"beacon"`
	Diagnostics   DiagnosticsConfig   `yaml:"diagnostics" mapstructure:"diagnostics"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" mapstructure:"telemetry"`
	Limits        LimitsConfig        `yaml:"limits" mapstructure:"limits"`
}

// GetHostConfig returns the host configuration. It is promoted through embedding.
func (c *HostConfig) GetHostConfig() *HostConfig {
	return c
}

// IdentityConfig names the application. Environment comes from ServiceConfig
// and Application defaults to the service name.
type IdentityConfig struct {
	Project     string `yaml:"project" mapstructure:"project" validate:"segment"`
	Subproject  string `yaml:"subproject" mapstructure:"subproject" validate:"segment"`
	Application string `yaml:"application" mapstructure:"application" validate:"segment"`
	Instance    string `yaml:"instance" mapstructure:"instance"`
}

// HealthConfig configures the health tracker.
type HealthConfig struct {
	Interval     time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	CheckTimeout time.Duration `yaml:"check_timeout" mapstructure:"check_timeout" validate:"gte=0"`
	// Status is read through Provider.DegradationStatus.
	Status string `yaml:"status" mapstructure:"status" validate:"omitempty,oneof=healthy degraded failing"`
}

// ProcsConfig configures the GOMAXPROCS tracker.
type ProcsConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier" validate:"gte=0"`
	Minimum    int           `yaml:"minimum" mapstructure:"minimum" validate:"gte=0"`
}

// ConsulConfig configures the Consul agent connection. An empty Address
// leaves every Consul-backed client absent.
type ConsulConfig struct {
	Address    string `yaml:"address" mapstructure:"address" validate:"omitempty,hostname_port"`
	Scheme     string `yaml:"scheme" mapstructure:"scheme" validate:"omitempty,oneof=http https"`
	Datacenter string `yaml:"datacenter" mapstructure:"datacenter"`
	Token      string `yaml:"token" mapstructure:"token"`
}

// Enabled reports whether a Consul agent is configured.
func (c ConsulConfig) Enabled() bool { return c.Address != "" }

// ClusterConfigConfig configures the cluster settings snapshot.
type ClusterConfigConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Prefix  string `yaml:"prefix" mapstructure:"prefix" validate:"omitempty,segment"`
}

// BeaconConfig configures service registration.
type BeaconConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Address string   `yaml:"address" mapstructure:"address"`
	Port    int      `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Tags    []string `yaml:"tags" mapstructure:"tags"`
}

// DiagnosticsConfig configures the diagnostics HTTP endpoint. Port 0 disables it.
type DiagnosticsConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
}

// TelemetryConfig configures OTLP export. When disabled, no-op providers are used.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// LimitsConfig carries process resource limits. Zero means unknown.
type LimitsConfig struct {
	CPU    float64 `yaml:"cpu" mapstructure:"cpu" validate:"gte=0"`
	Memory int64   `yaml:"memory" mapstructure:"memory" validate:"gte=0"`
}

// ApplyDefaults fills unset values.
func (c *HostConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()

	if c.Identity.Application == "" {
		c.Identity.Application = c.Name
	}
	if c.Health.Interval == 0 {
		c.Health.Interval = 10 * time.Second
	}
	if c.Health.CheckTimeout == 0 {
		c.Health.CheckTimeout = 5 * time.Second
	}
	if c.Procs.Interval == 0 {
		c.Procs.Interval = 30 * time.Second
	}
	if c.Procs.Multiplier == 0 {
		c.Procs.Multiplier = 1
	}
	if c.Procs.Minimum == 0 {
		c.Procs.Minimum = 1
	}
	if c.Consul.Scheme == "" {
		c.Consul.Scheme = "http"
	}
	if c.ClusterConfig.Prefix == "" {
		c.ClusterConfig.Prefix = "config"
	}
	if c.Diagnostics.Host == "" {
		c.Diagnostics.Host = "0.0.0.0"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
}

// Validate validates the whole configuration.
func (c *HostConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		name  string
		value any
	}{
		{"identity", c.Identity},
		{"health", c.Health},
		{"procs", c.Procs},
		{"consul", c.Consul},
		{"cluster_config", c.ClusterConfig},
		{"beacon", c.Beacon},
		{"diagnostics", c.Diagnostics},
		{"telemetry", c.Telemetry},
		{"limits", c.Limits},
	}
	for _, s := range sections {
		if err := validation.Validate(s.value); err != nil {
			return fmt.Errorf("config.%s: %w", s.name, err)
		}
	}
	if c.Health.CheckTimeout > c.Health.Interval {
		return fmt.Errorf("config.health: check_timeout (%s) must not exceed interval (%s)",
			c.Health.CheckTimeout, c.Health.Interval)
	}
	return nil
}
