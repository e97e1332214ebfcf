package config

import (
	"fmt"

	"github.com/kbukum/hostkit/logger"
)

// Environments accepted by ServiceConfig.Validate.
var validEnvironments = []string{"development", "staging", "production"}

// ServiceConfig contains the fields every hosted application needs.
// HostConfig embeds it; applications may embed HostConfig in turn:
//
//	type Config struct {
//	    config.HostConfig `yaml:",inline" mapstructure:",squash"`
//	    Payments PaymentsConfig `yaml:"payments" mapstructure:"payments"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the base ServiceConfig. It is promoted through embedding.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	// Propagate service name into logging so the logger is tagged with it.
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	found := false
	for _, v := range validEnvironments {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvironments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
