package bootstrap

import (
	"github.com/kbukum/hostkit/config"
)

// Config is the interface constraint for host configuration types.
// Any struct that embeds config.HostConfig (value embedding) automatically
// satisfies this interface via promoted methods.
//
// Example:
//
//	type MyConfig struct {
//	    config.HostConfig `yaml:",inline" mapstructure:",squash"`
//	    Payments PaymentsConfig `yaml:"payments" mapstructure:"payments"`
//	}
//
//	host, err := bootstrap.NewHost[*MyConfig](&cfg)
type Config interface {
	GetHostConfig() *config.HostConfig
	ApplyDefaults()
	Validate() error
}
