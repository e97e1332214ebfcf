// Package config loads host configuration and exposes it to builders.
//
// Files and environment variables are merged with Viper: a config.yml found in
// the standard search paths is read first, then every environment variable is
// bound under its nested key variants (HEALTH_CHECK_TIMEOUT is visible as
// health.check_timeout), then an optional .env file is applied.
//
// # Usage
//
//	var cfg config.HostConfig
//	provider, err := config.Load("billing-api", &cfg)
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
//
// The returned Provider is handed to builders for free-form lookups such as
// the degradation status (health.status).
package config
