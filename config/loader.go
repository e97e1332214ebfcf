package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file operations used while resolving configuration.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver finds the config and env files for a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths when provided, otherwise searches for them.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.firstExisting(configCandidates(serviceName))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.firstExisting(envCandidates(serviceName))
	}
	return resolved
}

func (r *Resolver) firstExisting(paths []string) string {
	for _, path := range paths {
		if r.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// configCandidates lists config.yml locations, most specific first.
// The service directory is tried under both the full name and its last
// dash-separated part (billing-api -> api).
func configCandidates(serviceName string) []string {
	var paths []string
	for _, dir := range serviceDirs(serviceName) {
		paths = append(paths, dir+"/config.yml")
	}
	return append(paths, "./config/config.yml", "../config/config.yml", "./config.yml")
}

// envCandidates lists .env locations; a service-specific .env.<name> beats .env.
func envCandidates(serviceName string) []string {
	dirs := append(serviceDirs(serviceName), "./config", "../config", ".", "..")
	var paths []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range dirs {
			paths = append(paths, dir+"/"+name)
		}
	}
	return paths
}

func serviceDirs(serviceName string) []string {
	names := []string{serviceName}
	if idx := strings.LastIndex(serviceName, "-"); idx != -1 && idx < len(serviceName)-1 {
		names = append(names, serviceName[idx+1:])
	}
	var dirs []string
	for _, up := range []string{".", "..", "../.."} {
		for _, n := range names {
			dirs = append(dirs, fmt.Sprintf("%s/cmd/%s", up, n))
		}
	}
	return dirs
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadConfig loads configuration for a service into cfg.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	_, err := Load(serviceName, cfg, opts...)
	return err
}

// Load merges the resolved config file, the environment and the .env file,
// unmarshals the result into cfg (when non-nil) and returns a Provider over
// the merged settings. Unreadable files are not fatal; they are reported
// through Provider.Warnings once a logger exists.
func Load(serviceName string, cfg interface{}, opts ...LoaderOption) (*Provider, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	v := viper.New()
	var warnings []string

	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to load config file %s: %v", files.ConfigFile, err))
		}
	}

	v.AutomaticEnv()
	bindEnvironment(v)

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to load env file %s: %v", files.EnvFile, err))
		} else {
			// Pick up the variables the .env file just exported.
			bindEnvironment(v)
		}
	}

	if cfg != nil {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
		}
	}

	p := NewProvider(v)
	p.files = files
	p.warnings = warnings
	return p, nil
}

// bindEnvironment sets every environment variable under each of its nested
// key variants so that UPPER_SNAKE names reach dotted keys.
func bindEnvironment(v *viper.Viper) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants splits an environment key at every underscore boundary:
//
//	HEALTH_CHECK_TIMEOUT -> health_check_timeout, health.check.timeout,
//	                        health.check_timeout, health_check.timeout
func envKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")
	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{lowerKey, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
		variants = append(variants, strings.Join(parts[:i], "_")+"."+strings.Join(parts[i:], "."))
	}
	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
