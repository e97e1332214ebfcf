package discovery

import (
	"context"
	"errors"
	"time"
)

// Common discovery errors.
var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrNoHealthyEndpoints = errors.New("no healthy endpoints found")
)

// Endpoint is one located instance of a service.
type Endpoint struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Protocol string
	Tags     []string
	Metadata map[string]string
	Health   HealthStatus
	Weight   int
	LastSeen time.Time
}

// HealthStatus represents endpoint health as reported by the backend.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Registration describes this process as announced to a Registrar.
type Registration struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Tags     []string
	Metadata map[string]string
	// CheckURL, when set, is polled by the backend to decide liveness.
	CheckURL      string
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	// DeregisterAfter removes the registration after being critical this long.
	DeregisterAfter time.Duration
}

// Locator resolves service names to endpoints.
type Locator interface {
	Locate(ctx context.Context, service string) ([]Endpoint, error)
}

// Registrar registers and deregisters this process.
type Registrar interface {
	Register(ctx context.Context, reg *Registration) error
	Deregister(ctx context.Context, id string) error
}
