// Package identity names a hosted application instance.
//
// An Identity is the path project/subproject/environment/application/instance.
// It keys cluster configuration lookups and service registrations, so every
// element must be a single key segment.
package identity

import (
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/hostkit/customization"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/validation"
)

// Identity names one application instance.
type Identity struct {
	Project     string `json:"project"`
	Subproject  string `json:"subproject,omitempty"`
	Environment string `json:"environment"`
	Application string `json:"application"`
	Instance    string `json:"instance"`
}

// String returns the slash-joined path, omitting an empty subproject.
func (id Identity) String() string {
	parts := []string{id.Project}
	if id.Subproject != "" {
		parts = append(parts, id.Subproject)
	}
	parts = append(parts, id.Environment, id.Application, id.Instance)
	return strings.Join(parts, "/")
}

// ServiceName is the name under which the application is registered and
// located: project-application, or project-subproject-application.
func (id Identity) ServiceName() string {
	parts := []string{id.Project}
	if id.Subproject != "" {
		parts = append(parts, id.Subproject)
	}
	return strings.Join(append(parts, id.Application), "-")
}

// Validate checks that the required elements are present and well formed.
func (id Identity) Validate() error {
	v := validation.New().
		Required("project", id.Project).
		Required("environment", id.Environment).
		Required("application", id.Application).
		Required("instance", id.Instance).
		Segment("project", id.Project).
		Segment("subproject", id.Subproject).
		Segment("environment", id.Environment).
		Segment("application", id.Application).
		Segment("instance", id.Instance)
	return v.Err()
}

// DefaultInstance returns the hostname, or a random UUID when the hostname is
// unavailable or not a valid segment.
func DefaultInstance() string {
	if host, err := os.Hostname(); err == nil && validation.IsSegment(host) {
		return host
	}
	return uuid.NewString()
}

// Builder accumulates identity settings. Setters return the builder.
type Builder struct {
	id          Identity
	customizers customization.Pipeline[*Identity]
	instanceFn  func() string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{instanceFn: DefaultInstance}
}

// SetProject sets the project the application belongs to.
func (b *Builder) SetProject(project string) *Builder {
	b.id.Project = project
	return b
}

// SetSubproject sets the optional grouping inside the project.
func (b *Builder) SetSubproject(subproject string) *Builder {
	b.id.Subproject = subproject
	return b
}

// SetEnvironment sets the deployment environment, such as prod.
func (b *Builder) SetEnvironment(environment string) *Builder {
	b.id.Environment = environment
	return b
}

// SetApplication sets the application name.
func (b *Builder) SetApplication(application string) *Builder {
	b.id.Application = application
	return b
}

// SetInstance overrides the default instance name.
func (b *Builder) SetInstance(instance string) *Builder {
	b.id.Instance = instance
	return b
}

// CustomizeIdentity adds a mutation applied after the setters, in order.
func (b *Builder) CustomizeIdentity(fn func(*Identity)) *Builder {
	b.customizers.AddMutation(fn)
	return b
}

// Build produces the identity. Missing or malformed elements yield an
// INVALID_INPUT AppError listing every problem.
func (b *Builder) Build() (*Identity, error) {
	id := b.id
	if id.Instance == "" && b.instanceFn != nil {
		id.Instance = b.instanceFn()
	}
	out, err := b.customizers.Customize(&id)
	if err != nil {
		return nil, errors.InvalidInput("identity", err.Error()).WithCause(err)
	}
	if out == nil {
		return nil, errors.InvalidInput("identity", "customization returned no identity")
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
