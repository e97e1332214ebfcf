package hosting

import (
	"sync"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/kbukum/hostkit/clusterconfig"
	"github.com/kbukum/hostkit/component"
	"github.com/kbukum/hostkit/config"
	"github.com/kbukum/hostkit/discovery"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/identity"
	"github.com/kbukum/hostkit/logger"
)

// Limits are the resource limits of the process. Zero means unknown.
type Limits struct {
	CPUUnits    float64 `json:"cpu_units"`
	MemoryBytes int64   `json:"memory_bytes"`
}

// Disablement records why an optional component was not built.
type Disablement struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
}

// Failure records a builder that returned an error or panicked.
type Failure struct {
	Component string `json:"component"`
	Err       error  `json:"-"`
}

// Error returns the failure message.
func (f Failure) Error() string {
	return f.Component + ": " + f.Err.Error()
}

// BuildContext is the shared assembly-time context. The optional client
// fields are either fully usable or nil.
type BuildContext struct {
	Logger *logger.Logger
	Meter  metric.Meter
	Tracer trace.Tracer
	Limits Limits
	Config *config.Provider

	ClusterConfig    clusterconfig.Client
	ServiceLocator   discovery.Locator
	ServiceRegistrar discovery.Registrar

	// Identity is set once the identity step has run.
	Identity *identity.Identity

	Extensions *extension.Registry

	once         sync.Once
	disposables  *component.Disposables
	disablements []Disablement
	failures     []Failure
	succeeded    []string
	built        map[string]bool
	builds       metric.Int64Counter
}

// NewBuildContext creates a context with no-op telemetry, an empty
// configuration and an empty registry.
func NewBuildContext(log *logger.Logger) *BuildContext {
	bctx := &BuildContext{Logger: log}
	bctx.init()
	return bctx
}

// init fills unset fields so that a literal BuildContext{} is usable.
func (b *BuildContext) init() {
	b.once.Do(func() {
		b.Logger = logger.OrGlobal(b.Logger)
		if b.Meter == nil {
			b.Meter = metricnoop.NewMeterProvider().Meter("hosting")
		}
		if b.Tracer == nil {
			b.Tracer = tracenoop.NewTracerProvider().Tracer("hosting")
		}
		if b.Config == nil {
			b.Config = config.NewProvider(nil)
		}
		if b.Extensions == nil {
			b.Extensions = extension.New()
		}
		b.disposables = component.NewDisposables(b.Logger)
		b.built = make(map[string]bool)

		counter, err := b.Meter.Int64Counter("hosting.builds",
			metric.WithDescription("Builder outcomes by component"),
		)
		if err != nil {
			counter, _ = metricnoop.NewMeterProvider().Meter("hosting").Int64Counter("hosting.builds")
		}
		b.builds = counter
	})
}

// Log returns the context logger tagged with a component name.
func (b *BuildContext) Log(componentName string) *logger.Logger {
	b.init()
	return b.Logger.WithComponent(componentName)
}

// AddDisposable registers an artifact to release at shutdown.
func (b *BuildContext) AddDisposable(name string, d component.Disposable) {
	b.init()
	b.disposables.Add(name, d)
}

// Disposables returns the shutdown list.
func (b *BuildContext) Disposables() *component.Disposables {
	b.init()
	return b.disposables
}

// Disable records that componentName was not built and why.
func (b *BuildContext) Disable(componentName, reason string) {
	b.init()
	b.disablements = append(b.disablements, Disablement{Component: componentName, Reason: reason})
	b.Log(componentName).Info("Component disabled", logger.Fields(logger.FieldReason, reason))
}

// Disablements returns the recorded disablements in order.
func (b *BuildContext) Disablements() []Disablement {
	return append([]Disablement(nil), b.disablements...)
}

// Failures returns the recorded builder failures in order.
func (b *BuildContext) Failures() []Failure {
	return append([]Failure(nil), b.failures...)
}

// Built returns the names of successfully built components in build order.
func (b *BuildContext) Built() []string {
	return append([]string(nil), b.succeeded...)
}

// IsDisabled reports whether componentName recorded a disablement.
func (b *BuildContext) IsDisabled(componentName string) bool {
	for _, d := range b.disablements {
		if d.Component == componentName {
			return true
		}
	}
	return false
}

func (b *BuildContext) fail(componentName string, err error) {
	b.failures = append(b.failures, Failure{Component: componentName, Err: err})
	b.Log(componentName).Error("Component build failed", logger.ErrorFields(componentName, err))
}
