package hosting

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/logger"
)

// Builder produces an optional component from a BuildContext. It returns
// ok == false with a nil error when the component is absent, after recording
// the reason with bctx.Disable. All configuration must be supplied before
// Build runs.
type Builder[T any] interface {
	Build(bctx *BuildContext) (T, bool, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc[T any] func(bctx *BuildContext) (T, bool, error)

// Build calls f(bctx).
func (f BuilderFunc[T]) Build(bctx *BuildContext) (T, bool, error) { return f(bctx) }

// Build outcomes recorded on the hosting.builds counter.
const (
	OutcomeBuilt    = "built"
	OutcomeDisabled = "disabled"
	OutcomeFailed   = "failed"
)

// Build runs one builder in isolation. Errors and panics are recorded as a
// Failure, an absent result as a Disablement; in both cases the zero value
// and false are returned and the context stays usable. A name may be built
// only once per context.
func Build[T any](bctx *BuildContext, name string, b Builder[T]) (result T, ok bool) {
	bctx.init()
	var zero T
	start := time.Now()

	if bctx.built[name] {
		bctx.fail(name, errors.InvalidState("build "+name, "built"))
		bctx.record(name, OutcomeFailed)
		return zero, false
	}
	bctx.built[name] = true

	defer func() {
		if r := recover(); r != nil {
			bctx.fail(name, errors.Internal(fmt.Errorf("builder panicked: %v", r)))
			bctx.record(name, OutcomeFailed)
			result, ok = zero, false
		}
	}()

	v, built, err := b.Build(bctx)
	switch {
	case err != nil:
		bctx.fail(name, err)
		bctx.record(name, OutcomeFailed)
		return zero, false
	case !built:
		if !bctx.IsDisabled(name) {
			bctx.Disable(name, "builder produced no component")
		}
		bctx.record(name, OutcomeDisabled)
		return zero, false
	}

	bctx.Log(name).Info("Component built", logger.DurationFields(name, time.Since(start)))
	bctx.succeeded = append(bctx.succeeded, name)
	bctx.record(name, OutcomeBuilt)
	return v, true
}

func (b *BuildContext) record(name, outcome string) {
	b.builds.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("component", name),
		attribute.String("outcome", outcome),
	))
}
