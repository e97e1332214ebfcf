package health

import "context"

// Check probes one component. A returned error is reported as a failing
// result carrying the error message. Implementations must honor ctx.
type Check interface {
	Check(ctx context.Context) (Result, error)
}

// CheckFunc adapts a function to Check.
type CheckFunc func(ctx context.Context) (Result, error)

// Check calls f(ctx).
func (f CheckFunc) Check(ctx context.Context) (Result, error) { return f(ctx) }

// Static returns a check that always reports r.
func Static(r Result) Check {
	return CheckFunc(func(context.Context) (Result, error) { return r, nil })
}
