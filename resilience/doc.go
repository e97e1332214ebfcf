// Package resilience retries operations against external collaborators
// (service registrars, configuration stores) with exponential backoff.
//
//	policy := resilience.DefaultPolicy()
//	err := policy.Do(ctx, func(ctx context.Context) error {
//	    return registrar.Register(ctx, reg)
//	})
package resilience
