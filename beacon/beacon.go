package beacon

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/hostkit/discovery"
	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/logger"
	"github.com/kbukum/hostkit/resilience"
)

// CheckName is the health check registered for the beacon.
const CheckName = "beacon"

// Beacon registers this process with a discovery.Registrar.
type Beacon struct {
	registrar    discovery.Registrar
	registration discovery.Registration
	log          *logger.Logger
	retry        resilience.Policy

	mu         sync.Mutex
	registered bool
	disposed   bool
	lastErr    error
}

// New creates an unregistered beacon that retries registration with
// resilience.DefaultPolicy.
func New(registrar discovery.Registrar, reg discovery.Registration, log *logger.Logger) *Beacon {
	return &Beacon{
		registrar:    registrar,
		registration: reg,
		log:          logger.OrGlobal(log),
		retry:        resilience.DefaultPolicy(),
	}
}

// Registration returns a copy of the announced registration.
func (b *Beacon) Registration() discovery.Registration {
	reg := b.registration
	reg.Tags = append([]string(nil), b.registration.Tags...)
	return reg
}

// Start registers the beacon. Calling Start again re-registers. A disposed
// beacon cannot start. The lock is not held while the registrar is retried,
// so Check and Dispose stay responsive during backoff.
func (b *Beacon) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return errors.InvalidState("start beacon", "disposed")
	}
	reg := b.Registration()
	retry := b.retry
	b.mu.Unlock()

	start := time.Now()
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		b.log.Warn("Service registration attempt failed", logger.Fields(
			"attempt", attempt,
			logger.FieldError, err.Error(),
			"backoff", backoff.String(),
		))
	}
	err := retry.Do(ctx, func(ctx context.Context) error {
		return b.registrar.Register(ctx, &reg)
	})

	b.mu.Lock()
	if err != nil {
		b.lastErr = err
		b.mu.Unlock()
		b.log.Error("Service registration failed", logger.ErrorFields(ComponentName, err))
		return errors.ConnectionFailed("service registrar", err)
	}
	if b.disposed {
		b.mu.Unlock()
		if derr := b.registrar.Deregister(context.WithoutCancel(ctx), reg.ID); derr != nil {
			b.log.Warn("Deregistering after dispose failed", logger.ErrorFields(ComponentName, derr))
		}
		return errors.InvalidState("start beacon", "disposed")
	}
	b.registered = true
	b.lastErr = nil
	b.mu.Unlock()

	b.log.Info("Service registered", logger.Fields(
		"id", reg.ID,
		"name", reg.Name,
		"port", reg.Port,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return nil
}

// Registered reports whether the registration is active.
func (b *Beacon) Registered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registered
}

// Check reports failing until the beacon is registered.
func (b *Beacon) Check(context.Context) (health.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.registered:
		return health.Healthy(), nil
	case b.lastErr != nil:
		return health.Failing("registration failed: " + b.lastErr.Error()), nil
	default:
		return health.Failing("not registered"), nil
	}
}

// Dispose deregisters the beacon. Later calls do nothing.
func (b *Beacon) Dispose(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return nil
	}
	b.disposed = true
	if !b.registered {
		return nil
	}
	b.registered = false
	if err := b.registrar.Deregister(ctx, b.registration.ID); err != nil {
		b.log.Warn("Service deregistration failed", logger.ErrorFields(ComponentName, err))
		return err
	}
	b.log.Info("Service deregistered", logger.Fields("id", b.registration.ID))
	return nil
}
