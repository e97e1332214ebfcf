package component

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kbukum/hostkit/logger"
)

// DefaultDisposeTimeout bounds the time a single Dispose call may take.
const DefaultDisposeTimeout = 10 * time.Second

// Disposable is implemented by built artifacts that own resources.
type Disposable interface {
	Dispose(ctx context.Context) error
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func(ctx context.Context) error

// Dispose calls f(ctx).
func (f DisposeFunc) Dispose(ctx context.Context) error { return f(ctx) }

// FromCloser adapts an io.Closer.
func FromCloser(c io.Closer) Disposable {
	return DisposeFunc(func(context.Context) error { return c.Close() })
}

// Stopper is the lifecycle shape used by long-running supervisors.
type Stopper interface {
	Stop(ctx context.Context) error
}

// FromStopper adapts a Stopper.
func FromStopper(s Stopper) Disposable {
	return DisposeFunc(s.Stop)
}

type disposableEntry struct {
	name       string
	disposable Disposable
}

// Disposables accumulates artifacts that must be released at shutdown.
// They are released in reverse registration order.
type Disposables struct {
	mu       sync.Mutex
	entries  []disposableEntry
	timeout  time.Duration
	disposed bool
	log      *logger.Logger
}

// NewDisposables creates an empty list.
func NewDisposables(log *logger.Logger) *Disposables {
	return &Disposables{
		timeout: DefaultDisposeTimeout,
		log:     logger.OrGlobal(log).WithComponent("disposables"),
	}
}

// SetTimeout overrides the per-item dispose timeout.
func (d *Disposables) SetTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = timeout
}

// Add appends a disposable. Nil values are ignored.
func (d *Disposables) Add(name string, disposable Disposable) {
	if disposable == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, disposableEntry{name: name, disposable: disposable})
	d.log.Debug("Disposable registered", map[string]interface{}{"name": name})
}

// Len returns the number of registered disposables.
func (d *Disposables) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Names returns registered names in registration order.
func (d *Disposables) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		names = append(names, e.name)
	}
	return names
}

// DisposeAll releases every entry in reverse registration order. Failures do
// not stop the remaining releases; they are joined into the returned error.
// Only the first call does any work.
func (d *Disposables) DisposeAll(ctx context.Context) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil
	}
	d.disposed = true
	entries := d.entries
	d.entries = nil
	timeout := d.timeout
	d.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if err := disposeOne(ctx, entry, timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to dispose %s: %w", entry.name, err))
			d.log.Error("Dispose failed", logger.ErrorFields(entry.name, err))
			continue
		}
		d.log.Debug("Disposed", map[string]interface{}{"name": entry.name})
	}
	return errors.Join(errs...)
}

func disposeOne(ctx context.Context, entry disposableEntry, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	disposeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return entry.disposable.Dispose(disposeCtx)
}
