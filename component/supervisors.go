package component

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kbukum/hostkit/logger"
)

// Starter is implemented by long-running supervisors that begin work once
// assembly is complete.
type Starter interface {
	Start(ctx context.Context) error
}

type starterEntry struct {
	name    string
	starter Starter
}

// Supervisors starts registered components in registration order. Stopping
// them is left to Disposables, which releases in reverse order.
type Supervisors struct {
	mu      sync.Mutex
	entries []starterEntry
	log     *logger.Logger
}

// NewSupervisors creates an empty list.
func NewSupervisors(log *logger.Logger) *Supervisors {
	return &Supervisors{log: logger.OrGlobal(log).WithComponent("supervisors")}
}

// Register appends a starter. Nil values are ignored.
func (s *Supervisors) Register(name string, starter Starter) {
	if starter == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, starterEntry{name: name, starter: starter})
}

// Names returns the registered names in start order.
func (s *Supervisors) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// StartAll starts every supervisor in order. A failed start is logged and
// does not prevent later supervisors from starting; all failures are joined.
func (s *Supervisors) StartAll(ctx context.Context) error {
	s.mu.Lock()
	entries := append([]starterEntry(nil), s.entries...)
	s.mu.Unlock()

	s.log.Info("Starting supervisors", map[string]interface{}{"count": len(entries)})
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		s.log.Debug("Starting supervisor", map[string]interface{}{"component": e.name})
		if err := e.starter.Start(ctx); err != nil {
			s.log.Error("Supervisor start failed", logger.ErrorFields(e.name, err))
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		s.log.Debug("Supervisor started", map[string]interface{}{"component": e.name})
	}
	return errors.Join(errs...)
}
