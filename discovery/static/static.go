// Package static provides an in-memory discovery backend.
package static

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/hostkit/discovery"
)

// Provider implements discovery.Locator and discovery.Registrar over an
// in-memory endpoint list. Registrations become locatable immediately.
type Provider struct {
	mu        sync.RWMutex
	endpoints map[string][]discovery.Endpoint // keyed by service name
}

// NewProvider creates a Provider pre-populated with endpoints.
func NewProvider(endpoints ...discovery.Endpoint) *Provider {
	p := &Provider{endpoints: make(map[string][]discovery.Endpoint)}
	for _, ep := range endpoints {
		if ep.ID == "" {
			ep.ID = fmt.Sprintf("%s-%s-%d", ep.Name, ep.Address, ep.Port)
		}
		if ep.Health == "" {
			ep.Health = discovery.HealthHealthy
		}
		p.endpoints[ep.Name] = append(p.endpoints[ep.Name], ep)
	}
	return p
}

// Register adds or replaces an endpoint with the registration's ID.
func (p *Provider) Register(_ context.Context, reg *discovery.Registration) error {
	if reg == nil || reg.ID == "" || reg.Name == "" {
		return fmt.Errorf("static register: registration needs an id and a name")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removeLocked(reg.ID)
	p.endpoints[reg.Name] = append(p.endpoints[reg.Name], discovery.Endpoint{
		ID:       reg.ID,
		Name:     reg.Name,
		Address:  reg.Address,
		Port:     reg.Port,
		Tags:     reg.Tags,
		Metadata: reg.Metadata,
		Health:   discovery.HealthHealthy,
		LastSeen: time.Now(),
	})
	return nil
}

// Deregister removes an endpoint by ID. Unknown IDs are ignored.
func (p *Provider) Deregister(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(id)
	return nil
}

func (p *Provider) removeLocked(id string) {
	for name, list := range p.endpoints {
		for i, ep := range list {
			if ep.ID == id {
				p.endpoints[name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Locate returns a copy of the endpoints registered for service.
func (p *Provider) Locate(_ context.Context, service string) ([]discovery.Endpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	endpoints := p.endpoints[service]
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, service)
	}
	out := make([]discovery.Endpoint, len(endpoints))
	copy(out, endpoints)
	return out, nil
}

// Registered returns the IDs currently registered, for inspection in tests.
func (p *Provider) Registered() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for _, list := range p.endpoints {
		for _, ep := range list {
			ids = append(ids, ep.ID)
		}
	}
	return ids
}

// Compile-time checks.
var (
	_ discovery.Locator   = (*Provider)(nil)
	_ discovery.Registrar = (*Provider)(nil)
)
