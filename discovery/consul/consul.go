// Package consul implements discovery.Locator and discovery.Registrar on
// the HashiCorp Consul agent and health APIs.
package consul

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/kbukum/hostkit/config"
	"github.com/kbukum/hostkit/discovery"
	"github.com/kbukum/hostkit/logger"
)

// NewClient creates a Consul API client from host configuration.
func NewClient(cfg config.ConsulConfig) (*api.Client, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	if cfg.Scheme != "" {
		apiCfg.Scheme = cfg.Scheme
	}
	apiCfg.Token = cfg.Token
	if cfg.Datacenter != "" {
		apiCfg.Datacenter = cfg.Datacenter
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return client, nil
}

// Provider registers this process with the local agent and locates other
// services through the health endpoint (passing instances only).
type Provider struct {
	agent  *api.Agent
	health *api.Health
	log    *logger.Logger

	mu         sync.Mutex
	registered map[string]struct{}
}

// NewProvider creates a Provider over an existing client.
func NewProvider(client *api.Client, log *logger.Logger) *Provider {
	return &Provider{
		agent:      client.Agent(),
		health:     client.Health(),
		log:        logger.OrGlobal(log).WithComponent("consul"),
		registered: make(map[string]struct{}),
	}
}

// Register registers reg with the local Consul agent.
func (p *Provider) Register(ctx context.Context, reg *discovery.Registration) error {
	svc := &api.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
		Meta:    reg.Metadata,
	}
	if reg.CheckURL != "" {
		svc.Check = &api.AgentServiceCheck{
			HTTP:                           reg.CheckURL,
			Interval:                       durationOr(reg.CheckInterval, 10*time.Second).String(),
			Timeout:                        durationOr(reg.CheckTimeout, 5*time.Second).String(),
			DeregisterCriticalServiceAfter: durationOr(reg.DeregisterAfter, time.Minute).String(),
		}
	}

	// The agent endpoints take no context; honor cancellation before the call.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.agent.ServiceRegister(svc); err != nil {
		p.log.Error("failed to register service", map[string]interface{}{
			"service_id": reg.ID, "error": err.Error(),
		})
		return fmt.Errorf("consul register %q: %w", reg.Name, err)
	}

	p.mu.Lock()
	p.registered[reg.ID] = struct{}{}
	p.mu.Unlock()

	p.log.Info("service registered", map[string]interface{}{
		"service_id": reg.ID, "address": reg.Address, "port": reg.Port,
	})
	return nil
}

// Deregister removes a registration from the local agent.
func (p *Provider) Deregister(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.agent.ServiceDeregister(id); err != nil {
		return fmt.Errorf("consul deregister %q: %w", id, err)
	}

	p.mu.Lock()
	delete(p.registered, id)
	p.mu.Unlock()

	p.log.Info("service deregistered", map[string]interface{}{"service_id": id})
	return nil
}

// Locate returns the passing instances of service.
func (p *Provider) Locate(ctx context.Context, service string) ([]discovery.Endpoint, error) {
	entries, _, err := p.health.Service(service, "", true, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul locate %q: %w", service, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrNoHealthyEndpoints, service)
	}

	now := time.Now()
	endpoints := make([]discovery.Endpoint, 0, len(entries))
	for _, e := range entries {
		endpoints = append(endpoints, entryToEndpoint(e, now))
	}
	return endpoints, nil
}

// Registered returns how many registrations this provider currently holds.
func (p *Provider) Registered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.registered)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func entryToEndpoint(e *api.ServiceEntry, now time.Time) discovery.Endpoint {
	health := discovery.HealthHealthy
	for _, chk := range e.Checks {
		if chk.Status != api.HealthPassing {
			health = discovery.HealthUnhealthy
			break
		}
	}

	// Protocol from metadata, else from a well-known tag.
	protocol := e.Service.Meta["protocol"]
	if protocol == "" {
		for _, tag := range e.Service.Tags {
			if tag == "http" || tag == "grpc" || tag == "websocket" {
				protocol = tag
				break
			}
		}
	}

	weight, _ := strconv.Atoi(e.Service.Meta["weight"])

	address := e.Service.Address
	if address == "" && e.Node != nil {
		address = e.Node.Address
	}

	return discovery.Endpoint{
		ID:       e.Service.ID,
		Name:     e.Service.Service,
		Address:  address,
		Port:     e.Service.Port,
		Protocol: protocol,
		Tags:     e.Service.Tags,
		Metadata: e.Service.Meta,
		Health:   health,
		Weight:   weight,
		LastSeen: now,
	}
}

// Compile-time checks.
var (
	_ discovery.Locator   = (*Provider)(nil)
	_ discovery.Registrar = (*Provider)(nil)
)
