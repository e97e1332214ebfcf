package discovery

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is used when NewCachingLocator is given a zero TTL.
const DefaultCacheTTL = 30 * time.Second

// CachingLocator caches another Locator's answers and picks single endpoints.
type CachingLocator struct {
	next  Locator
	cache *endpointCache

	mu      sync.Mutex
	r       *rand.Rand
	rrIndex map[string]int
}

// NewCachingLocator wraps next with a cache of the given TTL.
func NewCachingLocator(next Locator, ttl time.Duration) *CachingLocator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingLocator{
		next:    next,
		cache:   newEndpointCache(ttl),
		r:       rand.New(rand.NewSource(time.Now().UnixNano())),
		rrIndex: make(map[string]int),
	}
}

// Locate returns the endpoints of service, from cache when fresh.
func (c *CachingLocator) Locate(ctx context.Context, service string) ([]Endpoint, error) {
	if endpoints := c.cache.get(service); endpoints != nil {
		return endpoints, nil
	}
	endpoints, err := c.next.Locate(ctx, service)
	if err != nil {
		return nil, err
	}
	c.cache.set(service, endpoints)
	return endpoints, nil
}

// Pick returns one endpoint selected by the query's strategy.
func (c *CachingLocator) Pick(ctx context.Context, q Query) (Endpoint, error) {
	endpoints, err := c.Locate(ctx, q.Service)
	if err != nil {
		return Endpoint{}, err
	}
	if q.Protocol != "" {
		endpoints = filterByProtocol(endpoints, q.Protocol)
	}
	if q.HealthyOnly {
		endpoints = filterHealthy(endpoints)
	}
	if len(endpoints) == 0 {
		return Endpoint{}, ErrNoHealthyEndpoints
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch q.Strategy {
	case StrategyRoundRobin:
		key := q.Service + ":" + q.Protocol
		idx := c.rrIndex[key]
		ep := endpoints[idx%len(endpoints)]
		c.rrIndex[key] = (idx + 1) % len(endpoints)
		return ep, nil
	case StrategyWeighted:
		return c.selectWeighted(endpoints), nil
	default:
		return endpoints[c.r.Intn(len(endpoints))], nil
	}
}

// Invalidate drops the cached endpoints of service.
func (c *CachingLocator) Invalidate(service string) {
	c.cache.invalidate(service)
}

func (c *CachingLocator) selectWeighted(endpoints []Endpoint) Endpoint {
	total := 0
	for _, ep := range endpoints {
		total += weightOf(ep)
	}
	r := c.r.Intn(total)
	for _, ep := range endpoints {
		r -= weightOf(ep)
		if r < 0 {
			return ep
		}
	}
	return endpoints[0]
}

func weightOf(ep Endpoint) int {
	if ep.Weight <= 0 {
		return 1
	}
	return ep.Weight
}

func filterHealthy(endpoints []Endpoint) []Endpoint {
	var out []Endpoint
	for _, ep := range endpoints {
		if ep.Health == HealthHealthy {
			out = append(out, ep)
		}
	}
	return out
}

func filterByProtocol(endpoints []Endpoint, protocol string) []Endpoint {
	var filtered []Endpoint
	protocolLower := strings.ToLower(protocol)
	tag := "protocol:" + protocolLower
	for _, ep := range endpoints {
		if strings.EqualFold(ep.Protocol, protocol) {
			filtered = append(filtered, ep)
			continue
		}
		for _, t := range ep.Tags {
			tl := strings.ToLower(t)
			if tl == tag || tl == protocolLower {
				filtered = append(filtered, ep)
				break
			}
		}
	}
	return filtered
}

type endpointCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	endpoints []Endpoint
	expiry    time.Time
}

func newEndpointCache(ttl time.Duration) *endpointCache {
	return &endpointCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *endpointCache) get(service string) []Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[service]
	if !ok || time.Now().After(entry.expiry) {
		return nil
	}
	return entry.endpoints
}

func (c *endpointCache) set(service string, endpoints []Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[service] = cacheEntry{
		endpoints: endpoints,
		expiry:    time.Now().Add(c.ttl),
	}
}

func (c *endpointCache) invalidate(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, service)
}

var _ Locator = (*CachingLocator)(nil)
