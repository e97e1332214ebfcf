package clusterconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"
)

// Client reads keys from a distributed configuration store.
type Client interface {
	// Get returns the value at key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// List returns every key under prefix with its value. Keys are returned
	// in full, including the prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

// ConsulClient implements Client on the Consul KV store.
type ConsulClient struct {
	kv *api.KV
}

// NewConsulClient creates a Client over an existing Consul API client.
func NewConsulClient(client *api.Client) *ConsulClient {
	return &ConsulClient{kv: client.KV()}
}

// Get reads a single key.
func (c *ConsulClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pair, _, err := c.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, false, fmt.Errorf("consul kv get %q: %w", key, err)
	}
	if pair == nil {
		return nil, false, nil
	}
	return pair.Value, true, nil
}

// List reads every key under prefix. Folder placeholders (keys ending in
// "/" with no value) are skipped.
func (c *ConsulClient) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	pairs, _, err := c.kv.List(prefix, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul kv list %q: %w", prefix, err)
	}
	out := make(map[string][]byte, len(pairs))
	for _, p := range pairs {
		if strings.HasSuffix(p.Key, "/") && len(p.Value) == 0 {
			continue
		}
		out[p.Key] = p.Value
	}
	return out, nil
}

var _ Client = (*ConsulClient)(nil)
