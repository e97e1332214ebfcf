package clusterconfig

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Settings is an immutable snapshot of layered cluster configuration.
// Keys are relative to their level prefix.
type Settings struct {
	values map[string]string
	levels []string
}

// NewSettings builds a snapshot from already-flattened values.
func NewSettings(values map[string]string, levels ...string) *Settings {
	return &Settings{values: maps.Clone(values), levels: slices.Clone(levels)}
}

// Get returns the value of key.
func (s *Settings) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value of key or fallback.
func (s *Settings) String(key, fallback string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return fallback
}

// Duration parses the value of key, returning fallback when absent or malformed.
func (s *Settings) Duration(key string, fallback time.Duration) time.Duration {
	if v, ok := s.values[key]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Keys returns the keys in sorted order.
func (s *Settings) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of keys.
func (s *Settings) Len() int { return len(s.values) }

// Levels returns the prefixes the snapshot was layered from, lowest
// precedence first.
func (s *Settings) Levels() []string { return slices.Clone(s.levels) }

// All returns a copy of every key and value.
func (s *Settings) All() map[string]string { return maps.Clone(s.values) }

// Fetch lists every level concurrently and merges them in order, so a key in
// a later level overrides the same key in an earlier one. Any level failing
// fails the fetch.
func Fetch(ctx context.Context, client Client, levels ...string) (*Settings, error) {
	results := make([]map[string][]byte, len(levels))

	g, gctx := errgroup.WithContext(ctx)
	for i, level := range levels {
		g.Go(func() error {
			values, err := client.List(gctx, level+"/")
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]string)
	for i, level := range levels {
		prefix := level + "/"
		for key, value := range results[i] {
			rel := strings.TrimPrefix(key, prefix)
			if rel == "" {
				continue
			}
			merged[rel] = string(value)
		}
	}
	return &Settings{values: merged, levels: slices.Clone(levels)}, nil
}
