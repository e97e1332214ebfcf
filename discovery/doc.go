// Package discovery defines the service-locator and registrar contracts a
// host consumes.
//
// A Locator resolves a service name to its current endpoints; a Registrar
// announces this process so others can locate it. Both are optional host
// inputs: builders that need one and find it absent disable themselves.
//
// # Backends
//
//   - discovery/consul: HashiCorp Consul catalog and agent
//   - discovery/static: in-memory endpoints for development and tests
//
// CachingLocator wraps any Locator with a TTL cache and endpoint selection
// (random, round robin, weighted).
package discovery
