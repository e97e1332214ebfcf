// Package beacon announces the hosted application to service discovery.
//
// A Beacon holds one registration derived from the host identity. Start
// registers it, Dispose removes it. While it is not registered the beacon's
// health check reports failing.
package beacon
