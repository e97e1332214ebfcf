// Package clusterconfig reads distributed configuration.
//
// Client is the read-only key/value contract a host consumes; ConsulClient
// implements it on the Consul KV store. Fetch layers several key prefixes
// into one immutable Settings snapshot, fetching the levels concurrently.
package clusterconfig
