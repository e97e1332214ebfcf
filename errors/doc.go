// Package errors provides the structured error type shared by hostkit packages.
//
// Every error carries a machine-readable code, a human-readable message and an
// optional cause. Lookup misses, invalid builder configuration and illegal state
// transitions are all reported as *AppError so hosts can log and classify them
// uniformly.
package errors
