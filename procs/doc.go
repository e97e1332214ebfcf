// Package procs keeps GOMAXPROCS in line with the CPU limit of the process.
//
// Container CPU quotas are often fractional or change at runtime, while the
// Go scheduler sizes itself from the host's core count. The Tracker reads the
// CPU limit on every tick and sets GOMAXPROCS to
//
//	max(Minimum, ceil(cpu * Multiplier))
package procs
