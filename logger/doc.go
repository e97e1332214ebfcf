// Package logger provides structured logging for hostkit using zerolog.
//
// Loggers are passed explicitly through the build context; the package-level
// global logger exists only as a fallback for code that runs before a host
// has assembled its environment.
//
// # Usage
//
//	log := logger.NewDefault("billing").WithComponent("health")
//	log.Info("check registered", logger.Fields("check", "db"))
package logger
