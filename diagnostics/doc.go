// Package diagnostics serves the host's runtime state over HTTP.
//
// The server is a gin engine behind an h2c handler. Routes:
//
//	GET /health       latest health report; 503 when failing
//	GET /health/run   run every check now and return the report
//	GET /extensions   registered extension types
//	GET /components   disabled and failed components
//	GET /identity     the application identity
package diagnostics
