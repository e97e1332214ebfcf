// Package version reports the build of the hosted application.
//
// Version, commit and build time are set at compile time via -ldflags;
// missing values are filled from the module build info:
//
//	go build -ldflags "-X github.com/kbukum/hostkit/version.Version=1.0.0"
package version
