// Package component holds the primitives shared by every optional hostkit
// component: the tri-state enablement policy embedded in builders and the
// ordered disposables list a host releases at shutdown.
//
// # Interfaces
//
//   - Disposable: releases resources owned by a built component
//   - State: Unset/Enabled/Disabled switch with AutoEnable semantics
package component
