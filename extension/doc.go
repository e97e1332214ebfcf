// Package extension provides the runtime registry through which assembled
// components become discoverable by application code and by other builders.
//
// Instances are keyed by their static Go type, optionally qualified by a name.
// Registration is add-if-absent: the first instance stored under a key stays.
//
// # Registration
//
//	extension.Add[*health.Tracker](reg, tracker)
//	extension.AddNamed[Locator](reg, "backup", backupLocator)
//
// # Resolution
//
//	tracker, err := extension.Get[*health.Tracker](reg)
//	if locator, ok := extension.TryGetNamed[Locator](reg, "backup"); ok { ... }
package extension
