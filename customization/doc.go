// Package customization provides an ordered pipeline of settings transforms.
//
// Builders expose a Pipeline for their settings type so setup code can layer
// adjustments without knowing the defaults:
//
//	var p customization.Pipeline[*Settings]
//	p.AddMutation(func(s *Settings) { s.Interval = time.Second })
//	p.AddReplacement(func(s *Settings) *Settings { return s.WithTimeout(2 * time.Second) })
//	settings, err := p.Customize(DefaultSettings())
package customization
