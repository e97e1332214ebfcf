package component

// State is the enablement switch of an optional component. The zero value is
// StateUnset.
//
// Explicit Enable and Disable calls are authoritative and the latest one wins.
// AutoEnable only takes effect while the state is still unset, so a setup call
// that implicitly wants its feature on never overrides an explicit Disable.
type State uint8

const (
	StateUnset State = iota
	StateEnabled
	StateDisabled
)

// Enable forces the component on.
func (s *State) Enable() { *s = StateEnabled }

// Disable forces the component off.
func (s *State) Disable() { *s = StateDisabled }

// AutoEnable turns the component on unless a decision was already made.
func (s *State) AutoEnable() {
	if *s == StateUnset {
		*s = StateEnabled
	}
}

// IsEnabled reports whether the component should be built.
func (s State) IsEnabled() bool { return s == StateEnabled }

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
