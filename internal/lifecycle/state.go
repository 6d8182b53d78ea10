package lifecycle

// State is the position of a manager in the index lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateDecompressing
	StateValidating
	StateInitializing
	StateReady
	StateEncrypting
	StateDestroyed
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateDecompressing: "decompressing",
	StateValidating:    "validating",
	StateInitializing:  "initializing",
	StateReady:         "ready",
	StateEncrypting:    "encrypting",
	StateDestroyed:     "destroyed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON replies.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// initialized reports whether operations may run in this state.
func (s State) initialized() bool {
	return s == StateReady || s == StateEncrypting
}
