package session

import (
	"fmt"
	"strings"
)

// Mode selects the backend that answers a user's prompts when the pattern
// responder does not pre-empt.
type Mode int

const (
	// ModeLocal answers with the local generator and keeps dialogue context.
	ModeLocal Mode = iota
	// ModeOpenRouter answers with remote provider A.
	ModeOpenRouter
	// ModeGroq answers with remote provider B.
	ModeGroq
)

// DefaultMode is the mode of a user who never switched.
const DefaultMode = ModeLocal

// Modes lists every mode in cycle order.
var Modes = []Mode{ModeLocal, ModeOpenRouter, ModeGroq}

var modeNames = map[Mode]string{
	ModeLocal:      "local",
	ModeOpenRouter: "openrouter",
	ModeGroq:       "groq",
}

// String returns the lower-case mode name.
func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Next returns the mode that follows m in the fixed cycle
// local → openrouter → groq → local. Unknown modes restart the cycle at the
// default.
func (m Mode) Next() Mode {
	switch m {
	case ModeLocal:
		return ModeOpenRouter
	case ModeOpenRouter:
		return ModeGroq
	default:
		return ModeLocal
	}
}

// ParseMode resolves a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == s {
			return m, nil
		}
	}
	return DefaultMode, fmt.Errorf("unknown mode %q", s)
}
