// Package session keeps per-user conversational state for the lifetime of
// the process: the selected backend mode and, for the local generator, the
// encoded running dialogue.
//
// Nothing is persisted and nothing expires; sessions are lost on restart.
package session

import (
	"slices"
	"time"
)

// Session is the state of one user.
type Session struct {
	UserID string
	Mode   Mode
	// Context is the encoded dialogue fed back to the local generator. It is
	// only populated while Mode is ModeLocal and is bounded by the generator's
	// window.
	Context   []uint
	Turns     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// clone returns a deep copy so callers never alias the stored context.
func (s *Session) clone() Session {
	cp := *s
	cp.Context = slices.Clone(s.Context)
	return cp
}
