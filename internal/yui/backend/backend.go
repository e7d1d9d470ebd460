// Package backend defines the contract shared by every reply backend.
//
// A backend never returns an error to the dispatcher. Failures are folded into
// a Result whose Text is the backend's fixed apology and whose Err records the
// cause for logging.
package backend

import (
	"context"

	"github.com/bdobrica/yui/internal/yui/session"
)

// Result is the outcome of one Respond call.
type Result struct {
	// Text is the reply to relay. It is the backend's apology when Err is set.
	Text string
	// Err is the failure that produced the apology, if any.
	Err error
}

// Failed reports whether the reply is an apology.
func (r Result) Failed() bool { return r.Err != nil }

// OK builds a successful result.
func OK(text string) Result { return Result{Text: text} }

// Apology builds a failed result carrying the backend's fixed apology.
func Apology(apology string, err error) Result { return Result{Text: apology, Err: err} }

// Responder produces a reply to prompt. Stateful backends read and update
// sess, which the caller holds exclusively for the duration of the call.
type Responder interface {
	Name() string
	Respond(ctx context.Context, prompt string, sess *session.Session) Result
}

// Completer is a stateless single-turn completion capability: it sends only
// the prompt and returns the completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
