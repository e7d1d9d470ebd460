// Package remote holds the hosted completion backends. Both are stateless:
// every call sends only the current prompt.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/yui/common/redact"
	"github.com/bdobrica/yui/internal/yui/backend"
	"github.com/bdobrica/yui/internal/yui/session"
)

// Backend names and their fixed apologies.
const (
	OpenRouterName    = "openrouter"
	OpenRouterApology = "Sorry, I couldn't process that right now."

	GroqName    = "groq"
	GroqApology = "Sorry, Groq model is currently unavailable."
)

const (
	defaultMaxTokens = 1000
	defaultTimeout   = 60 * time.Second
	defaultBackoff   = 500 * time.Millisecond
)

// ErrEmptyCompletion is returned when the provider answers with no text.
var ErrEmptyCompletion = errors.New("remote: empty completion")

// Config configures a completion provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxTokens caps the completion length. Defaults to 1000.
	MaxTokens int
	// Timeout bounds a single HTTP attempt. Defaults to 60 s.
	Timeout time.Duration
	// MaxAttempts is the number of tries for transient failures. Defaults
	// to 2.
	MaxAttempts int
	// Backoff is the delay before the first retry. Defaults to 500 ms.
	Backoff time.Duration
}

func (c Config) withDefaults(baseURL, model string) Config {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	return c
}

// Adapter turns a Completer into a backend.Responder. Failures are logged
// with secrets redacted and answered with the fixed apology.
type Adapter struct {
	name      string
	apology   string
	completer backend.Completer
	redactor  *redact.Redactor
	logger    *slog.Logger
}

// NewAdapter wraps c. redactor may be nil.
func NewAdapter(name, apology string, c backend.Completer, redactor *redact.Redactor, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		name:      name,
		apology:   apology,
		completer: c,
		redactor:  redactor,
		logger:    logger,
	}
}

// Name implements backend.Responder.
func (a *Adapter) Name() string { return a.name }

// Respond implements backend.Responder. The session is not read or written.
func (a *Adapter) Respond(ctx context.Context, prompt string, _ *session.Session) backend.Result {
	start := time.Now()
	text, err := a.completer.Complete(ctx, prompt)
	if err == nil && text == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		a.logger.Error(fmt.Sprintf("%s completion failed", a.name),
			"err", a.redactor.Error(err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return backend.Apology(a.apology, err)
	}
	a.logger.Debug(fmt.Sprintf("%s completion", a.name),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return backend.OK(text)
}

var _ backend.Responder = (*Adapter)(nil)
