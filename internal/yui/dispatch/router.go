// Package dispatch routes messages that mention the bot to a reply.
//
// Each mention moves through
//
//	Idle → StripAddressing → PatternCheck → {Preempt | BackendDispatch} → Relay → Idle
//
// The pattern responder is consulted first on every prompt; a confident
// answer replaces the user's selected backend for that turn. Otherwise the
// user's mode picks the backend, which runs inside the user's session lock.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/yui/common/trace"
	"github.com/bdobrica/yui/internal/yui/backend"
	"github.com/bdobrica/yui/internal/yui/backend/pattern"
	"github.com/bdobrica/yui/internal/yui/chat"
	"github.com/bdobrica/yui/internal/yui/session"
)

// Fixed replies.
const (
	EmptyPromptReply = "Yes? How can I help you?"
	RateLimitReply   = "⏳ You're sending messages too quickly. Please wait a moment and try again."
)

// Matcher scores a prompt against the pattern corpus.
type Matcher interface {
	Match(ctx context.Context, prompt string) (pattern.Match, error)
}

// Config configures a Router.
type Config struct {
	// BotID is the bot's own identity; its messages are ignored and only
	// messages mentioning it are handled.
	BotID string
	// AddressingTokens are removed from the prompt (bot ID, mention links,
	// display name).
	AddressingTokens []string
	// MaxMessageLength is the outbound chunk limit.
	MaxMessageLength int
	// RateLimit caps backend turns per user per RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

// Router is the mention state machine. It holds no global lock; turns of
// different users run in parallel and turns of one user are serialised by the
// session store.
type Router struct {
	cfg        Config
	addressing addressing
	matcher    Matcher
	backends   map[session.Mode]backend.Responder
	sessions   *session.Store
	sender     chat.Sender
	limiter    *RateLimiter
	logger     *slog.Logger
}

// New returns a Router. Every mode must have a backend.
func New(cfg Config, matcher Matcher, backends map[session.Mode]backend.Responder, sessions *session.Store, sender chat.Sender, logger *slog.Logger) (*Router, error) {
	if cfg.BotID == "" {
		return nil, fmt.Errorf("dispatch: bot ID is required")
	}
	for _, m := range session.Modes {
		if backends[m] == nil {
			return nil, fmt.Errorf("dispatch: no backend for mode %s", m)
		}
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = chat.DefaultMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		addressing: newAddressing(append([]string{cfg.BotID}, cfg.AddressingTokens...)),
		matcher:    matcher,
		backends:   backends,
		sessions:   sessions,
		sender:     sender,
		limiter:    NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:     logger,
	}, nil
}

// StripAddressing returns content with the bot's addressing tokens removed.
func (r *Router) StripAddressing(content string) string {
	return r.addressing.Strip(content)
}

// HandleMention runs one turn for msg. Messages from the bot itself and
// messages that do not mention it are ignored. The only errors returned are
// delivery failures.
func (r *Router) HandleMention(ctx context.Context, msg chat.Message) error {
	if msg.Author == r.cfg.BotID || !msg.MentionsUser(r.cfg.BotID) {
		return nil
	}

	logger := r.logger.With("trace_id", trace.FromContext(ctx), "user", msg.Author, "channel", msg.Channel)

	prompt := r.StripAddressing(msg.Content)
	if prompt == "" {
		logger.Debug("empty prompt")
		if err := r.sender.SendText(ctx, msg.Channel, EmptyPromptReply); err != nil {
			return fmt.Errorf("dispatch: send: %w", err)
		}
		return nil
	}

	match, err := r.matcher.Match(ctx, prompt)
	if err != nil {
		logger.Warn("pattern check failed", "err", err)
		match = pattern.Match{}
	}

	var reply string
	if match.Preempts() {
		logger.Info("pattern preempt", "confidence", match.Confidence, "statement", match.Statement)
		reply = match.Text
	} else {
		var ok bool
		reply, ok = r.dispatch(ctx, logger, msg, prompt)
		if !ok {
			return nil
		}
	}

	if err := chat.Relay(ctx, r.sender, msg.Channel, reply, r.cfg.MaxMessageLength); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}

// dispatch runs the user's selected backend. It reports false when the turn
// was answered in place (rate limit) and nothing is left to relay.
func (r *Router) dispatch(ctx context.Context, logger *slog.Logger, msg chat.Message, prompt string) (string, bool) {
	if !r.limiter.Allow(msg.Author) {
		logger.Warn("rate limited", "retry_after", r.limiter.RetryAfter(msg.Author))
		if err := r.sender.SendText(ctx, msg.Channel, RateLimitReply); err != nil {
			logger.Error("failed to send rate-limit notice", "err", err)
		}
		return "", false
	}

	stop := r.typing(ctx, logger, msg.Channel)
	defer stop()

	var res backend.Result
	var name string
	start := time.Now()
	_ = r.sessions.Update(msg.Author, func(s *session.Session) error {
		be := r.backends[s.Mode]
		if be == nil {
			be = r.backends[session.DefaultMode]
		}
		name = be.Name()
		res = be.Respond(ctx, prompt, s)
		return nil
	})

	attrs := []any{"backend", name, "duration_ms", time.Since(start).Milliseconds()}
	if res.Failed() {
		logger.Warn("backend turn failed", append(attrs, "err", res.Err)...)
	} else {
		logger.Info("backend turn", attrs...)
	}
	return res.Text, true
}

// typing shows the typing indicator when the sender supports it and returns
// a func that clears it.
func (r *Router) typing(ctx context.Context, logger *slog.Logger, channel string) func() {
	typer, ok := r.sender.(chat.Typer)
	if !ok {
		return func() {}
	}
	if err := typer.SetTyping(ctx, channel, true); err != nil {
		logger.Debug("failed to set typing", "err", err)
	}
	return func() {
		if err := typer.SetTyping(context.WithoutCancel(ctx), channel, false); err != nil {
			logger.Debug("failed to clear typing", "err", err)
		}
	}
}
