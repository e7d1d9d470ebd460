// Package generator is the local, stateful reply backend. It keeps each
// user's conversation as a token sequence, feeds the most recent window of it
// to a language model and replies with the newly generated suffix.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bdobrica/yui/internal/yui/backend"
	"github.com/bdobrica/yui/internal/yui/session"
)

// Name identifies the backend in logs.
const Name = "local"

// Apology is the reply sent when generation fails.
const Apology = "Sorry, I couldn't come up with a reply right now."

// ErrEmptyReply is reported when the generated suffix decodes to nothing.
var ErrEmptyReply = errors.New("generator: empty reply")

// Config bounds the context and the generation.
type Config struct {
	// Window is the maximum number of context tokens fed to the model.
	Window int
	// MaxLength caps input plus generated tokens.
	MaxLength int
	// MinNewTokens is the floor on generated tokens when the input already
	// fills MaxLength.
	MinNewTokens int
	TopK         int
	TopP         float64
}

// DefaultConfig returns the stock sampling configuration.
func DefaultConfig() Config {
	return Config{
		Window:       1024,
		MaxLength:    1000,
		MinNewTokens: 48,
		TopK:         50,
		TopP:         0.9,
	}
}

// Generator implements backend.Responder.
type Generator struct {
	tok    Tokenizer
	model  Model
	cfg    Config
	logger *slog.Logger
}

// New returns a Generator. Zero fields of cfg take their defaults.
func New(tok Tokenizer, model Model, cfg Config, logger *slog.Logger) *Generator {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.MinNewTokens <= 0 {
		cfg.MinNewTokens = def.MinNewTokens
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = def.TopP
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{tok: tok, model: model, cfg: cfg, logger: logger}
}

// Name implements backend.Responder.
func (g *Generator) Name() string { return Name }

// Respond continues the user's conversation with prompt. On success the full
// generated sequence becomes the session context; on failure the context is
// left untouched.
func (g *Generator) Respond(ctx context.Context, prompt string, sess *session.Session) backend.Result {
	reply, ids, err := g.generate(ctx, prompt, sess.Context)
	if err != nil {
		g.logger.Warn("local generation failed", "user", sess.UserID, "err", err)
		return backend.Apology(Apology, err)
	}
	sess.Context = ids
	sess.Turns++
	return backend.OK(reply)
}

func (g *Generator) generate(ctx context.Context, prompt string, history []uint) (string, []uint, error) {
	input, err := g.tok.Encode(prompt)
	if err != nil {
		return "", nil, err
	}
	input = append(input, g.tok.EOS())

	ids := make([]uint, 0, len(history)+len(input))
	ids = append(ids, history...)
	ids = append(ids, input...)
	if len(ids) > g.cfg.Window {
		ids = ids[len(ids)-g.cfg.Window:]
	}

	out, err := g.model.Generate(ctx, ids, Params{
		MaxNewTokens: max(g.cfg.MaxLength-len(ids), g.cfg.MinNewTokens),
		TopK:         g.cfg.TopK,
		TopP:         g.cfg.TopP,
		EOS:          g.tok.EOS(),
	})
	if err != nil {
		return "", nil, err
	}
	if len(out) < len(ids) || !slices.Equal(out[:len(ids)], ids) {
		return "", nil, fmt.Errorf("generator: model output does not extend its input")
	}

	reply, err := g.tok.Decode(out[len(ids):])
	if err != nil {
		return "", nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", nil, ErrEmptyReply
	}

	g.logger.Debug("local generation",
		"input_tokens", len(ids),
		"new_tokens", len(out)-len(ids),
		"truncated", len(history)+len(input) > len(ids),
	)
	return reply, out, nil
}

var _ backend.Responder = (*Generator)(nil)
