// Package pattern is the corpus-backed responder consulted before every
// backend turn. It compares the prompt with each known statement and returns
// the response to the closest one together with a confidence score.
package pattern

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/bdobrica/yui/internal/yui/store"
)

// PreemptThreshold is the inclusive confidence at which a pattern answer
// replaces the user's selected backend.
const PreemptThreshold = 0.80

// Match is the best corpus answer for a prompt.
type Match struct {
	// Text is the response. Empty when Confidence is 0.
	Text       string
	Confidence float64
	// Statement is the corpus statement the prompt matched.
	Statement string
}

// Preempts reports whether the match is confident enough to answer directly.
func (m Match) Preempts() bool { return m.Confidence >= PreemptThreshold }

// Responder answers prompts from a trained corpus. It is read-only after
// training and safe for concurrent use.
type Responder struct {
	store  *store.Store
	owned  bool
	dmp    *diffmatchpatch.DiffMatchPatch
	logger *slog.Logger
}

// New returns a Responder reading statements from st.
func New(st *store.Store, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{store: st, dmp: diffmatchpatch.New(), logger: logger}
}

// Open creates an in-memory store, trains it on corpus and returns a
// Responder that owns the store.
func Open(ctx context.Context, corpus *Corpus, logger *slog.Logger) (*Responder, error) {
	st, err := store.New(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	r := New(st, logger)
	r.owned = true
	if err := r.Train(ctx, corpus); err != nil {
		st.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the store when the Responder owns it.
func (r *Responder) Close() error {
	if r.owned {
		return r.store.Close()
	}
	return nil
}

// Store exposes the statement store, e.g. to train other models on the same
// dialogues.
func (r *Responder) Store() *store.Store { return r.store }

// Train stores every conversation of corpus.
func (r *Responder) Train(ctx context.Context, corpus *Corpus) error {
	for i, conv := range corpus.Conversations {
		if _, err := r.store.InsertConversation(ctx, corpus.Category(), conv); err != nil {
			return fmt.Errorf("pattern: train conversation %d: %w", i, err)
		}
	}
	n, err := r.store.CountStatements(ctx)
	if err != nil {
		return fmt.Errorf("pattern: %w", err)
	}
	r.logger.Info("pattern corpus trained", "conversations", len(corpus.Conversations), "statements", n)
	return nil
}

// Match returns the response to the statement most similar to prompt. Ties
// go to the earliest statement. A corpus with no responses yields a zero
// Match.
func (r *Responder) Match(ctx context.Context, prompt string) (Match, error) {
	pairs, err := r.store.ResponsePairs(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("pattern: %w", err)
	}

	query := normalize(prompt)
	var best Match
	found := false
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		score := ratio(r.dmp, query, normalize(p.SearchText))
		if !found || score > best.Confidence {
			best = Match{Text: p.Response, Confidence: score, Statement: p.Statement}
			found = true
		}
	}
	if found && best.Confidence == 0 {
		return Match{}, nil
	}

	r.logger.Debug("pattern match", "statement", best.Statement, "confidence", best.Confidence)
	return best, nil
}
