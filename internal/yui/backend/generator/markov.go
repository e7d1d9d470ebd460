package generator

import (
	"context"
	"fmt"
	"slices"
)

// Markov is a token-level trigram language model that backs off to bigram
// and unigram counts when a context has not been seen. It is read-only after
// training and safe for concurrent use.
type Markov struct {
	tri     map[[2]uint]map[uint]int
	bi      map[uint]map[uint]int
	uni     map[uint]int
	tokens  int
	sampler *sampler
}

// NewMarkov returns an empty model whose sampling is seeded with seed
// (0 = random).
func NewMarkov(seed uint64) *Markov {
	return &Markov{
		tri:     make(map[[2]uint]map[uint]int),
		bi:      make(map[uint]map[uint]int),
		uni:     make(map[uint]int),
		sampler: newSampler(seed),
	}
}

// Train counts n-grams over every dialogue. Each utterance is encoded and
// followed by the tokenizer's EOS, so the model learns where turns end.
func (m *Markov) Train(tok Tokenizer, dialogues [][]string) error {
	eos := tok.EOS()
	for i, dialogue := range dialogues {
		seq := []uint{eos}
		for _, utterance := range dialogue {
			ids, err := tok.Encode(utterance)
			if err != nil {
				return fmt.Errorf("train dialogue %d: %w", i, err)
			}
			seq = append(seq, ids...)
			seq = append(seq, eos)
		}
		m.observe(seq)
	}
	return nil
}

func (m *Markov) observe(seq []uint) {
	for i := 1; i < len(seq); i++ {
		next := seq[i]
		m.uni[next]++
		m.tokens++
		inc(m.bi, seq[i-1], next)
		if i >= 2 {
			inc(m.tri, [2]uint{seq[i-2], seq[i-1]}, next)
		}
	}
}

func inc[K comparable](counts map[K]map[uint]int, key K, next uint) {
	row, ok := counts[key]
	if !ok {
		row = make(map[uint]int)
		counts[key] = row
	}
	row[next]++
}

// Size returns the number of training tokens observed.
func (m *Markov) Size() int { return m.tokens }

// Generate samples up to p.MaxNewTokens tokens, stopping after EOS.
func (m *Markov) Generate(ctx context.Context, input []uint, p Params) ([]uint, error) {
	if len(m.uni) == 0 {
		return nil, ErrUntrained
	}

	out := slices.Grow(slices.Clone(input), p.MaxNewTokens)
	for step := 0; step < p.MaxNewTokens; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cands := m.candidates(out, p.EOS, step == 0)
		if len(cands) == 0 {
			return nil, fmt.Errorf("generator: no token to sample after %d steps", step)
		}
		next := pick(nucleus(cands, p.TopK, p.TopP), m.sampler.next())
		out = append(out, next)
		if next == p.EOS {
			break
		}
	}
	return out, nil
}

// candidates returns the continuations of the longest seen context of seq.
func (m *Markov) candidates(seq []uint, eos uint, maskEOS bool) []candidate {
	var rows []map[uint]int
	if n := len(seq); n >= 2 {
		rows = append(rows, m.tri[[2]uint{seq[n-2], seq[n-1]}])
	}
	if n := len(seq); n >= 1 {
		rows = append(rows, m.bi[seq[n-1]])
	}
	rows = append(rows, m.uni)

	for _, row := range rows {
		cands := make([]candidate, 0, len(row))
		for id, count := range row {
			if maskEOS && id == eos {
				continue
			}
			cands = append(cands, candidate{id: id, weight: float64(count)})
		}
		if len(cands) > 0 {
			return cands
		}
	}
	return nil
}
