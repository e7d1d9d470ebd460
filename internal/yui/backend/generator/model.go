package generator

import (
	"context"
	"errors"
)

// ErrUntrained is returned by a model that has nothing to sample from.
var ErrUntrained = errors.New("generator: model is untrained")

// Params bounds one generation call.
type Params struct {
	// MaxNewTokens caps the number of generated tokens.
	MaxNewTokens int
	TopK         int
	TopP         float64
	// EOS ends generation. It is never chosen as the first new token.
	EOS uint
}

// Model continues a token sequence. The returned slice is input followed by
// the generated tokens, including the terminating EOS if one was produced.
type Model interface {
	Generate(ctx context.Context, input []uint, p Params) ([]uint, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, input []uint, p Params) ([]uint, error)

func (f ModelFunc) Generate(ctx context.Context, input []uint, p Params) ([]uint, error) {
	return f(ctx, input, p)
}
