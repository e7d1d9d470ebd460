package generator

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is the GPT-2 vocabulary.
const DefaultEncoding = string(tokenizer.R50kBase)

// Tokenizer converts between text and token IDs. EOS is the end-of-turn
// marker appended after every utterance.
type Tokenizer interface {
	Encode(text string) ([]uint, error)
	Decode(ids []uint) (string, error)
	EOS() uint
}

// end-of-text token per encoding
var eosIDs = map[tokenizer.Encoding]uint{
	tokenizer.R50kBase:   50256,
	tokenizer.P50kBase:   50256,
	tokenizer.Cl100kBase: 100257,
	tokenizer.O200kBase:  199999,
}

type tiktoken struct {
	codec tokenizer.Codec
	eos   uint
}

// NewTokenizer returns a tiktoken-backed Tokenizer for the named encoding.
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc := tokenizer.Encoding(encoding)
	eos, ok := eosIDs[enc]
	if !ok {
		return nil, fmt.Errorf("generator: unsupported encoding %q", encoding)
	}
	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("generator: load encoding %q: %w", encoding, err)
	}
	return &tiktoken{codec: codec, eos: eos}, nil
}

func (t *tiktoken) Encode(text string) ([]uint, error) {
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return ids, nil
}

// Decode skips EOS markers.
func (t *tiktoken) Decode(ids []uint) (string, error) {
	text, err := t.codec.Decode(withoutEOS(ids, t.eos))
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return text, nil
}

func (t *tiktoken) EOS() uint { return t.eos }

func withoutEOS(ids []uint, eos uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != eos {
			out = append(out, id)
		}
	}
	return out
}
