package generator_test

import (
	"strings"
	"sync"
)

// wordTokenizer maps each space-separated word to an ID; 0 is EOS.
type wordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]uint
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: map[string]uint{}, words: []string{"<eos>"}}
}

func (w *wordTokenizer) Encode(text string) ([]uint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []uint
	for _, word := range strings.Fields(text) {
		id, ok := w.ids[word]
		if !ok {
			id = uint(len(w.words))
			w.ids[word] = id
			w.words = append(w.words, word)
		}
		out = append(out, id)
	}
	return out, nil
}

func (w *wordTokenizer) Decode(ids []uint) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var parts []string
	for _, id := range ids {
		if id == 0 {
			continue
		}
		parts = append(parts, w.words[id])
	}
	return strings.Join(parts, " "), nil
}

func (w *wordTokenizer) EOS() uint { return 0 }

func (w *wordTokenizer) id(word string) uint {
	ids, _ := w.Encode(word)
	return ids[0]
}
