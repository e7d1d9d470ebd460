package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(cs []candidate) []uint {
	out := make([]uint, len(cs))
	for i, c := range cs {
		out[i] = c.id
	}
	return out
}

func TestNucleus(t *testing.T) {
	cands := []candidate{{4, 1}, {1, 5}, {3, 1}, {2, 3}}

	assert.Equal(t, []uint{1, 2, 3, 4}, ids(nucleus(cands, 0, 1)), "sorted by weight then id")
	assert.Equal(t, []uint{1, 2}, ids(nucleus(cands, 2, 1)), "top-k")
	assert.Equal(t, []uint{1, 2, 3}, ids(nucleus(cands, 50, 0.9)), "top-p")
	assert.Equal(t, []uint{1}, ids(nucleus(cands, 50, 0.5)), "top-p boundary is inclusive")
	assert.Equal(t, []uint{1}, ids(nucleus(cands, 50, 0.01)), "keeps at least one")
	assert.Nil(t, nucleus(nil, 50, 0.9))
}

func TestNucleus_DoesNotMutateInput(t *testing.T) {
	cands := []candidate{{2, 1}, {1, 5}}
	nucleus(cands, 1, 0.9)
	assert.Equal(t, []candidate{{2, 1}, {1, 5}}, cands)
}

func TestPick(t *testing.T) {
	cands := []candidate{{1, 1}, {2, 3}}
	assert.Equal(t, uint(1), pick(cands, 0))
	assert.Equal(t, uint(1), pick(cands, 0.2))
	assert.Equal(t, uint(2), pick(cands, 0.3))
	assert.Equal(t, uint(2), pick(cands, 0.999))
}

func TestSampler_Range(t *testing.T) {
	s := newSampler(0)
	for range 100 {
		v := s.next()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
