package generator

import (
	"math/rand/v2"
	"slices"
	"sync"
)

type candidate struct {
	id     uint
	weight float64
}

// sampler draws tokens from a seeded PRNG. Safe for concurrent use.
type sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// newSampler seeds the PRNG; seed 0 picks a random seed.
func newSampler(seed uint64) *sampler {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *sampler) next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// nucleus filters cands to the topK heaviest, then to the smallest prefix
// whose probability mass reaches topP, always keeping at least one. The
// result is sorted by descending weight, ties by ascending ID. topK < 1 and
// topP outside (0, 1) disable the respective filter.
func nucleus(cands []candidate, topK int, topP float64) []candidate {
	if len(cands) == 0 {
		return nil
	}
	sorted := slices.Clone(cands)
	slices.SortFunc(sorted, func(a, b candidate) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})

	if topK > 0 && len(sorted) > topK {
		sorted = sorted[:topK]
	}

	if topP > 0 && topP < 1 {
		var total float64
		for _, c := range sorted {
			total += c.weight
		}
		var cum float64
		for i, c := range sorted {
			cum += c.weight
			if cum/total >= topP {
				sorted = sorted[:i+1]
				break
			}
		}
	}
	return sorted
}

// pick draws one candidate proportionally to weight using u in [0, 1).
func pick(cands []candidate, u float64) uint {
	var total float64
	for _, c := range cands {
		total += c.weight
	}
	target := u * total
	for _, c := range cands {
		target -= c.weight
		if target < 0 {
			return c.id
		}
	}
	return cands[len(cands)-1].id
}
