package classifier

import (
	"fmt"
	"math/rand"
)

// #region population
// Population is a fixed, fully enumerated set of classifiers for one decision type.
type Population[C Classifier] struct {
	tag   Tag
	items []C
	rng   *rand.Rand
}

func newPopulation[C Classifier](tag Tag, items []C, rng *rand.Rand) Population[C] {
	return Population[C]{tag: tag, items: items, rng: rng}
}

// Tag returns the decision type served.
func (p *Population[C]) Tag() Tag { return p.tag }

// Len returns the number of classifiers.
func (p *Population[C]) Len() int { return len(p.items) }

// At returns the classifier at index i.
func (p *Population[C]) At(i int) C { return p.items[i] }

// Get resolves a Ref against this population.
func (p *Population[C]) Get(r Ref) (C, error) {
	var zero C
	if r.Tag != p.tag {
		return zero, fmt.Errorf("ref %s: population is %s", r, p.tag)
	}
	if r.Index < 0 || r.Index >= len(p.items) {
		return zero, fmt.Errorf("ref %s: index out of range [0,%d)", r, len(p.items))
	}
	return p.items[r.Index], nil
}

// Ref returns the reference for index i.
func (p *Population[C]) Ref(i int) Ref { return Ref{Tag: p.tag, Index: i} }

// #endregion population

// #region match
func (p *Population[C]) match(pred func(C) bool) []int {
	var idx []int
	for i, c := range p.items {
		if pred(c) {
			idx = append(idx, i)
		}
	}
	return idx
}

// #endregion match

// #region select-best
// SelectBest returns the index of the strongest candidate. Ties at the
// maximum are broken uniformly at random.
func (p *Population[C]) SelectBest(candidates []int) (int, error) {
	if len(candidates) == 0 {
		return -1, fmt.Errorf("%s: %w", p.tag, ErrEmptyCandidateSet)
	}

	best := p.items[candidates[0]].Strength()
	for _, i := range candidates[1:] {
		if s := p.items[i].Strength(); s > best {
			best = s
		}
	}

	ties := make([]int, 0, len(candidates))
	for _, i := range candidates {
		if p.items[i].Strength() == best {
			ties = append(ties, i)
		}
	}
	return ties[p.rng.Intn(len(ties))], nil
}

// #endregion select-best

// #region state
// States returns the strength and theta of every classifier, in index order.
func (p *Population[C]) States() []State {
	out := make([]State, len(p.items))
	for i, c := range p.items {
		out[i] = c.State()
	}
	return out
}

// Restore overwrites strengths and thetas from a snapshot.
func (p *Population[C]) Restore(states []State) error {
	if len(states) != len(p.items) {
		return fmt.Errorf("%s: %w: got %d, want %d", p.tag, ErrStateMismatch, len(states), len(p.items))
	}
	for i, s := range states {
		p.items[i].SetState(s)
	}
	return nil
}

// #endregion state
