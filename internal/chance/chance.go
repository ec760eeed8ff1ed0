// Package chance supplies the randomness used for failure and delay injection.
// Components take a Source so tests can pin outcomes.
package chance

import (
	"math/rand/v2"
	"sync"
)

// Source decides probabilistic events
type Source interface {
	// Roll reports whether an event with probability p happens
	Roll(p float64) bool
	// Ticks returns a duration in [1, max]; max below one yields one
	Ticks(max int) int
}

// Rand is a Source backed by a seeded PCG generator. Safe for concurrent use.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a Source seeded deterministically from seed
func New(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Rand) Roll(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64() < p
}

func (r *Rand) Ticks(max int) int {
	if max <= 1 {
		return 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return 1 + r.r.IntN(max)
}

// Never is a Source in which nothing happens
type Never struct{}

func (Never) Roll(float64) bool { return false }
func (Never) Ticks(int) int     { return 1 }

// Always is a Source in which every event with a non-zero probability
// happens and lasts Duration ticks
type Always struct {
	Duration int
}

func (a Always) Roll(p float64) bool { return p > 0 }

func (a Always) Ticks(max int) int {
	d := a.Duration
	if d < 1 {
		d = 1
	}
	if max >= 1 && d > max {
		d = max
	}
	return d
}
