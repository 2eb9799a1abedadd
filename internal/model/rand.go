package model

import "math/rand/v2"

// Source is the random stream the model draws from. Injecting it keeps the
// tick and defibrillation functions deterministic under test: fix the seed
// or substitute a scripted stub.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// IntN returns a value in [0,n).
	IntN(n int) int
}

type seededSource struct {
	r *rand.Rand
}

func (s *seededSource) Float64() float64 { return s.r.Float64() }
func (s *seededSource) IntN(n int) int   { return s.r.IntN(n) }

// NewSource returns a seedable Source backed by math/rand/v2.
func NewSource(seed int64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)))}
}

// jitter returns a uniform value in [-n, n].
func jitter(rng Source, n int) int {
	return rng.IntN(2*n+1) - n
}
