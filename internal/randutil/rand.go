// Package randutil centralises random number generation so that every
// shuffle in a game can be replayed from a single seed.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// FromOptional returns a generator for seed when it is set, otherwise one
// seeded from now. The seed actually used is returned so it can be logged.
func FromOptional(seed *int64, now time.Time) (*rand.Rand, int64) {
	s := now.UnixNano()
	if seed != nil {
		s = *seed
	}
	return New(s), s
}

// Shuffle permutes s in place with the Fisher-Yates algorithm: walking from
// the last index down to 1, each element is swapped with a uniformly chosen
// index in [0, i].
func Shuffle[T any](rng *rand.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
