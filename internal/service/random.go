package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"cryptosim/internal/core/ports"
)

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a goroutine-safe PCG source. A zero seed draws one
// from the clock.
func NewRandomSource(seed uint64) ports.RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}
