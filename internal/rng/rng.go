package rng

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source is the random source every generator and roll draws from.
type Source interface {
	Float64() float64 // [0, 1)
}

// crypto random: default generation method
type cryptoSource struct{}

func (cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	// keep 53 bits so the result fits a float64 mantissa
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

// Default returns the crypto-backed source.
func Default() Source { return cryptoSource{} }

// seeded source for reproducible tests and simulations
type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a deterministic source.
func NewSeeded(seed uint64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Fixed returns a source that replays values in order, then repeats the last one.
func Fixed(values ...float64) Source {
	return &fixedSource{values: values}
}

type fixedSource struct {
	mu     sync.Mutex
	values []float64
	i      int
}

func (f *fixedSource) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	if f.i >= len(f.values) {
		return f.values[len(f.values)-1]
	}
	v := f.values[f.i]
	f.i++
	return v
}

// IntRange draws uniformly from [min, max]. If max < min the bounds are swapped.
func IntRange(src Source, min, max int) int {
	if max < min {
		min, max = max, min
	}
	n := max - min + 1
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return min + i
}

// Pick returns a uniformly chosen element; items must be non-empty.
func Pick[T any](src Source, items []T) T {
	return items[IntRange(src, 0, len(items)-1)]
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}
