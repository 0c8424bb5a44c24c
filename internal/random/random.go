// Package random provides explicit, splittable random keys.
//
// A Key is an immutable value: drawing from it never advances hidden state,
// so the same key always produces the same numbers. Callers derive fresh
// keys with Split or Fold instead of reusing one key for independent draws.
package random

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/strata/internal/tensor"
)

const golden = 0x9e3779b97f4a7c15

// Key identifies a deterministic random stream.
type Key struct {
	hi, lo uint64
}

// NewKey creates a key from a seed.
func NewKey(seed uint64) Key {
	return Key{hi: mix(seed), lo: mix(seed ^ golden)}
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z += golden
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Split derives n independent child keys.
func (k Key) Split(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = k.Fold(uint64(i) + 1)
	}
	return keys
}

// Fold derives a key from k and data.
func (k Key) Fold(data uint64) Key {
	return Key{
		hi: mix(k.hi ^ mix(data)),
		lo: mix(k.lo + data*golden),
	}
}

// String renders the key for logs and test failures.
func (k Key) String() string { return fmt.Sprintf("Key(%016x%016x)", k.hi, k.lo) }

func (k Key) rng() *rand.Rand {
	return rand.New(rand.NewPCG(k.hi, k.lo))
}

// Float64 draws one value in [0, 1).
func Float64(k Key) float64 { return k.rng().Float64() }

// Intn draws one integer in [0, n).
func Intn(k Key, n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("random.Intn: n must be positive, got %d", n))
	}
	return k.rng().IntN(n)
}

// Permutation returns a random permutation of [0, n).
func Permutation(k Key, n int) []int { return k.rng().Perm(n) }

// Uniform draws values uniformly from [lo, hi).
func Uniform(k Key, lo, hi float64, shape ...int) *tensor.Tensor {
	r := k.rng()
	data := make([]float64, tensor.Shape(shape).NumElements())
	for i := range data {
		data[i] = lo + (hi-lo)*r.Float64()
	}
	return tensor.FromSlice(data, shape...)
}

// Normal draws standard normal values.
func Normal(k Key, shape ...int) *tensor.Tensor {
	r := k.rng()
	data := make([]float64, tensor.Shape(shape).NumElements())
	for i := range data {
		data[i] = r.NormFloat64()
	}
	return tensor.FromSlice(data, shape...)
}

// TruncatedNormal draws standard normal values restricted to [lo, hi] by
// rejection.
func TruncatedNormal(k Key, lo, hi float64, shape ...int) *tensor.Tensor {
	if !(lo < hi) {
		panic(fmt.Sprintf("random.TruncatedNormal: empty interval [%g, %g]", lo, hi))
	}
	r := k.rng()
	data := make([]float64, tensor.Shape(shape).NumElements())
	for i := range data {
		v := r.NormFloat64()
		for v < lo || v > hi {
			v = r.NormFloat64()
		}
		data[i] = v
	}
	return tensor.FromSlice(data, shape...)
}

// Bernoulli draws 1 with probability p and 0 otherwise.
func Bernoulli(k Key, p float64, shape ...int) *tensor.Tensor {
	p = math.Max(0, math.Min(1, p))
	r := k.rng()
	data := make([]float64, tensor.Shape(shape).NumElements())
	for i := range data {
		if r.Float64() < p {
			data[i] = 1
		}
	}
	return tensor.FromSlice(data, shape...)
}
