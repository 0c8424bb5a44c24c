// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package random provides the explicit, splittable keys that drive every
// stochastic operation in strata.
//
// A key is a value: using the same key twice gives the same numbers. Derive
// independent keys with Split or Fold instead of reusing one.
//
//	key := random.NewKey(42)
//	keys := key.Split(2)
//	w := random.Normal(keys[0], 3, 4)
//	mask := random.Bernoulli(keys[1], 0.9, 3, 4)
package random

import (
	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// Key is an immutable pseudo-random key.
type Key = random.Key

// NewKey creates a key from a seed.
func NewKey(seed uint64) Key { return random.NewKey(seed) }

// Float64 returns a uniform value in [0, 1).
func Float64(k Key) float64 { return random.Float64(k) }

// Intn returns a uniform integer in [0, n).
func Intn(k Key, n int) int { return random.Intn(k, n) }

// Permutation returns a random permutation of [0, n).
func Permutation(k Key, n int) []int { return random.Permutation(k, n) }

// Uniform samples a tensor uniformly from [lo, hi).
func Uniform(k Key, lo, hi float64, shape ...int) *tensor.Tensor {
	return random.Uniform(k, lo, hi, shape...)
}

// Normal samples a tensor from the standard normal distribution.
func Normal(k Key, shape ...int) *tensor.Tensor { return random.Normal(k, shape...) }

// TruncatedNormal samples a standard normal truncated to [lo, hi].
func TruncatedNormal(k Key, lo, hi float64, shape ...int) *tensor.Tensor {
	return random.TruncatedNormal(k, lo, hi, shape...)
}

// Bernoulli samples 1 with probability p and 0 otherwise.
func Bernoulli(k Key, p float64, shape ...int) *tensor.Tensor { return random.Bernoulli(k, p, shape...) }
