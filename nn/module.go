// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/tensor"
)

// Module is anything that owns parameters.
type Module = nn.Module

// Layer is a deterministic module.
type Layer = nn.Layer

// RandomLayer is a module that consumes a random key.
type RandomLayer = nn.RandomLayer

// Parameter is a named, replaceable tensor owned by a module.
type Parameter = nn.Parameter

// Lazy marks an input feature count to be inferred on the first call.
const Lazy = nn.Lazy

// Sentinel errors.
var (
	ErrInvalidArgument     = nn.ErrInvalidArgument
	ErrLengthMismatch      = nn.ErrLengthMismatch
	ErrUnknownTag          = nn.ErrUnknownTag
	ErrNotDivisible        = nn.ErrNotDivisible
	ErrInputRank           = nn.ErrInputRank
	ErrInputFeatures       = nn.ErrInputFeatures
	ErrInputShape          = nn.ErrInputShape
	ErrStateType           = nn.ErrStateType
	ErrIndexType           = nn.ErrIndexType
	ErrKeyRequired         = nn.ErrKeyRequired
	ErrMissingParameter    = nn.ErrMissingParameter
	ErrUnexpectedParameter = nn.ErrUnexpectedParameter
	ErrParameterShape      = nn.ErrParameterShape
)

// NewParameter creates a parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter { return nn.NewParameter(name, t) }

// StateDict maps parameter names of m to their current tensors.
func StateDict(m Module) map[string]*tensor.Tensor { return nn.StateDict(m) }

// LoadStateDict replaces the parameters of m with the tensors in sd.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error { return nn.LoadStateDict(m, sd) }

// NumParameters counts the scalar parameters of m.
func NumParameters(m Module) int { return nn.NumParameters(m) }

// Eval returns m with stochastic layers replaced by identities.
func Eval(m Module) Module { return nn.Eval(m) }

// Padding

// Padding is a padding specification: a tag, an int, per-axis ints or pairs.
type Padding = nn.Padding

// Same pads so that output = ceil(input / stride).
func Same() Padding { return nn.Same() }

// Valid applies no padding.
func Valid() Padding { return nn.Valid() }

// PadTag parses "same" or "valid".
func PadTag(tag string) Padding { return nn.PadTag(tag) }

// PadInt pads every side of every axis by n.
func PadInt(n int) Padding { return nn.PadInt(n) }

// PadPerAxis pads both sides of axis i by ns[i].
func PadPerAxis(ns ...int) Padding { return nn.PadPerAxis(ns...) }

// PadPairs gives explicit (before, after) pads per axis.
func PadPairs(ps ...[2]int) Padding { return nn.PadPairs(ps...) }

// Initialization

// Fan holds the fan-in and fan-out of a weight.
type Fan = nn.Fan

// Initializer creates a weight tensor.
type Initializer = nn.Initializer

// Init selects an initializer by tag or function, or disables one.
type Init = nn.Init

// InitTag selects a registered initializer such as "he_normal".
func InitTag(tag string) Init { return nn.InitTag(tag) }

// InitWith uses fn directly.
func InitWith(fn Initializer) Init { return nn.InitWith(fn) }

// NoInit disables the parameter (typically a bias).
func NoInit() Init { return nn.NoInit() }

// ResolveInit looks up a registered initializer.
func ResolveInit(tag string) (Initializer, error) { return nn.ResolveInit(tag) }

// InitNames lists the registered initializer tags.
func InitNames() []string { return nn.InitNames() }

// Orthogonal returns an initializer producing scaled orthogonal matrices.
func Orthogonal(scale float64) Initializer { return nn.Orthogonal(scale) }
