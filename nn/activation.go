// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/strata/internal/nn"
)

// Elementwise applies a scalar function to every value.
type Elementwise = nn.Elementwise

// Act selects an activation by tag or by layer.
type Act = nn.Act

// ActTag selects a registered activation such as "relu".
func ActTag(tag string) Act { return nn.ActTag(tag) }

// ActWith uses layer as the activation.
func ActWith(layer Layer) Act { return nn.ActWith(layer) }

// ResolveActivation returns a fresh activation for tag.
func ResolveActivation(tag string) (Layer, error) { return nn.ResolveActivation(tag) }

// ActivationNames lists the registered activation tags.
func ActivationNames() []string { return nn.ActivationNames() }

// Fixed activations.

func ReLU() *Elementwise        { return nn.ReLU() }
func ReLU6() *Elementwise       { return nn.ReLU6() }
func Sigmoid() *Elementwise     { return nn.Sigmoid() }
func Tanh() *Elementwise        { return nn.Tanh() }
func SoftPlus() *Elementwise    { return nn.SoftPlus() }
func SoftSign() *Elementwise    { return nn.SoftSign() }
func SquarePlus() *Elementwise  { return nn.SquarePlus() }
func Swish() *Elementwise       { return nn.Swish() }
func Mish() *Elementwise        { return nn.Mish() }
func TanhShrink() *Elementwise  { return nn.TanhShrink() }
func HardSigmoid() *Elementwise { return nn.HardSigmoid() }
func HardSwish() *Elementwise   { return nn.HardSwish() }
func HardTanh() *Elementwise    { return nn.HardTanh() }
func LogSigmoid() *Elementwise  { return nn.LogSigmoid() }
func SeLU() *Elementwise        { return nn.SeLU() }

// GELU uses the tanh approximation when approximate is set.
func GELU(approximate bool) *Elementwise { return nn.GELU(approximate) }

// NewCeLU is max(0, x) + min(0, alpha·(exp(x/alpha) - 1)); alpha must be
// positive.
func NewCeLU(alpha float64) (*Elementwise, error) { return nn.NewCeLU(alpha) }

// ELU is x for x > 0 and alpha·(exp(x) - 1) otherwise.
func ELU(alpha float64) *Elementwise { return nn.ELU(alpha) }

// NewLeakyReLU is x for x >= 0 and slope·x otherwise; slope must be >= 0.
func NewLeakyReLU(slope float64) (*Elementwise, error) { return nn.NewLeakyReLU(slope) }

// NewHardShrink zeroes values in [-alpha, alpha].
func NewHardShrink(alpha float64) (*Elementwise, error) { return nn.NewHardShrink(alpha) }

// NewSoftShrink shrinks values toward zero by alpha.
func NewSoftShrink(alpha float64) (*Elementwise, error) { return nn.NewSoftShrink(alpha) }

// NewThresholdedReLU zeroes values not above theta.
func NewThresholdedReLU(theta float64) (*Elementwise, error) { return nn.NewThresholdedReLU(theta) }

// NewSnake is x + (1 - cos(2ax)) / (2a).
func NewSnake(a float64) (*Elementwise, error) { return nn.NewSnake(a) }

// GLU gates the first half of the last axis with the sigmoid of the second.
type GLU = nn.GLU

// LogSoftmax normalizes the last axis in log space.
type LogSoftmax = nn.LogSoftmax

// Learnable activations.

type (
	AdaptiveLeakyReLU = nn.AdaptiveLeakyReLU
	AdaptiveReLU      = nn.AdaptiveReLU
	AdaptiveSigmoid   = nn.AdaptiveSigmoid
	AdaptiveTanh      = nn.AdaptiveTanh
	PReLU             = nn.PReLU
)

func NewAdaptiveLeakyReLU(a, v float64) (*AdaptiveLeakyReLU, error) {
	return nn.NewAdaptiveLeakyReLU(a, v)
}
func NewAdaptiveReLU(a float64) (*AdaptiveReLU, error)       { return nn.NewAdaptiveReLU(a) }
func NewAdaptiveSigmoid(a float64) (*AdaptiveSigmoid, error) { return nn.NewAdaptiveSigmoid(a) }
func NewAdaptiveTanh(a float64) (*AdaptiveTanh, error)       { return nn.NewAdaptiveTanh(a) }
func NewPReLU(a float64) (*PReLU, error)                     { return nn.NewPReLU(a) }
