// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/tensor"
	"github.com/born-ml/strata/random"
)

// Linear layers

type (
	LinearConfig  = nn.LinearConfig
	Linear        = nn.Linear
	Bilinear      = nn.Bilinear
	Multilinear   = nn.Multilinear
	GeneralLinear = nn.GeneralLinear
	Embedding     = nn.Embedding
	Identity      = nn.Identity
	FNNConfig     = nn.FNNConfig
	FNN           = nn.FNN
)

// NewLinear creates a fully connected layer. inFeatures may be Lazy.
//
// Example:
//
//	layer, err := nn.NewLinear(784, 128, random.NewKey(0), nn.LinearConfig{})
func NewLinear(inFeatures, outFeatures int, key random.Key, cfg LinearConfig) (*Linear, error) {
	return nn.NewLinear(inFeatures, outFeatures, key, cfg)
}

// NewBilinear creates y = x1ᵀ W x2 + b.
func NewBilinear(in1, in2, outFeatures int, key random.Key, cfg LinearConfig) (*Bilinear, error) {
	return nn.NewBilinear(in1, in2, outFeatures, key, cfg)
}

// NewMultilinear contracts one weight with several inputs.
func NewMultilinear(inFeatures []int, outFeatures int, key random.Key, cfg LinearConfig) (*Multilinear, error) {
	return nn.NewMultilinear(inFeatures, outFeatures, key, cfg)
}

// NewGeneralLinear applies a linear map over arbitrary input axes.
func NewGeneralLinear(inFeatures, inAxes []int, outFeatures int, key random.Key, cfg LinearConfig) (*GeneralLinear, error) {
	return nn.NewGeneralLinear(inFeatures, inAxes, outFeatures, key, cfg)
}

// NewEmbedding creates a lookup table of inFeatures vectors.
func NewEmbedding(inFeatures, outFeatures int, key random.Key) (*Embedding, error) {
	return nn.NewEmbedding(inFeatures, outFeatures, key)
}

// NewFNN creates a stack of linear layers with sizes layers.
func NewFNN(layers []int, key random.Key, cfg FNNConfig) (*FNN, error) {
	return nn.NewFNN(layers, key, cfg)
}

// NewMLP creates an FNN with numHiddenLayers hidden layers of hiddenSize.
func NewMLP(inFeatures, outFeatures, hiddenSize, numHiddenLayers int, key random.Key, cfg FNNConfig) (*FNN, error) {
	return nn.NewMLP(inFeatures, outFeatures, hiddenSize, numHiddenLayers, key, cfg)
}

// Convolutions

type (
	ConvConfig    = nn.ConvConfig
	Conv          = nn.Conv
	SeparableConv = nn.SeparableConv
	LocalConv     = nn.LocalConv
	SpectralConv  = nn.SpectralConv
)

// NewConv creates an ndim-dimensional convolution.
func NewConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewConv(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewConv1D creates a 1D convolution.
func NewConv1D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewConv1D(inFeatures, outFeatures, kernel, key, cfg)
}

// NewConv2D creates a 2D convolution.
//
// Example:
//
//	conv, err := nn.NewConv2D(1, 32, []int{3, 3}, key, nn.ConvConfig{Padding: nn.Same()})
func NewConv2D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewConv2D(inFeatures, outFeatures, kernel, key, cfg)
}

// NewConv3D creates a 3D convolution.
func NewConv3D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewConv3D(inFeatures, outFeatures, kernel, key, cfg)
}

// NewConvTranspose creates a transposed convolution.
func NewConvTranspose(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewConvTranspose(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewDepthwiseConv creates a convolution with one group per input feature.
func NewDepthwiseConv(ndim, inFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewDepthwiseConv(ndim, inFeatures, kernel, key, cfg)
}

// NewFFTConv creates a convolution evaluated in the frequency domain.
func NewFFTConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewFFTConv(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewFFTConvTranspose is NewConvTranspose evaluated with FFTs.
func NewFFTConvTranspose(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewFFTConvTranspose(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewDepthwiseFFTConv is NewDepthwiseConv evaluated with FFTs.
func NewDepthwiseFFTConv(ndim, inFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return nn.NewDepthwiseFFTConv(ndim, inFeatures, kernel, key, cfg)
}

// NewSeparableConv creates a depthwise convolution followed by a pointwise one.
func NewSeparableConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*SeparableConv, error) {
	return nn.NewSeparableConv(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewSeparableFFTConv is NewSeparableConv evaluated with FFTs.
func NewSeparableFFTConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*SeparableConv, error) {
	return nn.NewSeparableFFTConv(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewLocalConv creates an unshared-weight convolution for inputs of
// spatial size inSize.
func NewLocalConv(ndim, inFeatures, outFeatures int, kernel, inSize []int, key random.Key, cfg ConvConfig) (*LocalConv, error) {
	return nn.NewLocalConv(ndim, inFeatures, outFeatures, kernel, inSize, key, cfg)
}

// NewSpectralConv mixes the lowest modes of the Fourier transform.
func NewSpectralConv(ndim, inFeatures, outFeatures int, modes []int, key random.Key) (*SpectralConv, error) {
	return nn.NewSpectralConv(ndim, inFeatures, outFeatures, modes, key)
}

// Pooling

type (
	PoolConfig   = nn.PoolConfig
	Pool         = nn.Pool
	GlobalPool   = nn.GlobalPool
	AdaptivePool = nn.AdaptivePool
)

func NewMaxPool(ndim int, kernel []int, cfg PoolConfig) (*Pool, error) {
	return nn.NewMaxPool(ndim, kernel, cfg)
}

func NewAvgPool(ndim int, kernel []int, cfg PoolConfig) (*Pool, error) {
	return nn.NewAvgPool(ndim, kernel, cfg)
}

func NewLPPool(ndim int, normType float64, kernel []int, cfg PoolConfig) (*Pool, error) {
	return nn.NewLPPool(ndim, normType, kernel, cfg)
}

func NewGlobalMaxPool(ndim int, keepDims bool) *GlobalPool { return nn.NewGlobalMaxPool(ndim, keepDims) }
func NewGlobalAvgPool(ndim int, keepDims bool) *GlobalPool { return nn.NewGlobalAvgPool(ndim, keepDims) }

func NewAdaptiveMaxPool(ndim int, outputSize []int) (*AdaptivePool, error) {
	return nn.NewAdaptiveMaxPool(ndim, outputSize)
}

func NewAdaptiveAvgPool(ndim int, outputSize []int) (*AdaptivePool, error) {
	return nn.NewAdaptiveAvgPool(ndim, outputSize)
}

// Normalization

type (
	NormConfig      = nn.NormConfig
	LayerNorm       = nn.LayerNorm
	RMSNorm         = nn.RMSNorm
	GroupNorm       = nn.GroupNorm
	BatchNormConfig = nn.BatchNormConfig
	BatchNormState  = nn.BatchNormState
	BatchNorm       = nn.BatchNorm
)

func NewLayerNorm(normalizedShape []int, key random.Key, cfg NormConfig) (*LayerNorm, error) {
	return nn.NewLayerNorm(normalizedShape, key, cfg)
}

// NewRMSNorm scales the trailing axis by its root mean square; it has a
// weight and no bias.
func NewRMSNorm(features int, key random.Key, cfg NormConfig) (*RMSNorm, error) {
	return nn.NewRMSNorm(features, key, cfg)
}

func NewGroupNorm(inFeatures, groups int, key random.Key, cfg NormConfig) (*GroupNorm, error) {
	return nn.NewGroupNorm(inFeatures, groups, key, cfg)
}

func NewInstanceNorm(inFeatures int, key random.Key, cfg NormConfig) (*GroupNorm, error) {
	return nn.NewInstanceNorm(inFeatures, key, cfg)
}

// NewBatchNorm creates batch normalization. Running statistics live in an
// explicit BatchNormState threaded through Train and Evaluate.
func NewBatchNorm(features int, key random.Key, cfg BatchNormConfig) (*BatchNorm, error) {
	return nn.NewBatchNorm(features, key, cfg)
}

// WeightNorm returns w normalized to unit L2 norm outside axis.
func WeightNorm(w *tensor.Tensor, axis int) *tensor.Tensor { return nn.WeightNorm(w, axis) }

// ApplyWeightNorm normalizes every weight parameter of m and returns how
// many were changed.
func ApplyWeightNorm(m Module, axis int) int { return nn.ApplyWeightNorm(m, axis) }

// Attention

type (
	AttentionConfig    = nn.AttentionConfig
	MultiHeadAttention = nn.MultiHeadAttention
)

// DotProductAttention computes softmax(q kᵀ / sqrt(d)) v per head.
func DotProductAttention(q, k, v, mask *tensor.Tensor, numHeads int) (*tensor.Tensor, error) {
	return nn.DotProductAttention(q, k, v, mask, numHeads)
}

// NewMultiHeadAttention creates multi-head attention over qFeatures.
func NewMultiHeadAttention(numHeads, qFeatures int, key random.Key, cfg AttentionConfig) (*MultiHeadAttention, error) {
	return nn.NewMultiHeadAttention(numHeads, qFeatures, key, cfg)
}

// Regularization

type (
	Dropout      = nn.Dropout
	DropoutND    = nn.DropoutND
	RandomCutout = nn.RandomCutout
)

func NewDropout(p float64) (*Dropout, error)               { return nn.NewDropout(p) }
func NewDropoutND(ndim int, p float64) (*DropoutND, error) { return nn.NewDropoutND(ndim, p) }

func NewRandomCutout(ndim int, shape []int, cutoutCount int, fillValue float64) (*RandomCutout, error) {
	return nn.NewRandomCutout(ndim, shape, cutoutCount, fillValue)
}

// Spatial

type (
	Crop         = nn.Crop
	CenterCrop   = nn.CenterCrop
	RandomCrop   = nn.RandomCrop
	Pad          = nn.Pad
	ResizeConfig = nn.ResizeConfig
	Resize       = nn.Resize
	Upsample     = nn.Upsample
	RandomZoom   = nn.RandomZoom
	Flatten      = nn.Flatten
	Unflatten    = nn.Unflatten
)

func NewCrop(ndim int, size, start []int) (*Crop, error)      { return nn.NewCrop(ndim, size, start) }
func NewCenterCrop(ndim int, size []int) (*CenterCrop, error) { return nn.NewCenterCrop(ndim, size) }
func NewRandomCrop(ndim int, size []int) (*RandomCrop, error) { return nn.NewRandomCrop(ndim, size) }

func NewPad(ndim int, padding Padding, value float64) (*Pad, error) {
	return nn.NewPad(ndim, padding, value)
}

func NewResize(ndim int, size []int, cfg ResizeConfig) (*Resize, error) {
	return nn.NewResize(ndim, size, cfg)
}

func NewUpsample(ndim int, scale []int, cfg ResizeConfig) (*Upsample, error) {
	return nn.NewUpsample(ndim, scale, cfg)
}

func NewRandomZoom(ndim int, factors [][2]float64, cfg ResizeConfig) (*RandomZoom, error) {
	return nn.NewRandomZoom(ndim, factors, cfg)
}

func NewFlatten(start, end int) *Flatten { return nn.NewFlatten(start, end) }

func NewUnflatten(axis int, shape []int) (*Unflatten, error) { return nn.NewUnflatten(axis, shape) }

// Containers

type (
	Sequential  = nn.Sequential
	RandomApply = nn.RandomApply
)

// NewSequential chains layers; random keys are split across the stochastic ones.
func NewSequential(layers ...Module) (*Sequential, error) { return nn.NewSequential(layers...) }

// NewRandomApply applies layer with probability p.
func NewRandomApply(layer Module, p float64) (*RandomApply, error) { return nn.NewRandomApply(layer, p) }
