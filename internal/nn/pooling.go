package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/strata/internal/shapes"
	"github.com/born-ml/strata/internal/tensor"
)

// PoolConfig configures windowed pooling. The zero value gives stride 1 and
// VALID padding.
type PoolConfig struct {
	Strides []int
	Padding Padding
}

// Pool reduces sliding windows over the spatial axes of channel-first input.
type Pool struct {
	stateless
	name     string
	ndim     int
	kernel   []int
	strides  []int
	padding  Padding
	padValue float64
	reduce   tensor.Reducer
	pre      func(float64) float64
	post     func(float64) float64
}

func newPool(name string, ndim int, kernel []int, cfg PoolConfig) (*Pool, error) {
	name = fmt.Sprintf("%s%dD", name, ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	k, err := canonicalize(name, kernel, 0, ndim, "kernel_size")
	if err != nil {
		return nil, err
	}
	s, err := canonicalize(name, cfg.Strides, 1, ndim, "strides")
	if err != nil {
		return nil, err
	}
	p := cfg.Padding.Or(Valid())
	if err := p.Validate(ndim); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Pool{name: name, ndim: ndim, kernel: k, strides: s, padding: p}, nil
}

// NewMaxPool takes the maximum of each window. Padded positions are -Inf.
//
// Example: a kernel of 2 with SAME padding maps [1..10] to [2 3 ... 10 10].
func NewMaxPool(ndim int, kernel []int, cfg PoolConfig) (*Pool, error) {
	p, err := newPool("MaxPool", ndim, kernel, cfg)
	if err != nil {
		return nil, err
	}
	p.padValue, p.reduce = math.Inf(-1), tensor.ReduceMax
	return p, nil
}

// NewAvgPool averages each window over prod(kernel) elements, counting
// padded zeros.
func NewAvgPool(ndim int, kernel []int, cfg PoolConfig) (*Pool, error) {
	p, err := newPool("AvgPool", ndim, kernel, cfg)
	if err != nil {
		return nil, err
	}
	n := float64(product(p.kernel))
	p.reduce = tensor.ReduceSum
	p.post = func(v float64) float64 { return v / n }
	return p, nil
}

// NewLPPool computes (Σ x^p)^(1/p) over each window.
func NewLPPool(ndim int, normType float64, kernel []int, cfg PoolConfig) (*Pool, error) {
	p, err := newPool("LPPool", ndim, kernel, cfg)
	if err != nil {
		return nil, err
	}
	if normType <= 0 {
		return nil, fmt.Errorf("%s: %w: norm_type must be positive, got %g", p.name, ErrInvalidArgument, normType)
	}
	p.reduce = tensor.ReduceSum
	p.pre = func(v float64) float64 { return math.Pow(v, normType) }
	p.post = func(v float64) float64 { return math.Pow(v, 1/normType) }
	return p, nil
}

// Forward pools x of shape [features, spatial...].
func (p *Pool) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(p.name, x, p.ndim); err != nil {
		return nil, err
	}
	in := spatialShape(x)
	pads, err := p.padding.Resolve(in, p.kernel, p.strides)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	if _, err := shapes.ConvOutputShape(in, p.kernel, p.strides, pads); err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	if p.pre != nil {
		x = x.Map(p.pre)
	}
	y := tensor.ReduceWindow(x, p.kernel, p.strides, pads, p.padValue, p.reduce)
	if p.post != nil {
		y = y.Map(p.post)
	}
	return y, nil
}

// GlobalPool reduces every spatial axis.
type GlobalPool struct {
	stateless
	name     string
	ndim     int
	keepDims bool
	reduce   func(t *tensor.Tensor, keepDims bool, axes ...int) *tensor.Tensor
}

// NewGlobalMaxPool takes the maximum over the spatial axes. With keepDims
// the output is [features, 1, ...]; otherwise [features].
func NewGlobalMaxPool(ndim int, keepDims bool) *GlobalPool {
	return &GlobalPool{name: fmt.Sprintf("GlobalMaxPool%dD", ndim), ndim: ndim, keepDims: keepDims, reduce: (*tensor.Tensor).Max}
}

// NewGlobalAvgPool averages over the spatial axes.
func NewGlobalAvgPool(ndim int, keepDims bool) *GlobalPool {
	return &GlobalPool{name: fmt.Sprintf("GlobalAvgPool%dD", ndim), ndim: ndim, keepDims: keepDims, reduce: (*tensor.Tensor).Mean}
}

// Forward pools x of shape [features, spatial...].
func (g *GlobalPool) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(g.name, x, g.ndim); err != nil {
		return nil, err
	}
	axes := make([]int, g.ndim)
	for d := range axes {
		axes[d] = d + 1
	}
	return g.reduce(x, g.keepDims, axes...), nil
}

// AdaptivePool reduces the spatial axes to a fixed output size, whatever
// the input size. Bin i of n inputs pooled into m outputs covers
// [floor(i·n/m), ceil((i+1)·n/m)).
type AdaptivePool struct {
	stateless
	name       string
	ndim       int
	outputSize []int
	reduce     tensor.Reducer
}

func newAdaptivePool(name string, ndim int, outputSize []int, r tensor.Reducer) (*AdaptivePool, error) {
	name = fmt.Sprintf("%s%dD", name, ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	out, err := canonicalize(name, outputSize, 0, ndim, "output_size")
	if err != nil {
		return nil, err
	}
	return &AdaptivePool{name: name, ndim: ndim, outputSize: out, reduce: r}, nil
}

// NewAdaptiveMaxPool pools to outputSize with maxima.
func NewAdaptiveMaxPool(ndim int, outputSize []int) (*AdaptivePool, error) {
	return newAdaptivePool("AdaptiveMaxPool", ndim, outputSize, tensor.ReduceMax)
}

// NewAdaptiveAvgPool pools to outputSize with means.
func NewAdaptiveAvgPool(ndim int, outputSize []int) (*AdaptivePool, error) {
	return newAdaptivePool("AdaptiveAvgPool", ndim, outputSize, tensor.ReduceMean)
}

// Forward pools x of shape [features, spatial...].
func (a *AdaptivePool) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(a.name, x, a.ndim); err != nil {
		return nil, err
	}
	return tensor.AdaptiveReduce(x, a.outputSize, a.reduce), nil
}
