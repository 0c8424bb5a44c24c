package nn

import (
	"fmt"
	"slices"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/shapes"
	"github.com/born-ml/strata/internal/tensor"
)

// LocalConv is a convolution whose kernel is not shared across positions:
// every output location has its own weights.
//
// The input spatial size is fixed at construction. The weight has shape
// [out_features, in_features·prod(kernel), out_spatial...] and the bias
// [out_features, out_spatial...].
type LocalConv struct {
	name        string
	ndim        int
	inFeatures  int
	outFeatures int
	kernel      []int
	inSize      []int
	outSize     []int
	opts        tensor.ConvOptions
	weight      *Parameter
	bias        *Parameter
}

// NewLocalConv creates a locally connected layer for inputs of spatial size
// inSize. Groups, OutputPadding and DepthMultiplier in cfg are ignored.
func NewLocalConv(ndim, inFeatures, outFeatures int, kernel, inSize []int, key random.Key, cfg ConvConfig) (*LocalConv, error) {
	name := fmt.Sprintf("Conv%dDLocal", ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	if err := checkPositive(name, "in_features", inFeatures); err != nil {
		return nil, err
	}
	if err := checkPositive(name, "out_features", outFeatures); err != nil {
		return nil, err
	}
	if len(inSize) != ndim {
		return nil, fmt.Errorf("%s: %w: in_size %v for %d spatial axes", name, ErrLengthMismatch, inSize, ndim)
	}
	if err := checkPositive(name, "in_size", inSize...); err != nil {
		return nil, err
	}
	k, err := canonicalize(name, kernel, 0, ndim, "kernel_size")
	if err != nil {
		return nil, err
	}
	strides, err := canonicalize(name, cfg.Strides, 1, ndim, "strides")
	if err != nil {
		return nil, err
	}
	inDil, err := canonicalize(name, cfg.InputDilation, 1, ndim, "input_dilation")
	if err != nil {
		return nil, err
	}
	kerDil, err := canonicalize(name, cfg.KernelDilation, 1, ndim, "kernel_dilation")
	if err != nil {
		return nil, err
	}

	extent := shapes.DilatedKernel(k, kerDil)
	pads, err := cfg.Padding.Or(Same()).Resolve(inSize, extent, strides)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dilated := make([]int, ndim)
	for d, n := range inSize {
		dilated[d] = (n-1)*inDil[d] + 1
	}
	outSize, err := shapes.ConvOutputShape(dilated, extent, strides, pads)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	wInit, err := cfg.WeightInit.resolve("glorot_uniform")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if wInit == nil {
		return nil, fmt.Errorf("%s: %w: weight initializer cannot be disabled", name, ErrInvalidArgument)
	}
	bInit, err := cfg.BiasInit.resolve("zeros")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	keys := key.Split(2)
	rf := product(k)
	fan := Fan{In: inFeatures * rf, Out: outFeatures * rf}
	wShape := append([]int{outFeatures, inFeatures * rf}, outSize...)
	return &LocalConv{
		name:        name,
		ndim:        ndim,
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		kernel:      k,
		inSize:      slices.Clone(inSize),
		outSize:     outSize,
		opts: tensor.ConvOptions{
			Strides:        strides,
			Padding:        pads,
			InputDilation:  inDil,
			KernelDilation: kerDil,
		},
		weight: newParam("weight", wInit, keys[0], wShape, fan),
		bias:   newParam("bias", bInit, keys[1], append([]int{outFeatures}, outSize...), fan),
	}, nil
}

// Forward applies the layer to x of shape [in_features, in_size...].
func (l *LocalConv) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(l.name, x, l.ndim); err != nil {
		return nil, err
	}
	if err := checkFeatures(l.name, x, l.inFeatures); err != nil {
		return nil, err
	}
	if !slices.Equal([]int(spatialShape(x)), l.inSize) {
		return nil, fmt.Errorf("%s: %w: expected spatial size %v, got %v", l.name, ErrInputShape, l.inSize, spatialShape(x))
	}
	y := tensor.LocalConv(x, l.weight.Tensor(), l.kernel, l.opts)
	if l.bias != nil {
		y = tensor.Add(y, l.bias.Tensor())
	}
	return y, nil
}

// Parameters returns [weight, bias].
func (l *LocalConv) Parameters() []*Parameter { return collect(l.weight, l.bias) }

// OutSize returns the spatial size of the output.
func (l *LocalConv) OutSize() []int { return slices.Clone(l.outSize) }
